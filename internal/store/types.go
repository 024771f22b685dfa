package store

// Chat represents one conversation thread. Created on first discovery,
// updated on each re-visit, never deleted here.
type Chat struct {
	ChatID      string
	DisplayName string
	UnreadCount int
	LastSeenAt  int64 // unix millis of the most recent visit
}

// Message represents one extracted chat message. Immutable once stored:
// identity already encodes content, so there is nothing to update.
type Message struct {
	ChatID      string
	MessageID   string
	Direction   string // "in" or "out"
	DataType    string // "text", "media" or "system"
	RawPayload  string
	ExtractedAt int64 // unix millis at extraction time
}

// SearchResult holds a message with a search snippet.
type SearchResult struct {
	Message Message
	Snippet string
}
