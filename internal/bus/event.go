package bus

import "time"

// Event represents a pipeline event published on the bus.
//
// Kinds are dot-namespaced: "run.*" for walk lifecycle, "chat.*" for
// chat discovery, "message.*" for accepted records, "storage.*" for
// batch writer outcomes.
type Event struct {
	ID        string
	Kind      string
	Timestamp time.Time
	Payload   any
}

// FlushResult is the payload of storage.batch_flushed events.
type FlushResult struct {
	Messages int
	Chats    int
}
