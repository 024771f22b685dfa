package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"wascrape/internal/platform"
	"wascrape/internal/store"
)

// Skip classifies a record the normalizer filtered out. Not an error:
// a skipped record is a legitimate no-op outcome.
type Skip string

const (
	SkipNone        Skip = ""
	SkipEmpty       Skip = "empty"
	SkipUnsupported Skip = "unsupported"
)

// Normalize converts one raw extracted record into a canonical message
// with a deterministic identity. Pure: no side effects, cannot fail.
//
// Identity is a content hash over {chat id, direction, data type,
// normalized content}. The timestamp hint is excluded: WhatsApp Web
// re-renders timestamps in volatile formats, so including them would
// make the same logical message hash differently across passes.
func Normalize(chatID string, rec platform.RawRecord, extractedAt time.Time) (*store.Message, Skip) {
	switch rec.DataType {
	case platform.DataText, platform.DataMedia, platform.DataSystem:
	default:
		return nil, SkipUnsupported
	}

	content := normalizeContent(rec.Content)
	if content == "" {
		return nil, SkipEmpty
	}

	return &store.Message{
		ChatID:      chatID,
		MessageID:   messageID(chatID, rec.Direction, rec.DataType, content),
		Direction:   string(rec.Direction),
		DataType:    string(rec.DataType),
		RawPayload:  content,
		ExtractedAt: extractedAt.UnixMilli(),
	}, SkipNone
}

// normalizeContent strips volatile whitespace and formatting so that
// re-renders of the same logical message normalize identically.
func normalizeContent(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', ' ': // non-breaking spaces from rendered timestamps
			return ' '
		case '​', '‎', '‏': // zero-width space, bidi marks
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func messageID(chatID string, dir platform.Direction, dt platform.DataType, content string) string {
	h := sha256.New()
	h.Write([]byte(chatID))
	h.Write([]byte{0})
	h.Write([]byte(dir))
	h.Write([]byte{0})
	h.Write([]byte(dt))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))[:32]
}
