package store

import (
	"fmt"
	"time"
)

// UpsertBatch writes one batch of chat updates and messages in a single
// transaction. Messages are insert-or-ignore on (chat_id, message_id):
// replaying a batch neither errors nor duplicates. All-or-nothing — a
// failed batch leaves the store at the previous flush.
func (db *DB) UpsertBatch(chats []*Chat, msgs []*Message) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()

	for _, c := range chats {
		if _, err := tx.Exec(`
			INSERT INTO chats (chat_id, display_name, unread_count, last_seen_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(chat_id) DO UPDATE SET
				display_name = excluded.display_name,
				unread_count = excluded.unread_count,
				last_seen_at = MAX(chats.last_seen_at, excluded.last_seen_at),
				updated_at = excluded.updated_at`,
			c.ChatID, c.DisplayName, c.UnreadCount, c.LastSeenAt, now); err != nil {
			return fmt.Errorf("upsert chat in batch: %w", err)
		}
	}

	for _, m := range msgs {
		// Every message row must have a chats row, even when the chat
		// update item lands in a later batch.
		if _, err := tx.Exec(`
			INSERT INTO chats (chat_id, last_seen_at, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(chat_id) DO NOTHING`,
			m.ChatID, m.ExtractedAt, now); err != nil {
			return fmt.Errorf("ensure chat in batch: %w", err)
		}
		if _, err := tx.Exec(`
			INSERT INTO messages (chat_id, message_id, direction, data_type, raw_payload, extracted_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(chat_id, message_id) DO NOTHING`,
			m.ChatID, m.MessageID, m.Direction, m.DataType, m.RawPayload, m.ExtractedAt, now); err != nil {
			return fmt.Errorf("insert message in batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// SeenIDs returns every stored message identifier for a chat. Used to
// hydrate the in-memory seen-set at fetch start.
func (db *DB) SeenIDs(chatID string) ([]string, error) {
	rows, err := db.Query(`SELECT message_id FROM messages WHERE chat_id = ?`, chatID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListMessages returns messages for a chat using keyset pagination by
// extraction time.
func (db *DB) ListMessages(chatID string, beforeTs int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT chat_id, message_id, direction, data_type, raw_payload, extracted_at
		FROM messages
		WHERE chat_id = ? AND extracted_at < ?
		ORDER BY extracted_at DESC, created_at DESC
		LIMIT ?`, chatID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ChatID, &m.MessageID, &m.Direction, &m.DataType, &m.RawPayload, &m.ExtractedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// CountMessages returns the number of stored messages for a chat, or
// for all chats when chatID is empty.
func (db *DB) CountMessages(chatID string) (int, error) {
	var n int
	var err error
	if chatID == "" {
		err = db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&n)
	} else {
		err = db.QueryRow(`SELECT COUNT(*) FROM messages WHERE chat_id = ?`, chatID).Scan(&n)
	}
	return n, err
}
