package store

import (
	"database/sql"
	"time"
)

// UpsertChat inserts or updates a chat record (idempotent on chat_id).
func (db *DB) UpsertChat(c *Chat) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO chats (chat_id, display_name, unread_count, last_seen_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			display_name = excluded.display_name,
			unread_count = excluded.unread_count,
			last_seen_at = MAX(chats.last_seen_at, excluded.last_seen_at),
			updated_at = excluded.updated_at`,
		c.ChatID, c.DisplayName, c.UnreadCount, c.LastSeenAt, now)
	return err
}

// ListChats returns chats sorted by last visit descending.
func (db *DB) ListChats(limit, offset int) ([]Chat, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT chat_id, display_name, unread_count, last_seen_at
		FROM chats
		ORDER BY last_seen_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chats []Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ChatID, &c.DisplayName, &c.UnreadCount, &c.LastSeenAt); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// GetChat returns a single chat by id, or nil when absent.
func (db *DB) GetChat(chatID string) (*Chat, error) {
	var c Chat
	err := db.QueryRow(`
		SELECT chat_id, display_name, unread_count, last_seen_at
		FROM chats
		WHERE chat_id = ?`, chatID).
		Scan(&c.ChatID, &c.DisplayName, &c.UnreadCount, &c.LastSeenAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
