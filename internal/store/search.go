package store

// SearchMessages performs a full-text search over message payloads.
// chatID narrows the search to one chat when non-empty.
func (db *DB) SearchMessages(query, chatID string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT m.chat_id, m.message_id, m.direction, m.data_type, m.raw_payload, m.extracted_at,
			snippet(messages_fts, 0, '[', ']', '…', 12)
		FROM messages_fts f
		JOIN messages m ON m.rowid = f.rowid
		WHERE messages_fts MATCH ?
			AND (? = '' OR m.chat_id = ?)
		ORDER BY m.extracted_at DESC
		LIMIT ?`, query, chatID, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Message.ChatID, &r.Message.MessageID, &r.Message.Direction,
			&r.Message.DataType, &r.Message.RawPayload, &r.Message.ExtractedAt, &r.Snippet); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
