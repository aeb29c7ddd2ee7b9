package store

import (
	"context"
	"fmt"

	"github.com/nidhogg/nuka-academy/internal/provider"
)

// FindOrCreateSession returns the chat session for a platform channel.
func (s *Store) FindOrCreateSession(ctx context.Context, platform, channelID string) (string, error) {
	var id string
	err := s.db.QueryRow(ctx, `
		INSERT INTO sessions (platform, channel_id)
		VALUES ($1, $2)
		ON CONFLICT (platform, channel_id)
		DO UPDATE SET updated_at = now()
		RETURNING id`,
		platform, channelID,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("find or create session: %w", err)
	}
	return id, nil
}

// AppendMessage stores a message in the given session.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, msg provider.Message) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO messages (session_id, role, content)
		VALUES ($1, $2, $3)`,
		sessionID, msg.Role, msg.Content,
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// RecentMessages returns the last limit messages of a session, oldest first.
func (s *Store) RecentMessages(ctx context.Context, sessionID string, limit int) ([]provider.Message, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT role, content FROM (
			SELECT role, content, created_at
			FROM messages
			WHERE session_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()

	var msgs []provider.Message
	for rows.Next() {
		var m provider.Message
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// ClearSession deletes a session's messages.
func (s *Store) ClearSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM messages WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
