package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/parley-chat/parley/internal/domain"
)

const messageColumns = `m.id, m.conversation_id, m.sender_id, m.content, m.type, m.file_url,
	m.status, m.delivered_at, m.seen_at, m.is_edited, m.is_deleted,
	m.parent_message_id, m.is_forwarded, m.original_message_id, m.created_at, m.updated_at`

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (id, conversation_id, sender_id, content, type, file_url,
			status, delivered_at, seen_at, is_edited, is_deleted,
			parent_message_id, is_forwarded, original_message_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := r.pool.Exec(ctx, query,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Content, msg.Type, msg.FileURL,
		msg.Status, msg.DeliveredAt, msg.SeenAt, msg.IsEdited, msg.IsDeleted,
		msg.ParentMessageID, msg.IsForwarded, msg.OriginalMessageID, msg.CreatedAt, msg.UpdatedAt,
	)
	return err
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `, COALESCE(u.username, ''), u.avatar
		FROM messages m
		LEFT JOIN users u ON m.sender_id = u.id
		WHERE m.id = $1`
	var msg domain.Message
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.Type, &msg.FileURL,
		&msg.Status, &msg.DeliveredAt, &msg.SeenAt, &msg.IsEdited, &msg.IsDeleted,
		&msg.ParentMessageID, &msg.IsForwarded, &msg.OriginalMessageID, &msg.CreatedAt, &msg.UpdatedAt,
		&msg.SenderUsername, &msg.SenderAvatar,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID, page, limit int) ([]domain.Message, int, error) {
	offset := (page - 1) * limit
	query := `
		SELECT ` + messageColumns + `, COALESCE(u.username, ''), u.avatar
		FROM messages m
		LEFT JOIN users u ON m.sender_id = u.id
		WHERE m.conversation_id = $1
		ORDER BY m.created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, conversationID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.Type, &msg.FileURL,
			&msg.Status, &msg.DeliveredAt, &msg.SeenAt, &msg.IsEdited, &msg.IsDeleted,
			&msg.ParentMessageID, &msg.IsForwarded, &msg.OriginalMessageID, &msg.CreatedAt, &msg.UpdatedAt,
			&msg.SenderUsername, &msg.SenderAvatar,
		); err != nil {
			return nil, 0, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = $1`, conversationID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	// Query returns newest first, history is served chronological.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, total, nil
}

func (r *MessageRepo) MarkSeen(ctx context.Context, id uuid.UUID, seenAt time.Time) (*domain.Message, error) {
	query := `
		UPDATE messages SET status = 'seen', seen_at = $2, updated_at = $2
		WHERE id = $1 AND status <> 'seen'
		RETURNING id, conversation_id, sender_id, content, type, file_url,
			status, delivered_at, seen_at, is_edited, is_deleted,
			parent_message_id, is_forwarded, original_message_id, created_at, updated_at`
	var msg domain.Message
	err := r.pool.QueryRow(ctx, query, id, seenAt).Scan(
		&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.Type, &msg.FileURL,
		&msg.Status, &msg.DeliveredAt, &msg.SeenAt, &msg.IsEdited, &msg.IsDeleted,
		&msg.ParentMessageID, &msg.IsForwarded, &msg.OriginalMessageID, &msg.CreatedAt, &msg.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *MessageRepo) UpdateContent(ctx context.Context, id, senderID uuid.UUID, content string) (*domain.Message, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE messages SET content = $3, is_edited = TRUE, updated_at = $4
		WHERE id = $1 AND sender_id = $2`,
		id, senderID, content, time.Now(),
	)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

func (r *MessageRepo) SoftDelete(ctx context.Context, id, senderID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE messages SET content = $3, is_deleted = TRUE, updated_at = $4
		WHERE id = $1 AND sender_id = $2`,
		id, senderID, domain.DeletedPlaceholder, time.Now(),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *MessageRepo) DeleteByConversation(ctx context.Context, conversationID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE conversation_id = $1`, conversationID)
	return err
}
