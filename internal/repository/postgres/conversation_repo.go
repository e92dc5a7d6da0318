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

type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

func (r *ConversationRepo) Create(ctx context.Context, conv *domain.Conversation) error {
	var name *string
	var adminID *uuid.UUID
	var description, avatar *string
	if conv.GroupData != nil {
		name = &conv.GroupData.Name
		adminID = conv.GroupData.AdminID
		description = conv.GroupData.Description
		avatar = conv.GroupData.Avatar
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO conversations (id, is_group, group_name, group_admin_id, group_description, group_avatar, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		conv.ID, conv.IsGroup, name, adminID, description, avatar, conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		return err
	}

	for _, userID := range conv.ParticipantIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			conv.ID, userID,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *ConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	query := `
		SELECT id, is_group, group_name, group_admin_id, group_description, group_avatar,
			last_message_id, created_at, updated_at
		FROM conversations WHERE id = $1`
	conv, err := r.scanConversation(r.pool.QueryRow(ctx, query, id))
	if err != nil || conv == nil {
		return conv, err
	}
	if err := r.loadParticipantIDs(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (r *ConversationRepo) GetDirect(ctx context.Context, user1ID, user2ID uuid.UUID) (*domain.Conversation, error) {
	query := `
		SELECT c.id, c.is_group, c.group_name, c.group_admin_id, c.group_description, c.group_avatar,
			c.last_message_id, c.created_at, c.updated_at
		FROM conversations c
		WHERE c.is_group = FALSE
			AND EXISTS (SELECT 1 FROM conversation_participants WHERE conversation_id = c.id AND user_id = $1)
			AND EXISTS (SELECT 1 FROM conversation_participants WHERE conversation_id = c.id AND user_id = $2)
		LIMIT 1`
	conv, err := r.scanConversation(r.pool.QueryRow(ctx, query, user1ID, user2ID))
	if err != nil || conv == nil {
		return conv, err
	}
	if err := r.loadParticipantIDs(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (r *ConversationRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	query := `
		SELECT c.id, c.is_group, c.group_name, c.group_admin_id, c.group_description, c.group_avatar,
			c.last_message_id, c.created_at, c.updated_at
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE p.user_id = $1
		ORDER BY c.updated_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		conv, err := r.scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, *conv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range convs {
		participants, err := r.ListParticipants(ctx, convs[i].ID)
		if err != nil {
			return nil, err
		}
		convs[i].Participants = participants
		for _, p := range participants {
			convs[i].ParticipantIDs = append(convs[i].ParticipantIDs, p.ID)
		}
	}
	return convs, nil
}

func (r *ConversationRepo) SetLastMessage(ctx context.Context, id uuid.UUID, messageID *uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE conversations SET last_message_id = $2, updated_at = $3 WHERE id = $1`,
		id, messageID, time.Now(),
	)
	return err
}

func (r *ConversationRepo) AddParticipant(ctx context.Context, id, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		id, userID,
	)
	return err
}

func (r *ConversationRepo) RemoveParticipant(ctx context.Context, id, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2`,
		id, userID,
	)
	return err
}

func (r *ConversationRepo) ListParticipants(ctx context.Context, id uuid.UUID) ([]domain.Participant, error) {
	query := `
		SELECT u.id, u.username, u.avatar, u.is_online, u.last_seen
		FROM conversation_participants p
		JOIN users u ON u.id = p.user_id
		WHERE p.conversation_id = $1
		ORDER BY u.username`

	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.ID, &p.Username, &p.Avatar, &p.IsOnline, &p.LastSeen); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (r *ConversationRepo) SetGroupName(ctx context.Context, id uuid.UUID, name string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE conversations SET group_name = $2, updated_at = $3 WHERE id = $1`,
		id, name, time.Now(),
	)
	return err
}

func (r *ConversationRepo) scanConversation(row pgx.Row) (*domain.Conversation, error) {
	var conv domain.Conversation
	var name, description, avatar *string
	var adminID *uuid.UUID
	err := row.Scan(
		&conv.ID, &conv.IsGroup, &name, &adminID, &description, &avatar,
		&conv.LastMessageID, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if conv.IsGroup && name != nil {
		conv.GroupData = &domain.GroupData{
			Name:        *name,
			AdminID:     adminID,
			Description: description,
			Avatar:      avatar,
		}
	}
	return &conv, nil
}

func (r *ConversationRepo) loadParticipantIDs(ctx context.Context, conv *domain.Conversation) error {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM conversation_participants WHERE conversation_id = $1`, conv.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return err
		}
		conv.ParticipantIDs = append(conv.ParticipantIDs, id)
	}
	return rows.Err()
}
