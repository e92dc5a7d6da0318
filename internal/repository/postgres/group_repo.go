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

const groupColumns = `g.id, g.name, g.description, g.avatar, g.admin_id, g.conversation_id,
	g.type, g.invite_code, g.only_admin_can_message, g.created_at, g.updated_at`

type GroupRepo struct {
	pool *pgxpool.Pool
}

func NewGroupRepo(pool *pgxpool.Pool) *GroupRepo {
	return &GroupRepo{pool: pool}
}

func (r *GroupRepo) Create(ctx context.Context, group *domain.Group) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO groups (id, name, description, avatar, admin_id, conversation_id,
			type, invite_code, only_admin_can_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		group.ID, group.Name, group.Description, group.Avatar, group.AdminID, group.ConversationID,
		group.Type, group.InviteCode, group.Settings.OnlyAdminCanMessage, group.CreatedAt, group.UpdatedAt,
	)
	if err != nil {
		return err
	}

	for _, userID := range group.MemberIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			group.ID, userID,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *GroupRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Group, error) {
	return r.getOne(ctx, "SELECT "+groupColumns+" FROM groups g WHERE g.id = $1", id)
}

func (r *GroupRepo) GetByInviteCode(ctx context.Context, code string) (*domain.Group, error) {
	return r.getOne(ctx, "SELECT "+groupColumns+" FROM groups g WHERE g.invite_code = $1", code)
}

func (r *GroupRepo) ListByMember(ctx context.Context, userID uuid.UUID) ([]domain.Group, error) {
	query := `
		SELECT ` + groupColumns + `
		FROM groups g
		JOIN group_members gm ON gm.group_id = g.id
		WHERE gm.user_id = $1
		ORDER BY g.updated_at DESC`
	return r.list(ctx, query, userID)
}

func (r *GroupRepo) ListIDsByMember(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT group_id FROM group_members WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *GroupRepo) ListPublic(ctx context.Context) ([]domain.Group, error) {
	return r.list(ctx, "SELECT "+groupColumns+" FROM groups g WHERE g.type = 'public' ORDER BY g.created_at DESC")
}

func (r *GroupRepo) AddMember(ctx context.Context, groupID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		groupID, userID,
	)
	return err
}

func (r *GroupRepo) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`,
		groupID, userID,
	)
	return err
}

func (r *GroupRepo) Rename(ctx context.Context, groupID uuid.UUID, name string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE groups SET name = $2, updated_at = $3 WHERE id = $1`,
		groupID, name, time.Now(),
	)
	return err
}

func (r *GroupRepo) SetOnlyAdminCanMessage(ctx context.Context, groupID uuid.UUID, enabled bool) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE groups SET only_admin_can_message = $2, updated_at = $3 WHERE id = $1`,
		groupID, enabled, time.Now(),
	)
	return err
}

func (r *GroupRepo) getOne(ctx context.Context, query string, arg any) (*domain.Group, error) {
	group, err := scanGroup(r.pool.QueryRow(ctx, query, arg))
	if err != nil || group == nil {
		return group, err
	}
	if err := r.loadMembers(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

func (r *GroupRepo) list(ctx context.Context, query string, args ...any) ([]domain.Group, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []domain.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *group)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range groups {
		if err := r.loadMembers(ctx, &groups[i]); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

func (r *GroupRepo) loadMembers(ctx context.Context, group *domain.Group) error {
	query := `
		SELECT u.id, u.username, u.avatar, u.is_online, u.last_seen
		FROM group_members gm
		JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = $1
		ORDER BY u.username`

	rows, err := r.pool.Query(ctx, query, group.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.ID, &p.Username, &p.Avatar, &p.IsOnline, &p.LastSeen); err != nil {
			return err
		}
		group.Members = append(group.Members, p)
		group.MemberIDs = append(group.MemberIDs, p.ID)
	}
	return rows.Err()
}

func scanGroup(row pgx.Row) (*domain.Group, error) {
	var g domain.Group
	err := row.Scan(
		&g.ID, &g.Name, &g.Description, &g.Avatar, &g.AdminID, &g.ConversationID,
		&g.Type, &g.InviteCode, &g.Settings.OnlyAdminCanMessage, &g.CreatedAt, &g.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}
