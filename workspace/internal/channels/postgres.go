package channels

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teamspace-hq/teamspace/common/database"
	"github.com/teamspace-hq/teamspace/workspace/internal/pagination"
)

// PostgresRepository implements Repository on the channels and
// channel_members tables.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const channelColumns = `
	c.company_id, c.workspace_id, c.id, c.name, c.description, c.visibility,
	c.created_by, c.created_at, c.updated_at,
	COALESCE(ARRAY(
		SELECT m.user_id FROM channel_members m
		WHERE m.company_id = c.company_id AND m.workspace_id = c.workspace_id AND m.channel_id = c.id
		ORDER BY m.joined_at, m.user_id), '{}')`

func scanChannel(row pgx.Row) (*Channel, error) {
	var ch Channel
	err := row.Scan(
		&ch.CompanyID, &ch.WorkspaceID, &ch.ID, &ch.Name, &ch.Description, &ch.Visibility,
		&ch.CreatedBy, &ch.CreatedAt, &ch.UpdatedAt, &ch.Members,
	)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (r *PostgresRepository) GetChannel(ctx context.Context, key Key) (*Channel, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	ch, err := scanChannel(r.pool.QueryRow(ctx, `
		SELECT `+channelColumns+`
		FROM channels c
		WHERE c.company_id = $1 AND c.workspace_id = $2 AND c.id = $3`,
		key.CompanyID, key.WorkspaceID, key.ChannelID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChannelNotFound
		}
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return ch, nil
}

func (r *PostgresRepository) ListChannels(ctx context.Context, companyID, workspaceID string, after *pagination.Cursor, limit int) ([]Channel, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	var (
		rows pgx.Rows
		err  error
	)
	if after == nil {
		rows, err = r.pool.Query(ctx, `
			SELECT `+channelColumns+`
			FROM channels c
			WHERE c.company_id = $1 AND c.workspace_id = $2
			ORDER BY c.created_at, c.id
			LIMIT $3`, companyID, workspaceID, limit)
	} else {
		rows, err = r.pool.Query(ctx, `
			SELECT `+channelColumns+`
			FROM channels c
			WHERE c.company_id = $1 AND c.workspace_id = $2 AND (c.created_at, c.id) > ($3, $4)
			ORDER BY c.created_at, c.id
			LIMIT $5`, companyID, workspaceID, after.CreatedAt, after.ID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer rows.Close()

	out := make([]Channel, 0, limit)
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		out = append(out, *ch)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) CreateChannel(ctx context.Context, ch Channel) (Channel, bool, error) {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Channel{}, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var retired bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM retired_channels
			WHERE company_id = $1 AND workspace_id = $2 AND id = $3)`,
		ch.CompanyID, ch.WorkspaceID, ch.ID).Scan(&retired)
	if err != nil {
		return Channel{}, false, fmt.Errorf("failed to check retired channels: %w", err)
	}
	if retired {
		return Channel{}, false, ErrChannelRetired
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO channels (company_id, workspace_id, id, name, description, visibility, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (company_id, workspace_id, id) DO NOTHING`,
		ch.CompanyID, ch.WorkspaceID, ch.ID, ch.Name, ch.Description, ch.Visibility,
		ch.CreatedBy, ch.CreatedAt, ch.UpdatedAt)
	if err != nil {
		return Channel{}, false, fmt.Errorf("failed to insert channel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if err := tx.Rollback(ctx); err != nil {
			return Channel{}, false, err
		}
		existing, err := r.GetChannel(ctx, keyOf(ch))
		if err != nil {
			return Channel{}, false, err
		}
		return *existing, false, nil
	}

	ch.Members = dedupe(ch.Members)
	if err := addMembers(ctx, tx, keyOf(ch), ch.Members); err != nil {
		return Channel{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Channel{}, false, fmt.Errorf("failed to commit channel: %w", err)
	}
	return ch, true, nil
}

func (r *PostgresRepository) UpdateChannel(ctx context.Context, ch Channel) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `
		UPDATE channels SET name = $4, description = $5, visibility = $6, updated_at = $7
		WHERE company_id = $1 AND workspace_id = $2 AND id = $3`,
		ch.CompanyID, ch.WorkspaceID, ch.ID, ch.Name, ch.Description, ch.Visibility, ch.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update channel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrChannelNotFound
	}
	return nil
}

// DeleteChannel removes the channel, members going with it through the
// foreign key cascade, and records the key in retired_channels.
func (r *PostgresRepository) DeleteChannel(ctx context.Context, key Key) (bool, error) {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`DELETE FROM channels WHERE company_id = $1 AND workspace_id = $2 AND id = $3`,
		key.CompanyID, key.WorkspaceID, key.ChannelID)
	if err != nil {
		return false, fmt.Errorf("failed to delete channel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO retired_channels (company_id, workspace_id, id, retired_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT DO NOTHING`,
		key.CompanyID, key.WorkspaceID, key.ChannelID)
	if err != nil {
		return false, fmt.Errorf("failed to retire channel: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit channel delete: %w", err)
	}
	return true, nil
}

func (r *PostgresRepository) AddMembers(ctx context.Context, key Key, userIDs []string) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := addMembers(ctx, tx, key, dedupe(userIDs)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func addMembers(ctx context.Context, tx pgx.Tx, key Key, userIDs []string) error {
	batch := &pgx.Batch{}
	for _, id := range userIDs {
		batch.Queue(`
			INSERT INTO channel_members (company_id, workspace_id, channel_id, user_id, joined_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT DO NOTHING`,
			key.CompanyID, key.WorkspaceID, key.ChannelID, id)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to add channel members: %w", err)
	}
	return nil
}

func (r *PostgresRepository) IsMember(ctx context.Context, key Key, userID string) (bool, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM channel_members
			WHERE company_id = $1 AND workspace_id = $2 AND channel_id = $3 AND user_id = $4)`,
		key.CompanyID, key.WorkspaceID, key.ChannelID, userID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check channel membership: %w", err)
	}
	return ok, nil
}

func (r *PostgresRepository) MemberChannels(ctx context.Context, companyID, userID string) ([]Ref, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT company_id, workspace_id, channel_id
		FROM channel_members
		WHERE company_id = $1 AND user_id = $2
		ORDER BY workspace_id, channel_id`, companyID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list member channels: %w", err)
	}
	defer rows.Close()

	var refs []Ref
	for rows.Next() {
		var ref Ref
		if err := rows.Scan(&ref.CompanyID, &ref.WorkspaceID, &ref.ChannelID); err != nil {
			return nil, fmt.Errorf("failed to scan member channel: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
