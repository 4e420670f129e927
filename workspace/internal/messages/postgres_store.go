package messages

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teamspace-hq/teamspace/common/database"
	"github.com/teamspace-hq/teamspace/workspace/internal/pagination"
)

// PostgresStore implements Store on the threads and messages tables.
// Participants and files are stored as jsonb.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const messageColumns = `
	id, thread_id, company_id, workspace_id, channel_id, user_id,
	text, files, created_at, updated_at`

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(
		&m.ID, &m.ThreadID, &m.CompanyID, &m.WorkspaceID, &m.ChannelID, &m.UserID,
		&m.Text, &m.Files, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func filesParam(files []MessageFile) []MessageFile {
	if files == nil {
		return []MessageFile{}
	}
	return files
}

func (s *PostgresStore) CreateThread(ctx context.Context, thread Thread, head Message) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO threads (company_id, id, created_by, created_at, participants)
		VALUES ($1, $2, $3, $4, $5)`,
		thread.CompanyID, thread.ID, thread.CreatedBy, thread.CreatedAt, thread.Participants); err != nil {
		return fmt.Errorf("failed to insert thread: %w", err)
	}
	if err := insertMessage(ctx, tx, head); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit thread: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetThread(ctx context.Context, companyID, threadID string) (*Thread, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	var t Thread
	err := s.pool.QueryRow(ctx, `
		SELECT company_id, id, created_by, created_at, participants
		FROM threads WHERE company_id = $1 AND id = $2`, companyID, threadID,
	).Scan(&t.CompanyID, &t.ID, &t.CreatedBy, &t.CreatedAt, &t.Participants)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrThreadNotFound
		}
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}
	return &t, nil
}

func (s *PostgresStore) DeleteThread(ctx context.Context, companyID, threadID string) (bool, error) {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `DELETE FROM threads WHERE company_id = $1 AND id = $2`, companyID, threadID)
	if err != nil {
		return false, fmt.Errorf("failed to delete thread: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) GetMessage(ctx context.Context, companyID, threadID, messageID string) (*Message, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	m, err := scanMessage(s.pool.QueryRow(ctx, `
		SELECT `+messageColumns+`
		FROM messages WHERE company_id = $1 AND thread_id = $2 AND id = $3`,
		companyID, threadID, messageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, companyID, threadID string, after *pagination.Cursor, limit int) ([]Message, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	var (
		rows pgx.Rows
		err  error
	)
	if after == nil {
		rows, err = s.pool.Query(ctx, `
			SELECT `+messageColumns+`
			FROM messages
			WHERE company_id = $1 AND thread_id = $2
			ORDER BY created_at, id
			LIMIT $3`, companyID, threadID, limit)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT `+messageColumns+`
			FROM messages
			WHERE company_id = $1 AND thread_id = $2 AND (created_at, id) > ($3, $4)
			ORDER BY created_at, id
			LIMIT $5`, companyID, threadID, after.CreatedAt, after.ID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	out := make([]Message, 0, limit)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) InsertMessage(ctx context.Context, msg Message) (bool, error) {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO messages (`+messageColumns+`)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		WHERE EXISTS (SELECT 1 FROM threads WHERE company_id = $3 AND id = $2)
		ON CONFLICT (company_id, thread_id, id) DO NOTHING`,
		msg.ID, msg.ThreadID, msg.CompanyID, msg.WorkspaceID, msg.ChannelID, msg.UserID,
		msg.Text, filesParam(msg.Files), msg.CreatedAt, msg.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert message: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func insertMessage(ctx context.Context, tx pgx.Tx, msg Message) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO messages (`+messageColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		msg.ID, msg.ThreadID, msg.CompanyID, msg.WorkspaceID, msg.ChannelID, msg.UserID,
		msg.Text, filesParam(msg.Files), msg.CreatedAt, msg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateMessage(ctx context.Context, msg Message) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `
		UPDATE messages SET text = $4, files = $5, updated_at = $6
		WHERE company_id = $1 AND thread_id = $2 AND id = $3`,
		msg.CompanyID, msg.ThreadID, msg.ID, msg.Text, filesParam(msg.Files), msg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteMessage(ctx context.Context, companyID, threadID, messageID string) (bool, error) {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM messages WHERE company_id = $1 AND thread_id = $2 AND id = $3`,
		companyID, threadID, messageID)
	if err != nil {
		return false, fmt.Errorf("failed to delete message: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) CountReplies(ctx context.Context, companyID, threadID string) (int, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE company_id = $1 AND thread_id = $2 AND id <> $2`, companyID, threadID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count replies: %w", err)
	}
	return n, nil
}
