package applications

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teamspace-hq/teamspace/common/database"
	"github.com/teamspace-hq/teamspace/workspace/internal/pagination"
)

// PostgresStore implements Catalog and Repository on Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const applicationColumns = `
	id, company_id, is_default, published,
	code, name, icon, description, website, categories,
	hooks_url, private_key, created_at, updated_at, version`

func scanApplication(row pgx.Row) (*Application, error) {
	var app Application
	err := row.Scan(
		&app.ID, &app.CompanyID, &app.IsDefault, &app.Published,
		&app.Identity.Code, &app.Identity.Name, &app.Identity.Icon, &app.Identity.Description,
		&app.Identity.Website, &app.Identity.Categories,
		&app.API.HooksURL, &app.API.PrivateKey,
		&app.Stats.CreatedAt, &app.Stats.UpdatedAt, &app.Stats.Version,
	)
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (s *PostgresStore) GetApplication(ctx context.Context, id string) (*Application, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	app, err := scanApplication(s.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return app, nil
}

func (s *PostgresStore) ListApplications(ctx context.Context) ([]Application, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT `+applicationColumns+` FROM applications ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	var apps []Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, *app)
	}
	return apps, rows.Err()
}

func (s *PostgresStore) UpsertApplication(ctx context.Context, app Application) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	categories := app.Identity.Categories
	if categories == nil {
		categories = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO applications (
			id, company_id, is_default, published,
			code, name, icon, description, website, categories,
			hooks_url, private_key, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW(), 1)
		ON CONFLICT (id) DO UPDATE SET
			company_id = EXCLUDED.company_id,
			is_default = EXCLUDED.is_default,
			published = EXCLUDED.published,
			code = EXCLUDED.code,
			name = EXCLUDED.name,
			icon = EXCLUDED.icon,
			description = EXCLUDED.description,
			website = EXCLUDED.website,
			categories = EXCLUDED.categories,
			hooks_url = EXCLUDED.hooks_url,
			private_key = EXCLUDED.private_key,
			updated_at = NOW(),
			version = applications.version + 1`,
		app.ID, app.CompanyID, app.IsDefault, app.Published,
		app.Identity.Code, app.Identity.Name, app.Identity.Icon, app.Identity.Description,
		app.Identity.Website, categories,
		app.API.HooksURL, app.API.PrivateKey,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert application: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetInstallation(ctx context.Context, companyID, applicationID string) (*Installation, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	var inst Installation
	err := s.pool.QueryRow(ctx, `
		SELECT company_id, application_id, created_at, created_by
		FROM company_applications
		WHERE company_id = $1 AND application_id = $2`,
		companyID, applicationID,
	).Scan(&inst.CompanyID, &inst.ApplicationID, &inst.CreatedAt, &inst.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotInstalled
		}
		return nil, fmt.Errorf("failed to get installation: %w", err)
	}
	return &inst, nil
}

func (s *PostgresStore) ListInstallations(ctx context.Context, companyID string, after *pagination.Cursor, limit int) ([]Installation, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	var (
		rows pgx.Rows
		err  error
	)
	if after == nil {
		rows, err = s.pool.Query(ctx, `
			SELECT company_id, application_id, created_at, created_by
			FROM company_applications
			WHERE company_id = $1
			ORDER BY created_at, application_id
			LIMIT $2`, companyID, limit)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT company_id, application_id, created_at, created_by
			FROM company_applications
			WHERE company_id = $1 AND (created_at, application_id) > ($2, $3)
			ORDER BY created_at, application_id
			LIMIT $4`, companyID, after.CreatedAt, after.ID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list installations: %w", err)
	}
	defer rows.Close()

	out := make([]Installation, 0, limit)
	for rows.Next() {
		var inst Installation
		if err := rows.Scan(&inst.CompanyID, &inst.ApplicationID, &inst.CreatedAt, &inst.CreatedBy); err != nil {
			return nil, fmt.Errorf("failed to scan installation: %w", err)
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

// Install relies on the primary key so concurrent installs of the same
// application resolve to one row.
func (s *PostgresStore) Install(ctx context.Context, inst Installation) (Installation, bool, error) {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO company_applications (company_id, application_id, created_at, created_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (company_id, application_id) DO NOTHING`,
		inst.CompanyID, inst.ApplicationID, inst.CreatedAt, inst.CreatedBy)
	if err != nil {
		return Installation{}, false, fmt.Errorf("failed to install application: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return inst, true, nil
	}

	existing, err := s.GetInstallation(ctx, inst.CompanyID, inst.ApplicationID)
	if err != nil {
		return Installation{}, false, err
	}
	return *existing, false, nil
}

func (s *PostgresStore) Uninstall(ctx context.Context, companyID, applicationID string) (bool, error) {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM company_applications WHERE company_id = $1 AND application_id = $2`,
		companyID, applicationID)
	if err != nil {
		return false, fmt.Errorf("failed to uninstall application: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
