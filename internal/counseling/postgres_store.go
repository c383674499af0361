package counseling

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresStore persists resources in the counseling_resources table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed resource store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const resourceColumns = `id, name, category, phone, website, description, operating_hours,
	is_urgent, is_available, created_at, updated_at, deleted_at`

func (p *PostgresStore) Create(ctx context.Context, r *Resource) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO counseling_resources (`+resourceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULL)`,
		r.ID, r.Name, string(r.Category), r.Phone, r.Website, r.Description, r.OperatingHours,
		r.Urgent, r.Available, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create counseling resource: %w", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Resource, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+resourceColumns+`
		FROM counseling_resources
		WHERE id = $1 AND deleted_at IS NULL`, id)
	r, err := scanResource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get counseling resource: %w", err)
	}
	return r, nil
}

func (p *PostgresStore) List(ctx context.Context, opts ListOptions) ([]*Resource, error) {
	query := `
		SELECT ` + resourceColumns + `
		FROM counseling_resources
		WHERE deleted_at IS NULL
		  AND ($1 = FALSE OR is_available)`
	args := []any{opts.AvailableOnly}
	if opts.After != nil {
		query += ` AND (created_at, id) > ($2, $3)`
		args = append(args, opts.After.CreatedAt, opts.After.ID)
	}
	query += ` ORDER BY created_at, id`
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list counseling resources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan counseling resource: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (p *PostgresStore) Update(ctx context.Context, r *Resource) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE counseling_resources SET
			name = $2, category = $3, phone = $4, website = $5, description = $6,
			operating_hours = $7, is_urgent = $8, is_available = $9, updated_at = $10
		WHERE id = $1 AND deleted_at IS NULL`,
		r.ID, r.Name, string(r.Category), r.Phone, r.Website, r.Description,
		r.OperatingHours, r.Urgent, r.Available, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update counseling resource: %w", err)
	}
	return requireOneRow(res)
}

func (p *PostgresStore) SoftDelete(ctx context.Context, id string, at time.Time) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE counseling_resources SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL`, id, at)
	if err != nil {
		return fmt.Errorf("failed to delete counseling resource: %w", err)
	}
	return requireOneRow(res)
}

func (p *PostgresStore) ListUrgentPhones(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT phone
		FROM counseling_resources
		WHERE is_urgent AND deleted_at IS NULL AND phone <> ''
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list urgent phones: %w", err)
	}
	defer func() { _ = rows.Close() }()

	phones := []string{}
	for rows.Next() {
		var phone string
		if err := rows.Scan(&phone); err != nil {
			return nil, err
		}
		phones = append(phones, phone)
	}
	return phones, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResource(s scanner) (*Resource, error) {
	var (
		r         Resource
		category  string
		deletedAt sql.NullTime
	)
	err := s.Scan(&r.ID, &r.Name, &category, &r.Phone, &r.Website, &r.Description,
		&r.OperatingHours, &r.Urgent, &r.Available, &r.CreatedAt, &r.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	r.Category = Category(category)
	if deletedAt.Valid {
		r.DeletedAt = &deletedAt.Time
	}
	return &r, nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
