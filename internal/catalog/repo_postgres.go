package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

type rowScanner interface {
	Scan(dest ...any) error
}

const scenarioColumns = `id, title, description, difficulty, category, agent_id, agent_name, objectives, created_at, updated_at`

func scanScenario(row rowScanner) (Scenario, error) {
	var (
		s    Scenario
		objs []byte
	)
	if err := row.Scan(&s.ID, &s.Title, &s.Description, &s.Difficulty, &s.Category,
		&s.AgentID, &s.AgentName, &objs, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return Scenario{}, err
	}
	if err := decodeJSON(objs, &s.Objectives); err != nil {
		return Scenario{}, fmt.Errorf("decode objectives: %w", err)
	}
	return s, nil
}

func (r *PostgresRepo) CreateScenario(ctx context.Context, s Scenario) error {
	objs, err := json.Marshal(nonNil(s.Objectives))
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO scenarios (`+scenarioColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10)`,
		s.ID, s.Title, s.Description, string(s.Difficulty), s.Category, s.AgentID, s.AgentName, string(objs), s.CreatedAt, s.UpdatedAt)
	return err
}

func (r *PostgresRepo) UpdateScenario(ctx context.Context, s Scenario) error {
	objs, err := json.Marshal(nonNil(s.Objectives))
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE scenarios SET title = $2, description = $3, difficulty = $4, category = $5,
  agent_id = $6, agent_name = $7, objectives = $8::jsonb, updated_at = $9
WHERE id = $1`,
		s.ID, s.Title, s.Description, string(s.Difficulty), s.Category, s.AgentID, s.AgentName, string(objs), s.UpdatedAt)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresRepo) DeleteScenario(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scenarios WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresRepo) GetScenario(ctx context.Context, id string) (Scenario, error) {
	s, err := scanScenario(r.db.QueryRowContext(ctx, `SELECT `+scenarioColumns+` FROM scenarios WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Scenario{}, ErrNotFound
	}
	return s, err
}

func (r *PostgresRepo) ListScenarios(ctx context.Context) ([]Scenario, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+scenarioColumns+` FROM scenarios ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Scenario{}
	for rows.Next() {
		s, err := scanScenario(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) CountScenarios(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM scenarios`).Scan(&n)
	return n, err
}

const sellerColumns = `id, name, description, external_agent_id, image_url, profile_picture_url, property_info, is_placeholder, comps, created_at, updated_at`

func scanSeller(row rowScanner) (Seller, error) {
	var (
		s           Seller
		info, comps []byte
	)
	if err := row.Scan(&s.ID, &s.Name, &s.Description, &s.ExternalAgentID, &s.ImageURL, &s.ProfilePictureURL,
		&info, &s.IsPlaceholder, &comps, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return Seller{}, err
	}
	if err := decodeJSON(info, &s.PropertyInfo); err != nil {
		return Seller{}, fmt.Errorf("decode property_info: %w", err)
	}
	if err := decodeJSON(comps, &s.Comps); err != nil {
		return Seller{}, fmt.Errorf("decode comps: %w", err)
	}
	return s, nil
}

func sellerJSON(s Seller) (info, comps string, err error) {
	b, err := json.Marshal(s.PropertyInfo)
	if err != nil {
		return "", "", err
	}
	c, err := json.Marshal(nonNil(s.Comps))
	if err != nil {
		return "", "", err
	}
	return string(b), string(c), nil
}

func (r *PostgresRepo) CreateSeller(ctx context.Context, s Seller) error {
	info, comps, err := sellerJSON(s)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO sellers (`+sellerColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9::jsonb, $10, $11)`,
		s.ID, s.Name, s.Description, s.ExternalAgentID, s.ImageURL, s.ProfilePictureURL, info, s.IsPlaceholder, comps, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r *PostgresRepo) UpdateSeller(ctx context.Context, s Seller) error {
	info, comps, err := sellerJSON(s)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE sellers SET name = $2, description = $3, external_agent_id = $4, image_url = $5,
  profile_picture_url = $6, property_info = $7::jsonb, is_placeholder = $8, comps = $9::jsonb, updated_at = $10
WHERE id = $1`,
		s.ID, s.Name, s.Description, s.ExternalAgentID, s.ImageURL, s.ProfilePictureURL, info, s.IsPlaceholder, comps, s.UpdatedAt)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresRepo) DeleteSeller(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sellers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresRepo) GetSeller(ctx context.Context, id string) (Seller, error) {
	s, err := scanSeller(r.db.QueryRowContext(ctx, `SELECT `+sellerColumns+` FROM sellers WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Seller{}, ErrNotFound
	}
	return s, err
}

func (r *PostgresRepo) ListSellers(ctx context.Context) ([]Seller, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sellerColumns+` FROM sellers ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Seller{}
	for rows.Next() {
		s, err := scanSeller(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func decodeJSON(b []byte, v any) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, v)
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
