package voice

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the voice tables. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS custom_voices (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    gender        TEXT NOT NULL,
    style         TEXT NOT NULL DEFAULT '',
    base_voice    TEXT NOT NULL,
    flag          TEXT NOT NULL DEFAULT '',
    description   TEXT NOT NULL DEFAULT '',
    default_pitch INTEGER NOT NULL DEFAULT 0,
    default_speed DOUBLE PRECISION NOT NULL DEFAULT 1,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS hidden_voices (
    id        TEXT PRIMARY KEY,
    hidden_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new [PostgresStore] that uses the given database
// connection or pool. The caller is responsible for calling
// [PostgresStore.Migrate] to ensure the schema exists before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("voice: migrate: %w", err)
	}
	return nil
}

// SaveCustom implements [Store.SaveCustom].
func (s *PostgresStore) SaveCustom(ctx context.Context, p Preset) error {
	if p.ID == "" || p.Name == "" {
		return fmt.Errorf("voice: save custom: id and name are required")
	}
	const query = `
		INSERT INTO custom_voices (
			id, name, gender, style, base_voice, flag, description,
			default_pitch, default_speed
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			gender = EXCLUDED.gender,
			style = EXCLUDED.style,
			base_voice = EXCLUDED.base_voice,
			flag = EXCLUDED.flag,
			description = EXCLUDED.description,
			default_pitch = EXCLUDED.default_pitch,
			default_speed = EXCLUDED.default_speed`

	_, err := s.db.Exec(ctx, query,
		p.ID, p.Name, string(p.Gender), p.Style, p.BaseVoice, p.Flag, p.Description,
		p.DefaultPitch, p.DefaultSpeed,
	)
	if err != nil {
		return fmt.Errorf("voice: save custom %q: %w", p.ID, err)
	}
	return nil
}

// ListCustom implements [Store.ListCustom].
func (s *PostgresStore) ListCustom(ctx context.Context) ([]Preset, error) {
	const query = `
		SELECT id, name, gender, style, base_voice, flag, description,
		       default_pitch, default_speed
		FROM custom_voices
		ORDER BY created_at DESC, id DESC`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("voice: list custom: %w", err)
	}
	defer rows.Close()

	var out []Preset
	for rows.Next() {
		var (
			p      Preset
			gender string
		)
		if err := rows.Scan(
			&p.ID, &p.Name, &gender, &p.Style, &p.BaseVoice, &p.Flag, &p.Description,
			&p.DefaultPitch, &p.DefaultSpeed,
		); err != nil {
			return nil, fmt.Errorf("voice: list custom scan: %w", err)
		}
		p.Gender = Gender(gender)
		p.IsCustom = true
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("voice: list custom: %w", err)
	}
	return out, nil
}

// SetHidden implements [Store.SetHidden].
func (s *PostgresStore) SetHidden(ctx context.Context, id string, hidden bool) error {
	query := `DELETE FROM hidden_voices WHERE id = $1`
	if hidden {
		query = `INSERT INTO hidden_voices (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`
	}
	if _, err := s.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("voice: set hidden %q: %w", id, err)
	}
	return nil
}

// HiddenIDs implements [Store.HiddenIDs].
func (s *PostgresStore) HiddenIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM hidden_voices ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("voice: hidden ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("voice: hidden ids scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("voice: hidden ids: %w", err)
	}
	return ids, nil
}

// Ping implements [Store.Ping] with a trivial round trip.
func (s *PostgresStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("voice: ping: empty result")
		}
		return fmt.Errorf("voice: ping: %w", err)
	}
	return nil
}
