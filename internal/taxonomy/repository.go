package taxonomy

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedYAML []byte

// Repository reads the taxonomy and location tables. The engine never writes
// them; SeedDefaults only fills an empty database on first start.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Load reads the full taxonomy snapshot from the database.
func (r *Repository) Load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	rows, err := r.pool.Query(ctx, `
		SELECT code, name, category
		FROM taxonomy_entries
		ORDER BY code
	`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load taxonomy entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Code, &e.Name, &e.Category); err != nil {
			return Snapshot{}, err
		}
		snap.Entries = append(snap.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, err
	}

	locRows, err := r.pool.Query(ctx, `
		SELECT name FROM report_locations ORDER BY name
	`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load locations: %w", err)
	}
	defer locRows.Close()

	for locRows.Next() {
		var name string
		if err := locRows.Scan(&name); err != nil {
			return Snapshot{}, err
		}
		snap.Locations = append(snap.Locations, name)
	}
	if err := locRows.Err(); err != nil {
		return Snapshot{}, err
	}

	return snap, nil
}

type seedFile struct {
	Entries   []Entry  `yaml:"entries"`
	Locations []string `yaml:"locations"`
}

// SeedDefaults inserts the embedded default taxonomy when the table is empty,
// so a fresh deployment can classify before the configuration collaborator
// has pushed a real taxonomy.
func (r *Repository) SeedDefaults(ctx context.Context) error {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM taxonomy_entries`).Scan(&count); err != nil {
		return fmt.Errorf("count taxonomy entries: %w", err)
	}
	if count > 0 {
		return nil
	}

	var seed seedFile
	if err := yaml.Unmarshal(seedYAML, &seed); err != nil {
		return fmt.Errorf("parse taxonomy seed: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, e := range seed.Entries {
		if _, err := tx.Exec(ctx, `
			INSERT INTO taxonomy_entries (code, name, category)
			VALUES ($1, $2, $3)
			ON CONFLICT (code) DO NOTHING
		`, e.Code, e.Name, e.Category); err != nil {
			return err
		}
	}
	for _, loc := range seed.Locations {
		if _, err := tx.Exec(ctx, `
			INSERT INTO report_locations (name)
			VALUES ($1)
			ON CONFLICT (name) DO NOTHING
		`, loc); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
