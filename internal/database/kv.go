package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// GetValues returns the stored values for keys. Missing keys are absent
// from the result.
func (db *DB) GetValues(ctx context.Context, keys ...string) (map[string]string, error) {
	rows, err := db.pool.Query(ctx, `SELECT key, value FROM kv_store WHERE key = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("query values: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string, len(keys))
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan value row: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate values: %w", err)
	}

	return values, nil
}

// PutValues upserts all pairs in a single transaction
func (db *DB) PutValues(ctx context.Context, values map[string]string) error {
	return db.WithTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO kv_store (key, value) VALUES ($1, $2)
			ON CONFLICT (key)
			DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
		`
		for key, value := range values {
			if _, err := tx.Exec(ctx, query, key, value); err != nil {
				return fmt.Errorf("put value %s: %w", key, err)
			}
		}
		return nil
	})
}

// DeleteValues removes keys; deleting a missing key is not an error
func (db *DB) DeleteValues(ctx context.Context, keys ...string) error {
	if _, err := db.pool.Exec(ctx, `DELETE FROM kv_store WHERE key = ANY($1)`, keys); err != nil {
		return fmt.Errorf("delete values: %w", err)
	}
	return nil
}
