package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetPreference returns a person's stored value for key, or "".
func (r *Repository) GetPreference(ctx context.Context, personID int64, key string) (string, error) {
	var value string
	err := r.q.QueryRowContext(ctx, `
		SELECT value FROM preferences WHERE person_id = ? AND key = ?
	`, personID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get preference %q: %w", key, err)
	}
	return value, nil
}

// SetPreference stores value for key; an empty value removes the key.
func (r *Repository) SetPreference(ctx context.Context, personID int64, key, value string) error {
	if value == "" {
		if _, err := r.q.ExecContext(ctx, `DELETE FROM preferences WHERE person_id = ? AND key = ?`, personID, key); err != nil {
			return fmt.Errorf("delete preference %q: %w", key, err)
		}
		return nil
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO preferences(person_id, key, value) VALUES (?, ?, ?)
		ON CONFLICT(person_id, key) DO UPDATE SET value = excluded.value
	`, personID, key, value)
	if err != nil {
		return fmt.Errorf("set preference %q: %w", key, err)
	}
	return nil
}
