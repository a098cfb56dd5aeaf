package app

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/hylla/connboard/internal/domain"
)

// SystemActivityTypes maps each system activity key to its activity type id.
type SystemActivityTypes map[domain.SystemActivityKey]int64

// LoadSystemActivityTypes builds the lookup table once at startup.
// Every system key must be configured.
func LoadSystemActivityTypes(ctx context.Context, repo Repository) (SystemActivityTypes, error) {
	types, err := repo.ListActivityTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list activity types: %w", err)
	}
	table := SystemActivityTypes{}
	for _, t := range types {
		if t.IsSystem() {
			table[t.SystemKey] = t.ID
		}
	}
	var missing []string
	for _, key := range domain.SystemActivityKeys() {
		if table[key] <= 0 {
			missing = append(missing, string(key))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("system activity types not configured: %s", strings.Join(missing, ", "))
	}
	return table, nil
}

// ID resolves a system key.
func (t SystemActivityTypes) ID(key domain.SystemActivityKey) (int64, error) {
	id, ok := t[key]
	if !ok || id <= 0 {
		return 0, fmt.Errorf("system activity type %q is not configured", key)
	}
	return id, nil
}

// userActivityTypes returns the active, non-system activity types for a connection type,
// ordered by name then id.
func userActivityTypes(types []domain.ActivityType, connectionTypeID int64) []domain.ActivityType {
	out := make([]domain.ActivityType, 0, len(types))
	for _, t := range types {
		if t.IsSystem() || !t.IsActive {
			continue
		}
		if t.ConnectionTypeID != nil && *t.ConnectionTypeID != connectionTypeID {
			continue
		}
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b domain.ActivityType) int {
		if c := cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
