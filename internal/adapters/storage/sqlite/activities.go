package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hylla/connboard/internal/domain"
)

// CreateActivity appends an activity to a request.
func (r *Repository) CreateActivity(ctx context.Context, a domain.Activity) (domain.Activity, error) {
	id, err := insertID(ctx, r.q, `
		INSERT INTO connection_request_activities(request_id, opportunity_id, activity_type_id, connector_id, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.RequestID, a.OpportunityID, a.ActivityTypeID, nullableID(a.ConnectorID), a.Note, ts(a.CreatedAt))
	if err != nil {
		return domain.Activity{}, fmt.Errorf("insert activity: %w", err)
	}
	a.ID = id
	return a, nil
}

// GetActivity returns an activity.
func (r *Repository) GetActivity(ctx context.Context, id int64) (domain.Activity, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, request_id, opportunity_id, activity_type_id, connector_id, note, created_at
		FROM connection_request_activities
		WHERE id = ?
	`, id)
	return scanActivity(row)
}

// ListActivities returns a request's activities newest first; limit <= 0 returns all.
func (r *Repository) ListActivities(ctx context.Context, requestID int64, limit int) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, request_id, opportunity_id, activity_type_id, connector_id, note, created_at
		FROM connection_request_activities
		WHERE request_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, requestID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Activity{}
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListLatestActivities returns the newest activity of each request of an opportunity.
func (r *Repository) ListLatestActivities(ctx context.Context, opportunityID int64) (map[int64]domain.Activity, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, request_id, opportunity_id, activity_type_id, connector_id, note, created_at
		FROM (
			SELECT a.*, ROW_NUMBER() OVER (
				PARTITION BY a.request_id
				ORDER BY a.created_at DESC, a.id DESC
			) AS rn
			FROM connection_request_activities a
			JOIN connection_requests cr ON cr.id = a.request_id
			WHERE cr.opportunity_id = ?
		)
		WHERE rn = 1
	`, opportunityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int64]domain.Activity{}
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out[a.RequestID] = a
	}
	return out, rows.Err()
}

// DeleteActivity removes an activity.
func (r *Repository) DeleteActivity(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM connection_request_activities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	return translateNoRows(res)
}

func scanActivity(s scanner) (domain.Activity, error) {
	var (
		a           domain.Activity
		connectorID sql.NullInt64
		createdRaw  string
	)
	if err := s.Scan(&a.ID, &a.RequestID, &a.OpportunityID, &a.ActivityTypeID, &connectorID, &a.Note, &createdRaw); err != nil {
		return domain.Activity{}, notFound(err)
	}
	a.ConnectorID = parseNullID(connectorID)
	a.CreatedAt = parseTS(createdRaw)
	return a, nil
}
