package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hylla/connboard/internal/app"
	"github.com/hylla/connboard/internal/domain"
)

const requestColumns = `
	id, opportunity_id, person_id, status_id, state, connector_id, campus_id, sort_order, comments,
	followup_date, placement_group_id, placement_role_id, placement_member_status,
	placement_attributes_json, created_at, updated_at`

// GetConnectionRequest returns a request.
func (r *Repository) GetConnectionRequest(ctx context.Context, id int64) (domain.ConnectionRequest, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM connection_requests WHERE id = ?`, id)
	return scanRequest(row)
}

// ListConnectionRequests lists an opportunity's requests, optionally narrowed to one
// status column or one requester.
func (r *Repository) ListConnectionRequests(ctx context.Context, q app.RequestQuery) ([]domain.ConnectionRequest, error) {
	if q.OpportunityID <= 0 {
		return nil, fmt.Errorf("%w: opportunity is required", domain.ErrInvalidID)
	}
	query := `SELECT ` + requestColumns + ` FROM connection_requests WHERE opportunity_id = ?`
	args := []any{q.OpportunityID}
	if q.StatusID > 0 {
		query += ` AND status_id = ?`
		args = append(args, q.StatusID)
	}
	if q.PersonID > 0 {
		query += ` AND person_id = ?`
		args = append(args, q.PersonID)
	}
	query += ` ORDER BY id ASC`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.ConnectionRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// CreateConnectionRequest inserts a request and returns it with its id.
func (r *Repository) CreateConnectionRequest(ctx context.Context, req domain.ConnectionRequest) (domain.ConnectionRequest, error) {
	args, err := requestArgs(req)
	if err != nil {
		return domain.ConnectionRequest{}, err
	}
	id, err := insertID(ctx, r.q, `
		INSERT INTO connection_requests(
			id, opportunity_id, person_id, status_id, state, connector_id, campus_id, sort_order, comments,
			followup_date, placement_group_id, placement_role_id, placement_member_status,
			placement_attributes_json, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, append([]any{nullableID(&req.ID)}, args...)...)
	if err != nil {
		return domain.ConnectionRequest{}, fmt.Errorf("insert connection request: %w", err)
	}
	req.ID = id
	return req, nil
}

// UpdateConnectionRequest writes every mutable column of a request.
func (r *Repository) UpdateConnectionRequest(ctx context.Context, req domain.ConnectionRequest) error {
	args, err := requestArgs(req)
	if err != nil {
		return err
	}
	res, err := r.q.ExecContext(ctx, `
		UPDATE connection_requests
		SET opportunity_id = ?, person_id = ?, status_id = ?, state = ?, connector_id = ?, campus_id = ?,
			sort_order = ?, comments = ?, followup_date = ?, placement_group_id = ?, placement_role_id = ?,
			placement_member_status = ?, placement_attributes_json = ?, created_at = ?, updated_at = ?
		WHERE id = ?
	`, append(args, req.ID)...)
	if err != nil {
		return fmt.Errorf("update connection request: %w", err)
	}
	return translateNoRows(res)
}

// UpdateRequestOrders writes new orders for several requests.
func (r *Repository) UpdateRequestOrders(ctx context.Context, orders map[int64]int) error {
	for id, order := range orders {
		res, err := r.q.ExecContext(ctx, `UPDATE connection_requests SET sort_order = ? WHERE id = ?`, order, id)
		if err != nil {
			return fmt.Errorf("update request order: %w", err)
		}
		if err := translateNoRows(res); err != nil {
			return err
		}
	}
	return nil
}

// DeleteConnectionRequest removes a request; its activities cascade.
func (r *Repository) DeleteConnectionRequest(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM connection_requests WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete connection request: %w", err)
	}
	return translateNoRows(res)
}

// CanDeleteConnectionRequest reports why a request cannot be deleted, or "".
func (r *Repository) CanDeleteConnectionRequest(ctx context.Context, id int64) (string, error) {
	var count int
	if err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM connection_request_workflows WHERE request_id = ?
	`, id).Scan(&count); err != nil {
		return "", err
	}
	if count > 0 {
		return fmt.Sprintf("This connection request is assigned to %d workflow(s).", count), nil
	}
	return "", nil
}

func requestArgs(req domain.ConnectionRequest) ([]any, error) {
	attrs, err := req.PlacementAttributes.Encode()
	if err != nil {
		return nil, err
	}
	var (
		groupID, roleID any
		memberStatus    string
	)
	if req.Placement != nil {
		groupID, roleID = req.Placement.GroupID, req.Placement.RoleID
		memberStatus = string(req.Placement.MemberStatus)
	}
	return []any{
		req.OpportunityID,
		req.PersonID,
		req.StatusID,
		string(req.State),
		nullableID(req.ConnectorID),
		nullableID(req.CampusID),
		req.Order,
		req.Comments,
		nullableTS(req.FollowupDate),
		groupID,
		roleID,
		memberStatus,
		attrs,
		ts(req.CreatedAt),
		ts(req.UpdatedAt),
	}, nil
}

func scanRequest(s scanner) (domain.ConnectionRequest, error) {
	var (
		req          domain.ConnectionRequest
		state        string
		connectorID  sql.NullInt64
		campusID     sql.NullInt64
		followupRaw  sql.NullString
		groupID      sql.NullInt64
		roleID       sql.NullInt64
		memberStatus string
		attrsRaw     string
		createdRaw   string
		updatedRaw   string
	)
	if err := s.Scan(
		&req.ID,
		&req.OpportunityID,
		&req.PersonID,
		&req.StatusID,
		&state,
		&connectorID,
		&campusID,
		&req.Order,
		&req.Comments,
		&followupRaw,
		&groupID,
		&roleID,
		&memberStatus,
		&attrsRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return domain.ConnectionRequest{}, notFound(err)
	}
	req.State = domain.ConnectionState(state)
	req.ConnectorID = parseNullID(connectorID)
	req.CampusID = parseNullID(campusID)
	req.FollowupDate = parseNullTS(followupRaw)
	req.CreatedAt = parseTS(createdRaw)
	req.UpdatedAt = parseTS(updatedRaw)
	if groupID.Valid && roleID.Valid && memberStatus != "" {
		req.Placement = &domain.Placement{
			GroupID:      groupID.Int64,
			RoleID:       roleID.Int64,
			MemberStatus: domain.GroupMemberStatus(memberStatus),
		}
		attrs, err := domain.DecodeAttributeValues(attrsRaw)
		if err != nil {
			return domain.ConnectionRequest{}, fmt.Errorf("decode placement_attributes_json: %w", err)
		}
		if len(attrs) > 0 {
			req.PlacementAttributes = attrs
		}
	}
	return req, nil
}
