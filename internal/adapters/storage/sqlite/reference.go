package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hylla/connboard/internal/app"
	"github.com/hylla/connboard/internal/domain"
)

// Reference data is maintained outside the board. The Create* methods below exist for
// seeding and tests; an explicit positive ID is kept, otherwise one is assigned.

// CreateConnectionType creates a connection type.
func (r *Repository) CreateConnectionType(ctx context.Context, t domain.ConnectionType) (domain.ConnectionType, error) {
	if strings.TrimSpace(t.Name) == "" {
		return domain.ConnectionType{}, domain.ErrInvalidName
	}
	id, err := insertID(ctx, r.q, `
		INSERT INTO connection_types(id, name, icon_css_class, days_until_request_idle)
		VALUES (?, ?, ?, ?)
	`, nullableID(&t.ID), t.Name, t.IconCSSClass, t.DaysUntilRequestIdle)
	if err != nil {
		return domain.ConnectionType{}, fmt.Errorf("insert connection type: %w", err)
	}
	t.ID = id
	return t, nil
}

// ListConnectionTypes lists connection types by name.
func (r *Repository) ListConnectionTypes(ctx context.Context) ([]domain.ConnectionType, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, name, icon_css_class, days_until_request_idle
		FROM connection_types
		ORDER BY name ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.ConnectionType{}
	for rows.Next() {
		t, err := scanConnectionType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetConnectionType returns a connection type.
func (r *Repository) GetConnectionType(ctx context.Context, id int64) (domain.ConnectionType, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, name, icon_css_class, days_until_request_idle
		FROM connection_types
		WHERE id = ?
	`, id)
	return scanConnectionType(row)
}

func scanConnectionType(s scanner) (domain.ConnectionType, error) {
	var t domain.ConnectionType
	if err := s.Scan(&t.ID, &t.Name, &t.IconCSSClass, &t.DaysUntilRequestIdle); err != nil {
		return domain.ConnectionType{}, notFound(err)
	}
	return t, nil
}

// CreateConnectionStatus creates a status column of a connection type.
func (r *Repository) CreateConnectionStatus(ctx context.Context, s domain.ConnectionStatus) (domain.ConnectionStatus, error) {
	if strings.TrimSpace(s.Name) == "" {
		return domain.ConnectionStatus{}, domain.ErrInvalidName
	}
	id, err := insertID(ctx, r.q, `
		INSERT INTO connection_statuses(id, connection_type_id, name, sort_order, is_active, is_default, is_critical, highlight_color)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, nullableID(&s.ID), s.ConnectionTypeID, s.Name, s.Order, boolInt(s.IsActive), boolInt(s.IsDefault), boolInt(s.IsCritical), s.HighlightColor)
	if err != nil {
		return domain.ConnectionStatus{}, fmt.Errorf("insert connection status: %w", err)
	}
	s.ID = id
	return s, nil
}

// ListConnectionStatuses lists every status of a connection type, active or not, by
// (order, name).
func (r *Repository) ListConnectionStatuses(ctx context.Context, connectionTypeID int64) ([]domain.ConnectionStatus, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, connection_type_id, name, sort_order, is_active, is_default, is_critical, highlight_color
		FROM connection_statuses
		WHERE connection_type_id = ?
		ORDER BY sort_order ASC, name ASC, id ASC
	`, connectionTypeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.ConnectionStatus{}
	for rows.Next() {
		var s domain.ConnectionStatus
		if err := rows.Scan(&s.ID, &s.ConnectionTypeID, &s.Name, &s.Order, &s.IsActive, &s.IsDefault, &s.IsCritical, &s.HighlightColor); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CreateOpportunity creates an opportunity and its campus connectors.
func (r *Repository) CreateOpportunity(ctx context.Context, o domain.Opportunity) (domain.Opportunity, error) {
	if strings.TrimSpace(o.Name) == "" {
		return domain.Opportunity{}, domain.ErrInvalidName
	}
	err := r.InTx(ctx, func(tx app.Repository) error {
		repo := tx.(*Repository)
		id, err := insertID(ctx, repo.q, `
			INSERT INTO opportunities(id, connection_type_id, name, public_name, icon_css_class, is_active)
			VALUES (?, ?, ?, ?, ?, ?)
		`, nullableID(&o.ID), o.ConnectionTypeID, o.Name, o.PublicName, o.IconCSSClass, boolInt(o.IsActive))
		if err != nil {
			return fmt.Errorf("insert opportunity: %w", err)
		}
		o.ID = id
		for campusID, personID := range o.CampusConnectors {
			if _, err := repo.q.ExecContext(ctx, `
				INSERT INTO opportunity_campus_connectors(opportunity_id, campus_id, person_id)
				VALUES (?, ?, ?)
			`, o.ID, campusID, personID); err != nil {
				return fmt.Errorf("insert campus connector: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Opportunity{}, err
	}
	return o, nil
}

// ListOpportunities lists opportunities by name. A zero connectionTypeID lists every type.
func (r *Repository) ListOpportunities(ctx context.Context, connectionTypeID int64) ([]domain.Opportunity, error) {
	query := `
		SELECT id, connection_type_id, name, public_name, icon_css_class, is_active
		FROM opportunities
	`
	var args []any
	if connectionTypeID > 0 {
		query += ` WHERE connection_type_id = ?`
		args = append(args, connectionTypeID)
	}
	query += ` ORDER BY name ASC, id ASC`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out := []domain.Opportunity{}
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	connectors, err := r.campusConnectors(ctx, 0)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].CampusConnectors = connectors[out[i].ID]
	}
	return out, nil
}

// GetOpportunity returns an opportunity with its campus connectors.
func (r *Repository) GetOpportunity(ctx context.Context, id int64) (domain.Opportunity, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, connection_type_id, name, public_name, icon_css_class, is_active
		FROM opportunities
		WHERE id = ?
	`, id)
	o, err := scanOpportunity(row)
	if err != nil {
		return domain.Opportunity{}, err
	}
	connectors, err := r.campusConnectors(ctx, id)
	if err != nil {
		return domain.Opportunity{}, err
	}
	o.CampusConnectors = connectors[id]
	return o, nil
}

func scanOpportunity(s scanner) (domain.Opportunity, error) {
	var o domain.Opportunity
	if err := s.Scan(&o.ID, &o.ConnectionTypeID, &o.Name, &o.PublicName, &o.IconCSSClass, &o.IsActive); err != nil {
		return domain.Opportunity{}, notFound(err)
	}
	return o, nil
}

// campusConnectors loads campus connector maps keyed by opportunity; zero loads all.
func (r *Repository) campusConnectors(ctx context.Context, opportunityID int64) (map[int64]map[int64]int64, error) {
	query := `SELECT opportunity_id, campus_id, person_id FROM opportunity_campus_connectors`
	var args []any
	if opportunityID > 0 {
		query += ` WHERE opportunity_id = ?`
		args = append(args, opportunityID)
	}
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int64]map[int64]int64{}
	for rows.Next() {
		var oppID, campusID, personID int64
		if err := rows.Scan(&oppID, &campusID, &personID); err != nil {
			return nil, err
		}
		if out[oppID] == nil {
			out[oppID] = map[int64]int64{}
		}
		out[oppID][campusID] = personID
	}
	return out, rows.Err()
}

// CreateActivityType creates a user activity type. System types are seeded by migrate.
func (r *Repository) CreateActivityType(ctx context.Context, t domain.ActivityType) (domain.ActivityType, error) {
	if strings.TrimSpace(t.Name) == "" {
		return domain.ActivityType{}, domain.ErrInvalidName
	}
	id, err := insertID(ctx, r.q, `
		INSERT INTO activity_types(id, connection_type_id, system_key, name, is_active)
		VALUES (?, ?, ?, ?, ?)
	`, nullableID(&t.ID), nullableID(t.ConnectionTypeID), string(t.SystemKey), t.Name, boolInt(t.IsActive))
	if err != nil {
		return domain.ActivityType{}, fmt.Errorf("insert activity type: %w", err)
	}
	t.ID = id
	return t, nil
}

// ListActivityTypes lists every activity type, system ones included.
func (r *Repository) ListActivityTypes(ctx context.Context) ([]domain.ActivityType, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, connection_type_id, system_key, name, is_active
		FROM activity_types
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.ActivityType{}
	for rows.Next() {
		var (
			t      domain.ActivityType
			typeID sql.NullInt64
			keyRaw string
		)
		if err := rows.Scan(&t.ID, &typeID, &keyRaw, &t.Name, &t.IsActive); err != nil {
			return nil, err
		}
		t.ConnectionTypeID = parseNullID(typeID)
		t.SystemKey = domain.SystemActivityKey(keyRaw)
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreatePerson creates a person.
func (r *Repository) CreatePerson(ctx context.Context, p domain.Person) (domain.Person, error) {
	if strings.TrimSpace(p.NickName) == "" && strings.TrimSpace(p.LastName) == "" {
		return domain.Person{}, domain.ErrInvalidName
	}
	id, err := insertID(ctx, r.q, `
		INSERT INTO people(id, nick_name, last_name, email) VALUES (?, ?, ?, ?)
	`, nullableID(&p.ID), p.NickName, p.LastName, p.Email)
	if err != nil {
		return domain.Person{}, fmt.Errorf("insert person: %w", err)
	}
	p.ID = id
	return p, nil
}

// ListPeople returns the people among ids that exist. Empty ids returns nothing.
func (r *Repository) ListPeople(ctx context.Context, ids []int64) ([]domain.Person, error) {
	out := []domain.Person{}
	if len(ids) == 0 {
		return out, nil
	}
	marks, args := inClause(ids)
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, nick_name, last_name, email
		FROM people
		WHERE id IN (`+marks+`)
		ORDER BY id ASC
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Person
		if err := rows.Scan(&p.ID, &p.NickName, &p.LastName, &p.Email); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateCampus creates a campus.
func (r *Repository) CreateCampus(ctx context.Context, c domain.Campus) (domain.Campus, error) {
	if strings.TrimSpace(c.Name) == "" {
		return domain.Campus{}, domain.ErrInvalidName
	}
	id, err := insertID(ctx, r.q, `
		INSERT INTO campuses(id, name, short_code) VALUES (?, ?, ?)
	`, nullableID(&c.ID), c.Name, c.ShortCode)
	if err != nil {
		return domain.Campus{}, fmt.Errorf("insert campus: %w", err)
	}
	c.ID = id
	return c, nil
}

// ListCampuses lists campuses by name.
func (r *Repository) ListCampuses(ctx context.Context) ([]domain.Campus, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, name, short_code FROM campuses ORDER BY name ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Campus{}
	for rows.Next() {
		var c domain.Campus
		if err := rows.Scan(&c.ID, &c.Name, &c.ShortCode); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateGroup creates a placement group.
func (r *Repository) CreateGroup(ctx context.Context, g domain.Group) (domain.Group, error) {
	if strings.TrimSpace(g.Name) == "" {
		return domain.Group{}, domain.ErrInvalidName
	}
	id, err := insertID(ctx, r.q, `
		INSERT INTO member_groups(id, name, campus_id) VALUES (?, ?, ?)
	`, nullableID(&g.ID), g.Name, nullableID(g.CampusID))
	if err != nil {
		return domain.Group{}, fmt.Errorf("insert group: %w", err)
	}
	g.ID = id
	return g, nil
}

// ListGroups returns the groups among ids that exist.
func (r *Repository) ListGroups(ctx context.Context, ids []int64) ([]domain.Group, error) {
	out := []domain.Group{}
	if len(ids) == 0 {
		return out, nil
	}
	marks, args := inClause(ids)
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, name, campus_id
		FROM member_groups
		WHERE id IN (`+marks+`)
		ORDER BY id ASC
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			g        domain.Group
			campusID sql.NullInt64
		)
		if err := rows.Scan(&g.ID, &g.Name, &campusID); err != nil {
			return nil, err
		}
		g.CampusID = parseNullID(campusID)
		out = append(out, g)
	}
	return out, rows.Err()
}

// CreateGroupRole creates a group role.
func (r *Repository) CreateGroupRole(ctx context.Context, role domain.GroupRole) (domain.GroupRole, error) {
	if strings.TrimSpace(role.Name) == "" {
		return domain.GroupRole{}, domain.ErrInvalidName
	}
	id, err := insertID(ctx, r.q, `
		INSERT INTO group_roles(id, name) VALUES (?, ?)
	`, nullableID(&role.ID), role.Name)
	if err != nil {
		return domain.GroupRole{}, fmt.Errorf("insert group role: %w", err)
	}
	role.ID = id
	return role, nil
}

// CreateWorkflow attaches a workflow to a request.
func (r *Repository) CreateWorkflow(ctx context.Context, w domain.Workflow) (domain.Workflow, error) {
	if w.RequestID <= 0 {
		return domain.Workflow{}, domain.ErrInvalidID
	}
	if strings.TrimSpace(w.Name) == "" {
		return domain.Workflow{}, domain.ErrInvalidName
	}
	id, err := insertID(ctx, r.q, `
		INSERT INTO connection_request_workflows(id, request_id, name, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, nullableID(&w.ID), w.RequestID, w.Name, w.Status, ts(w.CreatedAt))
	if err != nil {
		return domain.Workflow{}, fmt.Errorf("insert workflow: %w", err)
	}
	w.ID = id
	return w, nil
}

// ListWorkflows lists a request's workflows, oldest first.
func (r *Repository) ListWorkflows(ctx context.Context, requestID int64) ([]domain.Workflow, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, request_id, name, status, created_at
		FROM connection_request_workflows
		WHERE request_id = ?
		ORDER BY created_at ASC, id ASC
	`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Workflow{}
	for rows.Next() {
		var (
			w          domain.Workflow
			createdRaw string
		)
		if err := rows.Scan(&w.ID, &w.RequestID, &w.Name, &w.Status, &createdRaw); err != nil {
			return nil, err
		}
		w.CreatedAt = parseTS(createdRaw)
		out = append(out, w)
	}
	return out, rows.Err()
}

// insertID runs an INSERT and returns the row id.
func insertID(ctx context.Context, q dbtx, query string, args ...any) (int64, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
