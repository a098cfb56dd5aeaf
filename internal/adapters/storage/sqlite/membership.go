package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hylla/connboard/internal/app"
	"github.com/hylla/connboard/internal/domain"
)

// GroupRequirement is a membership requirement of a group. A nil RoleID applies to every role.
type GroupRequirement struct {
	ID            int64
	GroupID       int64
	RoleID        *int64
	Name          string
	CheckType     domain.RequirementCheckType
	MustMeetToAdd bool
}

// FindGroupMember returns the membership of a person in a group and role.
func (r *Repository) FindGroupMember(ctx context.Context, groupID, personID, roleID int64) (domain.GroupMember, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, group_id, person_id, role_id, status, attributes_json, created_at
		FROM group_members
		WHERE group_id = ? AND person_id = ? AND role_id = ?
	`, groupID, personID, roleID)
	var (
		m          domain.GroupMember
		status     string
		attrsRaw   string
		createdRaw string
	)
	if err := row.Scan(&m.ID, &m.GroupID, &m.PersonID, &m.RoleID, &status, &attrsRaw, &createdRaw); err != nil {
		return domain.GroupMember{}, notFound(err)
	}
	attrs, err := domain.DecodeAttributeValues(attrsRaw)
	if err != nil {
		return domain.GroupMember{}, fmt.Errorf("decode group_members.attributes_json: %w", err)
	}
	m.Status = domain.GroupMemberStatus(status)
	m.Attributes = attrs
	m.CreatedAt = parseTS(createdRaw)

	met, err := r.metRequirements(ctx, m.ID)
	if err != nil {
		return domain.GroupMember{}, err
	}
	m.MetRequirementIDs = met
	return m, nil
}

// CreateGroupMember inserts a membership and its ticked manual requirements.
func (r *Repository) CreateGroupMember(ctx context.Context, m domain.GroupMember) (domain.GroupMember, error) {
	attrs, err := m.Attributes.Encode()
	if err != nil {
		return domain.GroupMember{}, err
	}
	err = r.InTx(ctx, func(tx app.Repository) error {
		repo := tx.(*Repository)
		id, err := insertID(ctx, repo.q, `
			INSERT INTO group_members(group_id, person_id, role_id, status, attributes_json, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, m.GroupID, m.PersonID, m.RoleID, string(m.Status), attrs, ts(m.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert group member: %w", err)
		}
		m.ID = id
		for _, requirementID := range m.MetRequirementIDs {
			if _, err := repo.q.ExecContext(ctx, `
				INSERT OR IGNORE INTO group_member_requirements(group_member_id, requirement_id) VALUES (?, ?)
			`, m.ID, requirementID); err != nil {
				return fmt.Errorf("insert group member requirement: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.GroupMember{}, err
	}
	return m, nil
}

func (r *Repository) metRequirements(ctx context.Context, memberID int64) ([]int64, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT requirement_id FROM group_member_requirements
		WHERE group_member_id = ?
		ORDER BY requirement_id ASC
	`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// CreateGroupRequirement adds a requirement to a group.
func (r *Repository) CreateGroupRequirement(ctx context.Context, req GroupRequirement) (GroupRequirement, error) {
	if strings.TrimSpace(req.Name) == "" {
		return GroupRequirement{}, domain.ErrInvalidName
	}
	switch req.CheckType {
	case domain.RequirementManual, domain.RequirementAutomatic:
	default:
		return GroupRequirement{}, fmt.Errorf("unknown requirement check type %q", req.CheckType)
	}
	id, err := insertID(ctx, r.q, `
		INSERT INTO group_requirements(id, group_id, role_id, name, check_type, must_meet_to_add)
		VALUES (?, ?, ?, ?, ?, ?)
	`, nullableID(&req.ID), req.GroupID, nullableID(req.RoleID), req.Name, string(req.CheckType), boolInt(req.MustMeetToAdd))
	if err != nil {
		return GroupRequirement{}, fmt.Errorf("insert group requirement: %w", err)
	}
	req.ID = id
	return req, nil
}

// SetRequirementResult records a person's evaluated result for a requirement.
func (r *Repository) SetRequirementResult(ctx context.Context, requirementID, personID int64, meets domain.RequirementMeets, message string) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO person_requirement_results(requirement_id, person_id, meets, message)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(requirement_id, person_id) DO UPDATE SET meets = excluded.meets, message = excluded.message
	`, requirementID, personID, string(meets), message)
	if err != nil {
		return fmt.Errorf("set requirement result: %w", err)
	}
	return nil
}

// EvaluateRequirements returns the group's requirements for a person and role. A
// requirement without a recorded result is not met.
func (r *Repository) EvaluateRequirements(ctx context.Context, groupID, personID, roleID int64) ([]domain.RequirementStatus, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT gr.id, gr.name, gr.check_type, gr.must_meet_to_add, res.meets, res.message
		FROM group_requirements gr
		LEFT JOIN person_requirement_results res
			ON res.requirement_id = gr.id AND res.person_id = ?
		WHERE gr.group_id = ? AND (gr.role_id IS NULL OR gr.role_id = ?)
		ORDER BY gr.id ASC
	`, personID, groupID, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.RequirementStatus{}
	for rows.Next() {
		var (
			s         domain.RequirementStatus
			checkType string
			meets     sql.NullString
			message   sql.NullString
		)
		if err := rows.Scan(&s.RequirementID, &s.Name, &checkType, &s.MustMeetToAdd, &meets, &message); err != nil {
			return nil, err
		}
		s.CheckType = domain.RequirementCheckType(checkType)
		s.Meets = domain.RequirementNotMet
		if meets.Valid && meets.String != "" {
			s.Meets = domain.RequirementMeets(meets.String)
		}
		s.Message = message.String
		out = append(out, s)
	}
	return out, rows.Err()
}
