package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"time"
)

// GroupMemberStatus is the membership status a placement creates.
type GroupMemberStatus string

// Group member statuses.
const (
	MemberStatusInactive GroupMemberStatus = "inactive"
	MemberStatusActive   GroupMemberStatus = "active"
	MemberStatusPending  GroupMemberStatus = "pending"
)

// ParseGroupMemberStatus normalizes a member status value.
func ParseGroupMemberStatus(raw string) (GroupMemberStatus, error) {
	switch status := GroupMemberStatus(strings.ToLower(strings.TrimSpace(raw))); status {
	case MemberStatusInactive, MemberStatusActive, MemberStatusPending:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMemberStatus, raw)
	}
}

// Placement is the group a request is placed into once connected.
type Placement struct {
	GroupID      int64             `json:"group_id"`
	RoleID       int64             `json:"role_id"`
	MemberStatus GroupMemberStatus `json:"member_status"`
}

// NewPlacement builds a placement from optional parts.
// All parts empty yields nil; a partial triple is rejected.
func NewPlacement(groupID, roleID *int64, memberStatus string) (*Placement, error) {
	memberStatus = strings.TrimSpace(memberStatus)
	if groupID == nil && roleID == nil && memberStatus == "" {
		return nil, nil
	}
	if groupID == nil || roleID == nil || memberStatus == "" {
		return nil, ErrIncompletePlacement
	}
	status, err := ParseGroupMemberStatus(memberStatus)
	if err != nil {
		return nil, err
	}
	p := Placement{GroupID: *groupID, RoleID: *roleID, MemberStatus: status}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks that every part of the triple is present.
func (p Placement) Validate() error {
	if p.GroupID <= 0 || p.RoleID <= 0 {
		return ErrIncompletePlacement
	}
	if _, err := ParseGroupMemberStatus(string(p.MemberStatus)); err != nil {
		return err
	}
	return nil
}

// AttributeValues is an opaque attribute-key to value map copied onto a new group member.
type AttributeValues map[string]string

// Clone returns an independent copy.
func (a AttributeValues) Clone() AttributeValues {
	if a == nil {
		return nil
	}
	return maps.Clone(a)
}

// Encode serializes the map for storage. An empty map encodes as "{}".
func (a AttributeValues) Encode() (string, error) {
	if len(a) == 0 {
		return "{}", nil
	}
	encoded, err := json.Marshal(map[string]string(a))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAttributeValues, err)
	}
	return string(encoded), nil
}

// DecodeAttributeValues parses a stored attribute map. Blank input yields an empty map.
func DecodeAttributeValues(raw string) (AttributeValues, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return AttributeValues{}, nil
	}
	out := AttributeValues{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAttributeValues, err)
	}
	return out, nil
}

// Group is a placement target.
type Group struct {
	ID       int64
	Name     string
	CampusID *int64
}

// GroupRole is a role inside a group type.
type GroupRole struct {
	ID   int64
	Name string
}

// GroupMember is a person's membership of a group in a role.
type GroupMember struct {
	ID         int64
	GroupID    int64
	PersonID   int64
	RoleID     int64
	Status     GroupMemberStatus
	Attributes AttributeValues
	// MetRequirementIDs records manual requirements ticked when the member was added.
	MetRequirementIDs []int64
	CreatedAt         time.Time
}

// RequirementCheckType says how a group requirement is evaluated.
type RequirementCheckType string

// Requirement check types.
const (
	RequirementManual    RequirementCheckType = "manual"
	RequirementAutomatic RequirementCheckType = "automatic"
)

// RequirementMeets is the evaluation result of one requirement for one person.
type RequirementMeets string

// Requirement results.
const (
	RequirementMeetsAll         RequirementMeets = "meets"
	RequirementMeetsWithWarning RequirementMeets = "meets_with_warning"
	RequirementNotMet           RequirementMeets = "not_met"
	RequirementNotApplicable    RequirementMeets = "not_applicable"
	RequirementError            RequirementMeets = "error"
)

// RequirementStatus is one evaluated group requirement.
type RequirementStatus struct {
	RequirementID int64
	Name          string
	CheckType     RequirementCheckType
	MustMeetToAdd bool
	Meets         RequirementMeets
	Message       string
}

// Passing reports whether the requirement counts as met.
func (s RequirementStatus) Passing() bool {
	return s.Meets == RequirementMeetsAll || s.Meets == RequirementMeetsWithWarning
}
