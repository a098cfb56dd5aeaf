package app

import (
	"context"

	"github.com/hylla/connboard/internal/domain"
)

// RequestQuery filters connection requests at the store. Zero fields match anything
// except OpportunityID, which is required.
type RequestQuery struct {
	OpportunityID int64
	StatusID      int64
	PersonID      int64
}

// Repository is the relational store the board reads and writes through.
type Repository interface {
	// InTx runs fn against a repository bound to one transaction.
	InTx(context.Context, func(Repository) error) error

	ListConnectionTypes(context.Context) ([]domain.ConnectionType, error)
	GetConnectionType(context.Context, int64) (domain.ConnectionType, error)
	ListConnectionStatuses(context.Context, int64) ([]domain.ConnectionStatus, error)
	ListOpportunities(context.Context, int64) ([]domain.Opportunity, error)
	GetOpportunity(context.Context, int64) (domain.Opportunity, error)
	ListActivityTypes(context.Context) ([]domain.ActivityType, error)

	ListPeople(context.Context, []int64) ([]domain.Person, error)
	ListCampuses(context.Context) ([]domain.Campus, error)
	ListGroups(context.Context, []int64) ([]domain.Group, error)

	GetConnectionRequest(context.Context, int64) (domain.ConnectionRequest, error)
	ListConnectionRequests(context.Context, RequestQuery) ([]domain.ConnectionRequest, error)
	CreateConnectionRequest(context.Context, domain.ConnectionRequest) (domain.ConnectionRequest, error)
	UpdateConnectionRequest(context.Context, domain.ConnectionRequest) error
	UpdateRequestOrders(context.Context, map[int64]int) error
	// DeleteConnectionRequest removes the request and its activities.
	DeleteConnectionRequest(context.Context, int64) error
	// CanDeleteConnectionRequest returns a blocking reason, or "" when delete is allowed.
	CanDeleteConnectionRequest(context.Context, int64) (string, error)

	CreateActivity(context.Context, domain.Activity) (domain.Activity, error)
	GetActivity(context.Context, int64) (domain.Activity, error)
	// ListActivities returns newest first; limit <= 0 returns every row.
	ListActivities(context.Context, int64, int) ([]domain.Activity, error)
	// ListLatestActivities returns the newest activity per request of an opportunity.
	ListLatestActivities(context.Context, int64) (map[int64]domain.Activity, error)
	DeleteActivity(context.Context, int64) error

	ListWorkflows(context.Context, int64) ([]domain.Workflow, error)

	FindGroupMember(ctx context.Context, groupID, personID, roleID int64) (domain.GroupMember, error)
	CreateGroupMember(context.Context, domain.GroupMember) (domain.GroupMember, error)
}

// RequirementsEvaluator evaluates a group's membership requirements for a person and role.
type RequirementsEvaluator interface {
	EvaluateRequirements(ctx context.Context, groupID, personID, roleID int64) ([]domain.RequirementStatus, error)
}

// PreferenceStore is a per-person key/value store. Missing keys read as "".
type PreferenceStore interface {
	GetPreference(ctx context.Context, personID int64, key string) (string, error)
	SetPreference(ctx context.Context, personID int64, key, value string) error
}

// StatusIconFields are the merge fields for one card's status icons.
type StatusIconFields struct {
	IsAssignedToYou bool
	IsUnassigned    bool
	IsCritical      bool
	IsIdle          bool
}

// StatusIconRenderer renders cosmetic status markup from user-editable templates.
type StatusIconRenderer interface {
	RenderStatusIcons(fields StatusIconFields, idleTooltip string) (string, error)
	RenderStatusLegend(idleTooltip string) (string, error)
}
