package app

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/hylla/connboard/internal/domain"
)

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	SystemActivityTypes SystemActivityTypes
}

// Clock returns the current time.
type Clock func() time.Time

// Service runs the connection request lifecycle: add/edit, connect, transfer,
// connector assignment, card moves, activities, and delete.
type Service struct {
	repo          Repository
	requirements  RequirementsEvaluator
	clock         Clock
	activityTypes SystemActivityTypes
}

// NewService constructs a new value for this package.
func NewService(repo Repository, requirements RequirementsEvaluator, clock Clock, cfg ServiceConfig) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		repo:          repo,
		requirements:  requirements,
		clock:         clock,
		activityTypes: cfg.SystemActivityTypes,
	}
}

// Repository exposes the store for read-side callers in this package and adapters.
func (s *Service) Repository() Repository {
	return s.repo
}

// ActiveStatuses returns a connection type's active statuses ordered by order, then name.
func (s *Service) ActiveStatuses(ctx context.Context, connectionTypeID int64) ([]domain.ConnectionStatus, error) {
	statuses, err := s.repo.ListConnectionStatuses(ctx, connectionTypeID)
	if err != nil {
		return nil, err
	}
	return activeStatuses(statuses), nil
}

func activeStatuses(statuses []domain.ConnectionStatus) []domain.ConnectionStatus {
	out := make([]domain.ConnectionStatus, 0, len(statuses))
	for _, status := range statuses {
		if status.IsActive {
			out = append(out, status)
		}
	}
	slices.SortFunc(out, func(a, b domain.ConnectionStatus) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		if c := cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// resolveStatus picks statusID from the type's statuses, or the default status when 0.
func resolveStatus(statuses []domain.ConnectionStatus, statusID int64) (domain.ConnectionStatus, error) {
	if statusID > 0 {
		for _, status := range statuses {
			if status.ID == statusID {
				return status, nil
			}
		}
		return domain.ConnectionStatus{}, validationf("status %d does not belong to this connection type", statusID)
	}
	active := activeStatuses(statuses)
	for _, status := range active {
		if status.IsDefault {
			return status, nil
		}
	}
	if len(active) > 0 {
		return active[0], nil
	}
	return domain.ConnectionStatus{}, validationf("connection type has no active status")
}

// columnMembers returns a status column in display sequence, optionally without one request.
func columnMembers(ctx context.Context, repo Repository, opportunityID, statusID, excludeID int64) ([]domain.OrderedMember, error) {
	requests, err := repo.ListConnectionRequests(ctx, RequestQuery{OpportunityID: opportunityID, StatusID: statusID})
	if err != nil {
		return nil, err
	}
	members := make([]domain.OrderedMember, 0, len(requests))
	for _, r := range requests {
		if r.ID == excludeID {
			continue
		}
		members = append(members, domain.OrderedMember{ID: r.ID, Order: r.Order})
	}
	domain.SortOrderedMembers(members)
	return members, nil
}

// appendSystemActivity writes a system activity for a request.
func (s *Service) appendSystemActivity(ctx context.Context, repo Repository, key domain.SystemActivityKey, r domain.ConnectionRequest, connectorID *int64, note string, now time.Time) error {
	typeID, err := s.activityTypes.ID(key)
	if err != nil {
		return err
	}
	activity, err := domain.NewActivity(domain.ActivityInput{
		RequestID:      r.ID,
		OpportunityID:  r.OpportunityID,
		ActivityTypeID: typeID,
		ConnectorID:    connectorID,
		Note:           note,
	}, now)
	if err != nil {
		return err
	}
	_, err = repo.CreateActivity(ctx, activity)
	return err
}

// loadOpportunity maps a missing opportunity to a validation failure for user-chosen targets.
func (s *Service) loadOpportunity(ctx context.Context, id int64) (domain.Opportunity, error) {
	opp, err := s.repo.GetOpportunity(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return domain.Opportunity{}, &ValidationError{Message: "connection opportunity not found", Err: err}
	}
	return opp, err
}

func idPtr(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}
