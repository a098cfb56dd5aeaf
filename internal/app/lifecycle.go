package app

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/hylla/connboard/internal/domain"
)

// SaveRequestInput holds input values for add (ID == 0) and edit operations.
type SaveRequestInput struct {
	ID                  int64
	OpportunityID       int64
	ActorID             int64
	PersonID            int64
	StatusID            int64
	State               domain.ConnectionState
	ConnectorID         *int64
	CampusID            *int64
	Comments            string
	FollowupDate        *time.Time
	Placement           *domain.Placement
	PlacementAttributes domain.AttributeValues
}

// SaveRequest adds or edits a connection request. A connector change to someone new
// appends an Assigned activity in the same transaction.
func (s *Service) SaveRequest(ctx context.Context, in SaveRequestInput) (domain.ConnectionRequest, error) {
	if in.ID > 0 {
		return s.editRequest(ctx, in)
	}
	return s.addRequest(ctx, in)
}

func (s *Service) addRequest(ctx context.Context, in SaveRequestInput) (domain.ConnectionRequest, error) {
	now := s.clock()
	opp, err := s.loadOpportunity(ctx, in.OpportunityID)
	if err != nil {
		return domain.ConnectionRequest{}, err
	}
	statuses, err := s.repo.ListConnectionStatuses(ctx, opp.ConnectionTypeID)
	if err != nil {
		return domain.ConnectionRequest{}, err
	}
	status, err := resolveStatus(statuses, in.StatusID)
	if err != nil {
		return domain.ConnectionRequest{}, err
	}
	if err := s.ensureNoOpenDuplicate(ctx, opp.ID, in.PersonID, 0); err != nil {
		return domain.ConnectionRequest{}, err
	}
	members, err := columnMembers(ctx, s.repo, opp.ID, status.ID, 0)
	if err != nil {
		return domain.ConnectionRequest{}, err
	}

	req, err := domain.NewConnectionRequest(domain.ConnectionRequestInput{
		OpportunityID:       opp.ID,
		PersonID:            in.PersonID,
		StatusID:            status.ID,
		State:               in.State,
		CampusID:            in.CampusID,
		Order:               domain.NextOrder(members),
		Comments:            sanitizeText(in.Comments),
		FollowupDate:        in.FollowupDate,
		Placement:           in.Placement,
		PlacementAttributes: in.PlacementAttributes,
	}, now)
	if err != nil {
		return domain.ConnectionRequest{}, asValidation(err)
	}
	assigned := req.AssignConnector(in.ConnectorID, now)

	err = s.repo.InTx(ctx, func(tx Repository) error {
		created, err := tx.CreateConnectionRequest(ctx, req)
		if err != nil {
			return err
		}
		req = created
		if assigned {
			return s.appendSystemActivity(ctx, tx, domain.SystemActivityAssigned, req, req.ConnectorID, "", now)
		}
		return nil
	})
	if err != nil {
		return domain.ConnectionRequest{}, err
	}
	return req, nil
}

func (s *Service) editRequest(ctx context.Context, in SaveRequestInput) (domain.ConnectionRequest, error) {
	now := s.clock()
	req, err := s.repo.GetConnectionRequest(ctx, in.ID)
	if err != nil {
		return domain.ConnectionRequest{}, err
	}
	opp, err := s.repo.GetOpportunity(ctx, req.OpportunityID)
	if err != nil {
		return domain.ConnectionRequest{}, err
	}
	statuses, err := s.repo.ListConnectionStatuses(ctx, opp.ConnectionTypeID)
	if err != nil {
		return domain.ConnectionRequest{}, err
	}
	statusID := in.StatusID
	if statusID <= 0 {
		statusID = req.StatusID
	}
	status, err := resolveStatus(statuses, statusID)
	if err != nil {
		return domain.ConnectionRequest{}, err
	}
	if in.PersonID != req.PersonID {
		if err := s.ensureNoOpenDuplicate(ctx, opp.ID, in.PersonID, req.ID); err != nil {
			return domain.ConnectionRequest{}, err
		}
	}
	prevStatus := req.StatusID
	err = req.UpdateDetails(domain.RequestDetailsInput{
		PersonID:            in.PersonID,
		StatusID:            status.ID,
		State:               in.State,
		CampusID:            in.CampusID,
		Comments:            sanitizeText(in.Comments),
		FollowupDate:        in.FollowupDate,
		Placement:           in.Placement,
		PlacementAttributes: in.PlacementAttributes,
	}, now)
	if err != nil {
		return domain.ConnectionRequest{}, asValidation(err)
	}
	if req.StatusID != prevStatus {
		members, err := columnMembers(ctx, s.repo, req.OpportunityID, req.StatusID, req.ID)
		if err != nil {
			return domain.ConnectionRequest{}, err
		}
		req.Order = domain.NextOrder(members)
	}
	assigned := req.AssignConnector(in.ConnectorID, now)

	err = s.repo.InTx(ctx, func(tx Repository) error {
		if err := tx.UpdateConnectionRequest(ctx, req); err != nil {
			return err
		}
		if assigned {
			return s.appendSystemActivity(ctx, tx, domain.SystemActivityAssigned, req, req.ConnectorID, "", now)
		}
		return nil
	})
	if err != nil {
		return domain.ConnectionRequest{}, err
	}
	return req, nil
}

// ensureNoOpenDuplicate rejects a second open request for the same person and opportunity.
func (s *Service) ensureNoOpenDuplicate(ctx context.Context, opportunityID, personID, selfID int64) error {
	if personID <= 0 {
		return nil
	}
	existing, err := s.repo.ListConnectionRequests(ctx, RequestQuery{OpportunityID: opportunityID, PersonID: personID})
	if err != nil {
		return err
	}
	for _, r := range existing {
		if r.ID != selfID && r.IsOpen() {
			return validationf("this person already has an open request for this opportunity")
		}
	}
	return nil
}

// ConnectInput holds input values for the connect operation.
type ConnectInput struct {
	RequestID int64
	ActorID   int64
	// CheckedRequirementIDs are the manual requirements the user ticked.
	CheckedRequirementIDs []int64
}

// ConnectResult reports what Connect wrote.
type ConnectResult struct {
	Request       domain.ConnectionRequest
	Member        *domain.GroupMember
	MemberCreated bool
}

// Connect moves a request to Connected, placing the person into the request's group first
// when a placement is configured. A failed requirement guard writes nothing.
func (s *Service) Connect(ctx context.Context, in ConnectInput) (ConnectResult, error) {
	now := s.clock()
	req, err := s.repo.GetConnectionRequest(ctx, in.RequestID)
	if err != nil {
		return ConnectResult{}, err
	}

	var (
		member  *domain.GroupMember
		created bool
	)
	if req.HasPlacement() {
		p := req.Placement
		existing, err := s.repo.FindGroupMember(ctx, p.GroupID, req.PersonID, p.RoleID)
		switch {
		case err == nil:
			member = &existing
		case errors.Is(err, ErrNotFound):
			met, err := s.checkRequirements(ctx, req, in.CheckedRequirementIDs)
			if err != nil {
				return ConnectResult{}, err
			}
			member = &domain.GroupMember{
				GroupID:           p.GroupID,
				PersonID:          req.PersonID,
				RoleID:            p.RoleID,
				Status:            p.MemberStatus,
				Attributes:        req.PlacementAttributes.Clone(),
				MetRequirementIDs: met,
				CreatedAt:         now.UTC(),
			}
			created = true
		default:
			return ConnectResult{}, err
		}
	}

	req.MarkConnected(now)
	err = s.repo.InTx(ctx, func(tx Repository) error {
		if created {
			saved, err := tx.CreateGroupMember(ctx, *member)
			if err != nil {
				return err
			}
			member = &saved
		}
		if err := tx.UpdateConnectionRequest(ctx, req); err != nil {
			return err
		}
		return s.appendSystemActivity(ctx, tx, domain.SystemActivityConnected, req, idPtr(in.ActorID), "", now)
	})
	if err != nil {
		return ConnectResult{}, err
	}
	return ConnectResult{Request: req, Member: member, MemberCreated: created}, nil
}

// checkRequirements enforces must-meet requirements before a new membership is added.
// It returns the manual requirement ids to record as met.
func (s *Service) checkRequirements(ctx context.Context, req domain.ConnectionRequest, checked []int64) ([]int64, error) {
	if s.requirements == nil {
		return nil, nil
	}
	statuses, err := s.requirements.EvaluateRequirements(ctx, req.Placement.GroupID, req.PersonID, req.Placement.RoleID)
	if err != nil {
		return nil, err
	}
	var (
		met    []int64
		failed []string
	)
	for _, status := range statuses {
		if status.Meets == domain.RequirementNotApplicable {
			continue
		}
		switch status.CheckType {
		case domain.RequirementManual:
			if slices.Contains(checked, status.RequirementID) || status.Passing() {
				met = append(met, status.RequirementID)
				continue
			}
			if status.MustMeetToAdd {
				failed = append(failed, status.Name)
			}
		default:
			if status.MustMeetToAdd && !status.Passing() {
				failed = append(failed, status.Name)
			}
		}
	}
	if len(failed) > 0 {
		return nil, validationf("group requirements must be met before adding: %s", strings.Join(failed, ", "))
	}
	return met, nil
}

// RequirementStatuses returns the visible requirement results for a request's placement.
// NotApplicable rows are dropped. It returns nil when the request has no placement.
func (s *Service) RequirementStatuses(ctx context.Context, req domain.ConnectionRequest) ([]domain.RequirementStatus, error) {
	if !req.HasPlacement() || s.requirements == nil {
		return nil, nil
	}
	statuses, err := s.requirements.EvaluateRequirements(ctx, req.Placement.GroupID, req.PersonID, req.Placement.RoleID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.RequirementStatus, 0, len(statuses))
	for _, status := range statuses {
		if status.Meets == domain.RequirementNotApplicable {
			continue
		}
		out = append(out, status)
	}
	return out, nil
}

// TransferInput holds input values for the transfer operation.
type TransferInput struct {
	RequestID     int64
	ActorID       int64
	OpportunityID int64
	StatusID      int64
	Connector     ConnectorPolicy
	Note          string
}

// TransferResult reports the transferred request and whether it changed opportunity.
type TransferResult struct {
	Request            domain.ConnectionRequest
	OpportunityChanged bool
}

// Transfer moves a request to another opportunity and status. The placement is cleared,
// the connector is resolved by policy, and the card goes to the bottom of its new column.
func (s *Service) Transfer(ctx context.Context, in TransferInput) (TransferResult, error) {
	now := s.clock()
	req, err := s.repo.GetConnectionRequest(ctx, in.RequestID)
	if err != nil {
		return TransferResult{}, err
	}
	target, err := s.loadOpportunity(ctx, in.OpportunityID)
	if err != nil {
		return TransferResult{}, err
	}
	statuses, err := s.repo.ListConnectionStatuses(ctx, target.ConnectionTypeID)
	if err != nil {
		return TransferResult{}, err
	}
	status, err := resolveStatus(statuses, in.StatusID)
	if err != nil {
		return TransferResult{}, err
	}
	connectorID, err := in.Connector.resolve(req.ConnectorID, target, req.CampusID)
	if err != nil {
		return TransferResult{}, asValidation(err)
	}
	members, err := columnMembers(ctx, s.repo, target.ID, status.ID, req.ID)
	if err != nil {
		return TransferResult{}, err
	}

	changed := req.OpportunityID != target.ID
	if err := req.Transfer(target.ID, status.ID, domain.NextOrder(members), now); err != nil {
		return TransferResult{}, asValidation(err)
	}
	assigned := req.AssignConnector(connectorID, now)
	note := sanitizeText(in.Note)

	err = s.repo.InTx(ctx, func(tx Repository) error {
		if err := tx.UpdateConnectionRequest(ctx, req); err != nil {
			return err
		}
		if err := s.appendSystemActivity(ctx, tx, domain.SystemActivityTransferred, req, idPtr(in.ActorID), note, now); err != nil {
			return err
		}
		if assigned {
			return s.appendSystemActivity(ctx, tx, domain.SystemActivityAssigned, req, req.ConnectorID, "", now)
		}
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}
	return TransferResult{Request: req, OpportunityChanged: changed}, nil
}

// AssignConnector sets a request's connector from the detail view.
func (s *Service) AssignConnector(ctx context.Context, requestID int64, connectorID *int64) (domain.ConnectionRequest, error) {
	now := s.clock()
	req, err := s.repo.GetConnectionRequest(ctx, requestID)
	if err != nil {
		return domain.ConnectionRequest{}, err
	}
	prev := req.ConnectorID
	assigned := req.AssignConnector(connectorID, now)
	if !assigned && sameConnector(prev, req.ConnectorID) {
		return req, nil
	}
	err = s.repo.InTx(ctx, func(tx Repository) error {
		if err := tx.UpdateConnectionRequest(ctx, req); err != nil {
			return err
		}
		if assigned {
			return s.appendSystemActivity(ctx, tx, domain.SystemActivityAssigned, req, req.ConnectorID, "", now)
		}
		return nil
	})
	if err != nil {
		return domain.ConnectionRequest{}, err
	}
	return req, nil
}

func sameConnector(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// MoveCardInput holds input values for a confirmed card drop.
type MoveCardInput struct {
	RequestID int64
	StatusID  int64
	Index     int
	// Reorder is true only under the manual order sort.
	Reorder bool
}

// MoveCard applies a card drop. With Reorder the target column is renumbered through
// domain.Reorder; otherwise only the status changes.
func (s *Service) MoveCard(ctx context.Context, in MoveCardInput) (domain.ConnectionRequest, error) {
	now := s.clock()
	req, err := s.repo.GetConnectionRequest(ctx, in.RequestID)
	if err != nil {
		return domain.ConnectionRequest{}, err
	}
	opp, err := s.repo.GetOpportunity(ctx, req.OpportunityID)
	if err != nil {
		return domain.ConnectionRequest{}, err
	}
	statuses, err := s.repo.ListConnectionStatuses(ctx, opp.ConnectionTypeID)
	if err != nil {
		return domain.ConnectionRequest{}, err
	}
	if !slices.ContainsFunc(statuses, func(status domain.ConnectionStatus) bool { return status.ID == in.StatusID }) {
		return domain.ConnectionRequest{}, ErrNotFound
	}

	if !in.Reorder {
		if req.StatusID == in.StatusID {
			return req, nil
		}
		if err := req.MoveTo(in.StatusID, req.Order, now); err != nil {
			return domain.ConnectionRequest{}, asValidation(err)
		}
		if err := s.repo.UpdateConnectionRequest(ctx, req); err != nil {
			return domain.ConnectionRequest{}, err
		}
		return req, nil
	}

	members, err := columnMembers(ctx, s.repo, req.OpportunityID, in.StatusID, 0)
	if err != nil {
		return domain.ConnectionRequest{}, err
	}
	assignments := domain.Reorder(members, req.ID, in.Index)
	changed := domain.ChangedOrders(members, assignments)
	delete(changed, req.ID)
	if err := req.MoveTo(in.StatusID, assignments[req.ID], now); err != nil {
		return domain.ConnectionRequest{}, asValidation(err)
	}
	err = s.repo.InTx(ctx, func(tx Repository) error {
		if err := tx.UpdateConnectionRequest(ctx, req); err != nil {
			return err
		}
		if len(changed) == 0 {
			return nil
		}
		return tx.UpdateRequestOrders(ctx, changed)
	})
	if err != nil {
		return domain.ConnectionRequest{}, err
	}
	return req, nil
}

// AddActivityInput holds input values for a manual activity.
type AddActivityInput struct {
	RequestID      int64
	ActorID        int64
	ActivityTypeID int64
	ConnectorID    *int64
	Note           string
}

// AddActivity appends a user-entered activity. The connector defaults to the actor.
func (s *Service) AddActivity(ctx context.Context, in AddActivityInput) (domain.Activity, error) {
	now := s.clock()
	req, err := s.repo.GetConnectionRequest(ctx, in.RequestID)
	if err != nil {
		return domain.Activity{}, err
	}
	opp, err := s.repo.GetOpportunity(ctx, req.OpportunityID)
	if err != nil {
		return domain.Activity{}, err
	}
	types, err := s.repo.ListActivityTypes(ctx)
	if err != nil {
		return domain.Activity{}, err
	}
	allowed := userActivityTypes(types, opp.ConnectionTypeID)
	if !slices.ContainsFunc(allowed, func(t domain.ActivityType) bool { return t.ID == in.ActivityTypeID }) {
		return domain.Activity{}, validationf("activity type is not available for this connection type")
	}
	connectorID := in.ConnectorID
	if connectorID == nil {
		connectorID = idPtr(in.ActorID)
	}
	activity, err := domain.NewActivity(domain.ActivityInput{
		RequestID:      req.ID,
		OpportunityID:  req.OpportunityID,
		ActivityTypeID: in.ActivityTypeID,
		ConnectorID:    connectorID,
		Note:           sanitizeText(in.Note),
	}, now)
	if err != nil {
		return domain.Activity{}, asValidation(err)
	}
	return s.repo.CreateActivity(ctx, activity)
}

// DeleteActivity removes one activity of a request.
func (s *Service) DeleteActivity(ctx context.Context, requestID, activityID int64) error {
	activity, err := s.repo.GetActivity(ctx, activityID)
	if err != nil {
		return err
	}
	if activity.RequestID != requestID {
		return ErrNotFound
	}
	return s.repo.DeleteActivity(ctx, activityID)
}

// DeleteRequest deletes a request and its activities unless the store reports a blocking reason.
func (s *Service) DeleteRequest(ctx context.Context, requestID int64) error {
	if _, err := s.repo.GetConnectionRequest(ctx, requestID); err != nil {
		return err
	}
	return s.repo.InTx(ctx, func(tx Repository) error {
		reason, err := tx.CanDeleteConnectionRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if reason != "" {
			return &PreconditionError{Reason: reason}
		}
		return tx.DeleteConnectionRequest(ctx, requestID)
	})
}
