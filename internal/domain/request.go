package domain

import (
	"fmt"
	"strings"
	"time"
)

// ConnectionRequest is a person's request to be connected to an opportunity.
type ConnectionRequest struct {
	ID                  int64
	OpportunityID       int64
	PersonID            int64
	StatusID            int64
	State               ConnectionState
	ConnectorID         *int64
	CampusID            *int64
	Order               int
	Comments            string
	FollowupDate        *time.Time
	Placement           *Placement
	PlacementAttributes AttributeValues
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ConnectionRequestInput holds values for NewConnectionRequest.
type ConnectionRequestInput struct {
	ID                  int64
	OpportunityID       int64
	PersonID            int64
	StatusID            int64
	State               ConnectionState
	ConnectorID         *int64
	CampusID            *int64
	Order               int
	Comments            string
	FollowupDate        *time.Time
	Placement           *Placement
	PlacementAttributes AttributeValues
}

// NewConnectionRequest validates input and builds a request. State defaults to Active.
func NewConnectionRequest(in ConnectionRequestInput, now time.Time) (ConnectionRequest, error) {
	if in.ID < 0 {
		return ConnectionRequest{}, ErrInvalidID
	}
	if in.OpportunityID <= 0 {
		return ConnectionRequest{}, fmt.Errorf("%w: opportunity is required", ErrInvalidID)
	}
	if in.PersonID <= 0 {
		return ConnectionRequest{}, fmt.Errorf("%w: requester is required", ErrInvalidID)
	}
	if in.StatusID <= 0 {
		return ConnectionRequest{}, fmt.Errorf("%w: status is required", ErrInvalidID)
	}
	if in.State == "" {
		in.State = StateActive
	}
	if in.Placement != nil {
		if err := in.Placement.Validate(); err != nil {
			return ConnectionRequest{}, err
		}
	}

	r := ConnectionRequest{
		ID:                  in.ID,
		OpportunityID:       in.OpportunityID,
		PersonID:            in.PersonID,
		StatusID:            in.StatusID,
		ConnectorID:         positiveOrNil(in.ConnectorID),
		CampusID:            positiveOrNil(in.CampusID),
		Order:               in.Order,
		Comments:            strings.TrimSpace(in.Comments),
		Placement:           clonePlacement(in.Placement),
		PlacementAttributes: in.PlacementAttributes.Clone(),
		CreatedAt:           now.UTC(),
		UpdatedAt:           now.UTC(),
	}
	if err := r.SetState(in.State, in.FollowupDate, now); err != nil {
		return ConnectionRequest{}, err
	}
	r.UpdatedAt = r.CreatedAt
	return r, nil
}

// SetState applies a direct state edit. FutureFollowUp requires a followup date;
// any other state clears it.
func (r *ConnectionRequest) SetState(state ConnectionState, followup *time.Time, now time.Time) error {
	state, err := ParseConnectionState(string(state))
	if err != nil {
		return err
	}
	if state == StateFutureFollowUp {
		if followup == nil || followup.IsZero() {
			return ErrFollowupDateRequired
		}
		date := followup.UTC()
		r.FollowupDate = &date
	} else {
		r.FollowupDate = nil
	}
	r.State = state
	r.UpdatedAt = now.UTC()
	return nil
}

// RequestDetailsInput holds the fields an add/edit form may change.
type RequestDetailsInput struct {
	PersonID            int64
	StatusID            int64
	State               ConnectionState
	CampusID            *int64
	Comments            string
	FollowupDate        *time.Time
	Placement           *Placement
	PlacementAttributes AttributeValues
}

// UpdateDetails applies an edit. It is all-or-nothing: on error the request is unchanged.
func (r *ConnectionRequest) UpdateDetails(in RequestDetailsInput, now time.Time) error {
	if in.PersonID <= 0 {
		return fmt.Errorf("%w: requester is required", ErrInvalidID)
	}
	if in.StatusID <= 0 {
		return fmt.Errorf("%w: status is required", ErrInvalidID)
	}
	if in.Placement != nil {
		if err := in.Placement.Validate(); err != nil {
			return err
		}
	}
	next := *r
	if err := next.SetState(in.State, in.FollowupDate, now); err != nil {
		return err
	}
	next.PersonID = in.PersonID
	next.StatusID = in.StatusID
	next.CampusID = positiveOrNil(in.CampusID)
	next.Comments = strings.TrimSpace(in.Comments)
	next.Placement = clonePlacement(in.Placement)
	next.PlacementAttributes = in.PlacementAttributes.Clone()
	if next.Placement == nil {
		next.PlacementAttributes = nil
	}
	*r = next
	return nil
}

// AssignConnector sets the connector. It reports true when the connector changed to a
// different non-nil person, which is when an Assigned activity is due.
func (r *ConnectionRequest) AssignConnector(connectorID *int64, now time.Time) bool {
	connectorID = positiveOrNil(connectorID)
	if sameID(r.ConnectorID, connectorID) {
		return false
	}
	r.ConnectorID = connectorID
	r.UpdatedAt = now.UTC()
	return connectorID != nil
}

// MoveTo places the request in a status column at the given order.
func (r *ConnectionRequest) MoveTo(statusID int64, order int, now time.Time) error {
	if statusID <= 0 {
		return ErrInvalidID
	}
	r.StatusID = statusID
	r.Order = order
	r.UpdatedAt = now.UTC()
	return nil
}

// MarkConnected moves the request to the Connected state.
func (r *ConnectionRequest) MarkConnected(now time.Time) {
	r.State = StateConnected
	r.FollowupDate = nil
	r.UpdatedAt = now.UTC()
}

// Transfer moves the request to another opportunity/status and drops its placement.
func (r *ConnectionRequest) Transfer(opportunityID, statusID int64, order int, now time.Time) error {
	if opportunityID <= 0 || statusID <= 0 {
		return ErrInvalidID
	}
	r.OpportunityID = opportunityID
	r.StatusID = statusID
	r.Order = order
	r.Placement = nil
	r.PlacementAttributes = nil
	r.UpdatedAt = now.UTC()
	return nil
}

// HasPlacement reports whether a full placement triple is set.
func (r ConnectionRequest) HasPlacement() bool {
	return r.Placement != nil && r.Placement.Validate() == nil
}

// IsOpen reports whether the request still needs work.
func (r ConnectionRequest) IsOpen() bool {
	return r.State == StateActive || r.State == StateFutureFollowUp
}

// CanConnect reports whether the Connect operation applies.
func (r ConnectionRequest) CanConnect() bool {
	return r.State != StateConnected && r.State != StateInactive
}

func positiveOrNil(id *int64) *int64 {
	if id == nil || *id <= 0 {
		return nil
	}
	v := *id
	return &v
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func clonePlacement(p *Placement) *Placement {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}
