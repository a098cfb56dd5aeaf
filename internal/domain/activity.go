package domain

import (
	"fmt"
	"strings"
	"time"
)

// Activity is an append-only log entry on a connection request.
type Activity struct {
	ID             int64
	RequestID      int64
	OpportunityID  int64
	ActivityTypeID int64
	ConnectorID    *int64
	Note           string
	CreatedAt      time.Time
}

// ActivityInput holds values for NewActivity.
type ActivityInput struct {
	RequestID      int64
	OpportunityID  int64
	ActivityTypeID int64
	ConnectorID    *int64
	Note           string
}

// NewActivity validates and builds an activity stamped with now.
func NewActivity(in ActivityInput, now time.Time) (Activity, error) {
	if in.RequestID <= 0 || in.OpportunityID <= 0 {
		return Activity{}, ErrInvalidID
	}
	if in.ActivityTypeID <= 0 {
		return Activity{}, fmt.Errorf("%w: activity type is required", ErrInvalidActivityType)
	}
	return Activity{
		RequestID:      in.RequestID,
		OpportunityID:  in.OpportunityID,
		ActivityTypeID: in.ActivityTypeID,
		ConnectorID:    positiveOrNil(in.ConnectorID),
		Note:           strings.TrimSpace(in.Note),
		CreatedAt:      now.UTC(),
	}, nil
}
