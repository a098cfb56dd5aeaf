package domain

import (
	"fmt"
	"strings"
)

// ConnectionState is the lifecycle state of a connection request.
type ConnectionState string

// Connection states.
const (
	StateActive         ConnectionState = "active"
	StateInactive       ConnectionState = "inactive"
	StateFutureFollowUp ConnectionState = "future_follow_up"
	StateConnected      ConnectionState = "connected"
)

// ConnectionStates lists every state in display order.
func ConnectionStates() []ConnectionState {
	return []ConnectionState{StateActive, StateInactive, StateFutureFollowUp, StateConnected}
}

// ParseConnectionState accepts canonical values plus the CamelCase and dashed spellings.
func ParseConnectionState(raw string) (ConnectionState, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("_", "", "-", "", " ", "").Replace(key)
	switch key {
	case "active":
		return StateActive, nil
	case "inactive":
		return StateInactive, nil
	case "futurefollowup":
		return StateFutureFollowUp, nil
	case "connected":
		return StateConnected, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidState, raw)
	}
}

// Label returns the human readable state name.
func (s ConnectionState) Label() string {
	switch s {
	case StateActive:
		return "Active"
	case StateInactive:
		return "Inactive"
	case StateFutureFollowUp:
		return "Future Follow Up"
	case StateConnected:
		return "Connected"
	default:
		return string(s)
	}
}

// ConnectionType groups opportunities that share statuses and activity types.
type ConnectionType struct {
	ID                   int64
	Name                 string
	IconCSSClass         string
	DaysUntilRequestIdle int
}

// ConnectionStatus is one board column of a connection type.
type ConnectionStatus struct {
	ID               int64
	ConnectionTypeID int64
	Name             string
	Order            int
	IsActive         bool
	IsDefault        bool
	IsCritical       bool
	HighlightColor   string
}

// Opportunity is a single thing people can be connected to.
type Opportunity struct {
	ID               int64
	ConnectionTypeID int64
	Name             string
	PublicName       string
	IconCSSClass     string
	IsActive         bool
	// CampusConnectors maps campus id to the default connector person id.
	CampusConnectors map[int64]int64
}

// DefaultConnector returns the configured connector for a campus, if any.
func (o Opportunity) DefaultConnector(campusID *int64) *int64 {
	if campusID == nil || len(o.CampusConnectors) == 0 {
		return nil
	}
	personID, ok := o.CampusConnectors[*campusID]
	if !ok || personID <= 0 {
		return nil
	}
	return &personID
}

// SystemActivityKey identifies activity types the board writes on its own.
type SystemActivityKey string

// System activity keys.
const (
	SystemActivityAssigned    SystemActivityKey = "assigned"
	SystemActivityConnected   SystemActivityKey = "connected"
	SystemActivityTransferred SystemActivityKey = "transferred"
)

// SystemActivityKeys lists every system activity key.
func SystemActivityKeys() []SystemActivityKey {
	return []SystemActivityKey{SystemActivityAssigned, SystemActivityConnected, SystemActivityTransferred}
}

// ActivityType describes a kind of connection request activity.
// System types have no connection type and carry a SystemKey.
type ActivityType struct {
	ID               int64
	ConnectionTypeID *int64
	SystemKey        SystemActivityKey
	Name             string
	IsActive         bool
}

// IsSystem reports whether the type is written only by the board itself.
func (t ActivityType) IsSystem() bool {
	return t.SystemKey != ""
}
