package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hylla/connboard/internal/domain"
)

// ConnectorMode picks how a transfer resolves the connector.
type ConnectorMode string

// Connector modes.
const (
	ConnectorKeep     ConnectorMode = "keep"
	ConnectorDefault  ConnectorMode = "default"
	ConnectorNone     ConnectorMode = "none"
	ConnectorExplicit ConnectorMode = "explicit"
)

// ConnectorPolicy is a transfer's connector choice. PersonID is used only by ConnectorExplicit.
type ConnectorPolicy struct {
	Mode     ConnectorMode `json:"mode"`
	PersonID int64         `json:"person_id,omitempty"`
}

// ParseConnectorPolicy reads "keep", "default", "none", or "explicit:<personId>".
// Blank input means keep.
func ParseConnectorPolicy(raw string) (ConnectorPolicy, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch raw {
	case "", "keep", "keepcurrent", "current":
		return ConnectorPolicy{Mode: ConnectorKeep}, nil
	case "default", "opportunitydefault":
		return ConnectorPolicy{Mode: ConnectorDefault}, nil
	case "none":
		return ConnectorPolicy{Mode: ConnectorNone}, nil
	}
	if rest, ok := strings.CutPrefix(raw, "explicit:"); ok {
		id, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
		if err != nil || id <= 0 {
			return ConnectorPolicy{}, fmt.Errorf("%w: %q", domain.ErrInvalidConnectorPolicy, raw)
		}
		return ConnectorPolicy{Mode: ConnectorExplicit, PersonID: id}, nil
	}
	return ConnectorPolicy{}, fmt.Errorf("%w: %q", domain.ErrInvalidConnectorPolicy, raw)
}

// String renders the policy in the form ParseConnectorPolicy reads.
func (p ConnectorPolicy) String() string {
	if p.Mode == ConnectorExplicit {
		return "explicit:" + strconv.FormatInt(p.PersonID, 10)
	}
	if p.Mode == "" {
		return string(ConnectorKeep)
	}
	return string(p.Mode)
}

// resolve returns the connector the transferred request ends up with.
func (p ConnectorPolicy) resolve(current *int64, target domain.Opportunity, campusID *int64) (*int64, error) {
	switch p.Mode {
	case "", ConnectorKeep:
		return current, nil
	case ConnectorDefault:
		return target.DefaultConnector(campusID), nil
	case ConnectorNone:
		return nil, nil
	case ConnectorExplicit:
		if p.PersonID <= 0 {
			return nil, fmt.Errorf("%w: explicit connector requires a person", domain.ErrInvalidConnectorPolicy)
		}
		id := p.PersonID
		return &id, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidConnectorPolicy, p.Mode)
	}
}
