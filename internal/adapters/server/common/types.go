// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hylla/connboard/internal/app"
	"github.com/hylla/connboard/internal/domain"
)

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrPreconditionFailed reports a refused mutation whose reason is shown verbatim.
var ErrPreconditionFailed = errors.New("precondition failed")

// ErrServiceUnavailable reports a surface without its backing service.
var ErrServiceUnavailable = errors.New("service unavailable")

// StartSessionRequest selects where a new board session lands.
type StartSessionRequest struct {
	ActorID       int64 `json:"actor_id"`
	OpportunityID int64 `json:"opportunity_id,omitempty"`
	RequestID     int64 `json:"request_id,omitempty"`
}

// Session is one transport-visible board session.
type Session struct {
	ID        string         `json:"id"`
	State     app.BoardState `json:"state"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// CommandResult reports one applied command.
type CommandResult struct {
	SessionID string         `json:"session_id"`
	Command   string         `json:"command"`
	State     app.BoardState `json:"state"`
	Outcome   app.Outcome    `json:"outcome"`
}

// SessionStart reports a started session and the outcome of landing it.
type SessionStart struct {
	Session
	Outcome app.Outcome `json:"outcome"`
}

// OpportunitySummary is the list shape of one connection opportunity.
type OpportunitySummary struct {
	ID               int64  `json:"id"`
	ConnectionTypeID int64  `json:"connection_type_id"`
	Name             string `json:"name"`
	PublicName       string `json:"public_name,omitempty"`
	IconCSSClass     string `json:"icon_css_class,omitempty"`
	IsActive         bool   `json:"is_active"`
}

// ListOpportunitiesRequest filters the opportunity list. A zero ConnectionTypeID lists all types.
type ListOpportunitiesRequest struct {
	ConnectionTypeID int64
	ActiveOnly       bool
}

// BoardService is the board surface both transports expose.
type BoardService interface {
	ListOpportunities(context.Context, ListOpportunitiesRequest) ([]OpportunitySummary, error)
	StartSession(context.Context, StartSessionRequest) (SessionStart, error)
	GetSession(context.Context, string) (Session, error)
	View(context.Context, string) (app.BoardView, error)
	// ApplyCommand decodes one command envelope and applies it to the session.
	ApplyCommand(context.Context, string, json.RawMessage) (CommandResult, error)
	CloseSession(context.Context, string) error
}

func summarizeOpportunity(opp domain.Opportunity) OpportunitySummary {
	return OpportunitySummary{
		ID:               opp.ID,
		ConnectionTypeID: opp.ConnectionTypeID,
		Name:             opp.Name,
		PublicName:       opp.PublicName,
		IconCSSClass:     opp.IconCSSClass,
		IsActive:         opp.IsActive,
	}
}
