package app

import (
	"fmt"
	"strings"

	"github.com/hylla/connboard/internal/domain"
)

// ViewMode is the board's root presentation.
type ViewMode string

// View modes.
const (
	ViewModeCard ViewMode = "card"
	ViewModeGrid ViewMode = "grid"
)

// ParseViewMode validates a view mode. Blank input yields card.
func ParseViewMode(raw string) (ViewMode, error) {
	switch mode := ViewMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case "":
		return ViewModeCard, nil
	case ViewModeCard, ViewModeGrid:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidViewMode, raw)
	}
}

// ModalSubMode is the request modal's current panel.
type ModalSubMode string

// Modal sub-modes.
const (
	ModalView           ModalSubMode = "view"
	ModalAddActivity    ModalSubMode = "add_activity"
	ModalTransfer       ModalSubMode = "transfer"
	ModalTransferSearch ModalSubMode = "transfer_search"
)

// BoardState is one session's view state. The controller takes it by value and returns
// the next state; it never keeps a copy.
type BoardState struct {
	ActorID               int64         `json:"actor_id"`
	ConnectionTypeID      int64         `json:"connection_type_id,omitempty"`
	OpportunityID         int64         `json:"opportunity_id,omitempty"`
	RequestID             int64         `json:"request_id,omitempty"`
	ViewMode              ViewMode      `json:"view_mode"`
	ModalOpen             bool          `json:"modal_open"`
	ModalSubMode          ModalSubMode  `json:"modal_sub_mode"`
	IsAddEditMode         bool          `json:"is_add_edit_mode"`
	ShowAllActivities     bool          `json:"show_all_activities"`
	TransferOpportunityID int64         `json:"transfer_opportunity_id,omitempty"`
	Sort                  SortProperty  `json:"sort"`
	CampusFilter          *int64        `json:"campus_filter,omitempty"`
	ConnectorFilter       *int64        `json:"connector_filter,omitempty"`
	Filter                RequestFilter `json:"filter"`
	GridPage              int           `json:"grid_page"`
}

// IsAdding reports the Add variant of add/edit mode.
func (s BoardState) IsAdding() bool {
	return s.ModalOpen && s.IsAddEditMode && s.RequestID == 0
}

// IsEditing reports the Edit variant of add/edit mode.
func (s BoardState) IsEditing() bool {
	return s.ModalOpen && s.IsAddEditMode && s.RequestID > 0
}

// InViewMode reports the modal showing a request in View.
func (s BoardState) InViewMode() bool {
	return s.ModalOpen && !s.IsAddEditMode && s.RequestID > 0 && s.ModalSubMode == ModalView
}

func (s BoardState) withModalOpen(requestID int64) BoardState {
	s.RequestID = requestID
	s.ModalOpen = true
	s.ModalSubMode = ModalView
	s.IsAddEditMode = false
	s.ShowAllActivities = false
	s.TransferOpportunityID = 0
	return s
}

func (s BoardState) withModalClosed() BoardState {
	s.ModalOpen = false
	s.ModalSubMode = ModalView
	s.IsAddEditMode = false
	s.ShowAllActivities = false
	s.TransferOpportunityID = 0
	return s
}

// NoticeKind classifies a notice for the renderer.
type NoticeKind string

// Notice kinds.
const (
	NoticeValidation NoticeKind = "validation"
	NoticeDanger     NoticeKind = "danger"
	NoticeError      NoticeKind = "error"
	NoticeInfo       NoticeKind = "info"
)

// Notice is a user-visible message produced by a command.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Title   string     `json:"title,omitempty"`
	Message string     `json:"message"`
}

// Refresh tells the rendering layer which regions changed.
type Refresh struct {
	Board    bool `json:"board"`
	Modal    bool `json:"modal"`
	Settings bool `json:"settings"`
}

// Outcome is what a command reports besides the next state.
type Outcome struct {
	Notice  *Notice `json:"notice,omitempty"`
	Refresh Refresh `json:"refresh"`
	// CreatedID is the id of a request created by the command, if any.
	CreatedID int64 `json:"created_id,omitempty"`
}
