package app

import (
	"strconv"
	"strings"
	"time"

	"github.com/hylla/connboard/internal/domain"
)

// Command is one board command. The concrete types below form the whole vocabulary.
type Command interface {
	CommandName() string
}

// SelectRequest opens a request in the modal's View panel.
type SelectRequest struct{ RequestID int64 }

// OpenAdd opens the modal to add a request.
type OpenAdd struct{}

// OpenEdit switches the viewed request to Edit.
type OpenEdit struct{}

// CancelEdit leaves add/edit mode.
type CancelEdit struct{}

// RequestForm is the add/edit form payload.
type RequestForm struct {
	PersonID            int64
	StatusID            int64
	State               domain.ConnectionState
	ConnectorID         *int64
	CampusID            *int64
	Comments            string
	FollowupDate        *time.Time
	PlacementGroupID    *int64
	PlacementRoleID     *int64
	PlacementStatus     string
	PlacementAttributes domain.AttributeValues
}

// SaveRequest saves the add/edit form.
type SaveRequest struct{ Form RequestForm }

// BeginAddActivity opens the add-activity panel.
type BeginAddActivity struct{}

// SaveActivity adds a manual activity to the selected request.
type SaveActivity struct {
	ActivityTypeID int64
	ConnectorID    *int64
	Note           string
}

// CancelActivity returns from the add-activity panel.
type CancelActivity struct{}

// DeleteActivity removes an activity of the selected request.
type DeleteActivity struct{ ActivityID int64 }

// ShowAllActivities lifts the activity list cap.
type ShowAllActivities struct{}

// BeginTransfer opens the transfer panel.
type BeginTransfer struct{}

// BeginTransferSearch opens the opportunity search from the transfer panel.
type BeginTransferSearch struct{}

// PickTransferOpportunity chooses a search result and returns to the transfer panel.
type PickTransferOpportunity struct{ OpportunityID int64 }

// CancelTransferSearch returns from search to the transfer panel.
type CancelTransferSearch struct{}

// SaveTransfer transfers the selected request.
type SaveTransfer struct {
	OpportunityID int64
	StatusID      int64
	Connector     ConnectorPolicy
	Note          string
}

// CancelTransfer returns from the transfer panel.
type CancelTransfer struct{}

// Connect connects the selected request.
type Connect struct{ CheckedRequirementIDs []int64 }

// AssignConnector changes the selected request's connector.
type AssignConnector struct{ ConnectorID *int64 }

// CardCommand is an encoded card interaction, "action|requestId|newStatusId|newIndex".
type CardCommand struct{ Raw string }

// ToggleViewMode flips between card and grid.
type ToggleViewMode struct{}

// SelectOpportunity switches the board to another opportunity.
type SelectOpportunity struct{ OpportunityID int64 }

// SetSort changes the sort.
type SetSort struct{ Sort SortProperty }

// SetCampus changes the campus filter; nil clears it.
type SetCampus struct{ CampusID *int64 }

// SetConnector changes the connector filter; nil means all connectors.
type SetConnector struct{ ConnectorID *int64 }

// ApplyFilter replaces the filter panel values.
type ApplyFilter struct{ Filter RequestFilter }

// ClearFilter resets the filter panel.
type ClearFilter struct{}

// SetGridPage moves the grid to a zero-based page.
type SetGridPage struct{ Page int }

// DeleteRequest deletes a request.
type DeleteRequest struct{ RequestID int64 }

// CloseModal closes the request modal.
type CloseModal struct{}

func (SelectRequest) CommandName() string           { return "select_request" }
func (OpenAdd) CommandName() string                 { return "open_add" }
func (OpenEdit) CommandName() string                { return "open_edit" }
func (CancelEdit) CommandName() string              { return "cancel_edit" }
func (SaveRequest) CommandName() string             { return "save_request" }
func (BeginAddActivity) CommandName() string        { return "begin_add_activity" }
func (SaveActivity) CommandName() string            { return "save_activity" }
func (CancelActivity) CommandName() string          { return "cancel_activity" }
func (DeleteActivity) CommandName() string          { return "delete_activity" }
func (ShowAllActivities) CommandName() string       { return "show_all_activities" }
func (BeginTransfer) CommandName() string           { return "begin_transfer" }
func (BeginTransferSearch) CommandName() string     { return "begin_transfer_search" }
func (PickTransferOpportunity) CommandName() string { return "pick_transfer_opportunity" }
func (CancelTransferSearch) CommandName() string    { return "cancel_transfer_search" }
func (SaveTransfer) CommandName() string            { return "save_transfer" }
func (CancelTransfer) CommandName() string          { return "cancel_transfer" }
func (Connect) CommandName() string                 { return "connect" }
func (AssignConnector) CommandName() string         { return "assign_connector" }
func (CardCommand) CommandName() string             { return "card" }
func (ToggleViewMode) CommandName() string          { return "toggle_view_mode" }
func (SelectOpportunity) CommandName() string       { return "select_opportunity" }
func (SetSort) CommandName() string                 { return "set_sort" }
func (SetCampus) CommandName() string               { return "set_campus" }
func (SetConnector) CommandName() string            { return "set_connector" }
func (ApplyFilter) CommandName() string             { return "apply_filter" }
func (ClearFilter) CommandName() string             { return "clear_filter" }
func (SetGridPage) CommandName() string             { return "set_grid_page" }
func (DeleteRequest) CommandName() string           { return "delete_request" }
func (CloseModal) CommandName() string              { return "close_modal" }

// CardAction is the action part of an encoded card command.
type CardAction string

// Card actions.
const (
	CardActionView        CardAction = "view"
	CardActionConnect     CardAction = "connect"
	CardActionDropConfirm CardAction = "card-drop-confirmed"
)

// CardCommandDelimiter separates the parts of an encoded card command.
const CardCommandDelimiter = "|"

// DecodedCardCommand is a parsed card command. StatusID and Index are set only for drops.
type DecodedCardCommand struct {
	Action    CardAction
	RequestID int64
	StatusID  int64
	Index     int
}

// ParseCardCommand decodes "action|requestId|newStatusId|newIndex". It reports false for
// unknown actions, a missing or invalid request id, and drops lacking status or index.
func ParseCardCommand(raw string) (DecodedCardCommand, bool) {
	parts := strings.Split(raw, CardCommandDelimiter)
	if len(parts) < 2 {
		return DecodedCardCommand{}, false
	}
	action := CardAction(strings.ToLower(strings.TrimSpace(parts[0])))
	requestID, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil || requestID <= 0 {
		return DecodedCardCommand{}, false
	}
	cmd := DecodedCardCommand{Action: action, RequestID: requestID}
	switch action {
	case CardActionView, CardActionConnect:
		return cmd, true
	case CardActionDropConfirm:
		if len(parts) < 4 {
			return DecodedCardCommand{}, false
		}
		statusID, err := strconv.ParseInt(strings.TrimSpace(parts[2]), 10, 64)
		if err != nil || statusID <= 0 {
			return DecodedCardCommand{}, false
		}
		index, err := strconv.Atoi(strings.TrimSpace(parts[3]))
		if err != nil {
			return DecodedCardCommand{}, false
		}
		cmd.StatusID = statusID
		cmd.Index = index
		return cmd, true
	default:
		return DecodedCardCommand{}, false
	}
}
