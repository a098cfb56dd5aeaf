package common

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/hylla/connboard/internal/app"
	"github.com/hylla/connboard/internal/domain"
)

// envelope is the shared head of every command payload: {"type": "<command name>", ...}.
type envelope struct {
	Type string `json:"type"`
}

type requestIDPayload struct {
	envelope
	RequestID int64 `json:"request_id"`
}

type opportunityIDPayload struct {
	envelope
	OpportunityID int64 `json:"opportunity_id"`
}

type connectorPayload struct {
	envelope
	ConnectorID *int64 `json:"connector_id"`
}

type requestFormPayload struct {
	envelope
	PersonID            int64             `json:"person_id"`
	StatusID            int64             `json:"status_id"`
	State               string            `json:"state"`
	ConnectorID         *int64            `json:"connector_id"`
	CampusID            *int64            `json:"campus_id"`
	Comments            string            `json:"comments"`
	FollowupDate        string            `json:"followup_date"`
	PlacementGroupID    *int64            `json:"placement_group_id"`
	PlacementRoleID     *int64            `json:"placement_role_id"`
	PlacementStatus     string            `json:"placement_status"`
	PlacementAttributes map[string]string `json:"placement_attributes"`
}

type saveActivityPayload struct {
	envelope
	ActivityTypeID int64  `json:"activity_type_id"`
	ConnectorID    *int64 `json:"connector_id"`
	Note           string `json:"note"`
}

type deleteActivityPayload struct {
	envelope
	ActivityID int64 `json:"activity_id"`
}

type saveTransferPayload struct {
	envelope
	OpportunityID int64  `json:"opportunity_id"`
	StatusID      int64  `json:"status_id"`
	Connector     string `json:"connector"`
	Note          string `json:"note"`
}

type connectPayload struct {
	envelope
	CheckedRequirementIDs []int64 `json:"checked_requirement_ids"`
}

type cardPayload struct {
	envelope
	Raw string `json:"raw"`
}

type sortPayload struct {
	envelope
	Sort string `json:"sort"`
}

type campusPayload struct {
	envelope
	CampusID *int64 `json:"campus_id"`
}

type filterPayload struct {
	envelope
	Filter app.RequestFilter `json:"filter"`
}

type gridPagePayload struct {
	envelope
	Page int `json:"page"`
}

type commandDecoder func(json.RawMessage) (app.Command, error)

// commandDecoders maps every command name to its payload decoder.
var commandDecoders = map[string]commandDecoder{
	"select_request": func(raw json.RawMessage) (app.Command, error) {
		var p requestIDPayload
		if err := strictDecode(raw, &p); err != nil {
			return nil, err
		}
		return app.SelectRequest{RequestID: p.RequestID}, nil
	},
	"open_add":    bare(app.OpenAdd{}),
	"open_edit":   bare(app.OpenEdit{}),
	"cancel_edit": bare(app.CancelEdit{}),
	"save_request": func(raw json.RawMessage) (app.Command, error) {
		var p requestFormPayload
		if err := strictDecode(raw, &p); err != nil {
			return nil, err
		}
		form, err := p.form()
		if err != nil {
			return nil, err
		}
		return app.SaveRequest{Form: form}, nil
	},
	"begin_add_activity": bare(app.BeginAddActivity{}),
	"save_activity": func(raw json.RawMessage) (app.Command, error) {
		var p saveActivityPayload
		if err := strictDecode(raw, &p); err != nil {
			return nil, err
		}
		return app.SaveActivity{ActivityTypeID: p.ActivityTypeID, ConnectorID: p.ConnectorID, Note: p.Note}, nil
	},
	"cancel_activity": bare(app.CancelActivity{}),
	"delete_activity": func(raw json.RawMessage) (app.Command, error) {
		var p deleteActivityPayload
		if err := strictDecode(raw, &p); err != nil {
			return nil, err
		}
		return app.DeleteActivity{ActivityID: p.ActivityID}, nil
	},
	"show_all_activities":   bare(app.ShowAllActivities{}),
	"begin_transfer":        bare(app.BeginTransfer{}),
	"begin_transfer_search": bare(app.BeginTransferSearch{}),
	"pick_transfer_opportunity": func(raw json.RawMessage) (app.Command, error) {
		var p opportunityIDPayload
		if err := strictDecode(raw, &p); err != nil {
			return nil, err
		}
		return app.PickTransferOpportunity{OpportunityID: p.OpportunityID}, nil
	},
	"cancel_transfer_search": bare(app.CancelTransferSearch{}),
	"save_transfer": func(raw json.RawMessage) (app.Command, error) {
		var p saveTransferPayload
		if err := strictDecode(raw, &p); err != nil {
			return nil, err
		}
		policy, err := app.ParseConnectorPolicy(p.Connector)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		return app.SaveTransfer{OpportunityID: p.OpportunityID, StatusID: p.StatusID, Connector: policy, Note: p.Note}, nil
	},
	"cancel_transfer": bare(app.CancelTransfer{}),
	"connect": func(raw json.RawMessage) (app.Command, error) {
		var p connectPayload
		if err := strictDecode(raw, &p); err != nil {
			return nil, err
		}
		return app.Connect{CheckedRequirementIDs: p.CheckedRequirementIDs}, nil
	},
	"assign_connector": func(raw json.RawMessage) (app.Command, error) {
		var p connectorPayload
		if err := strictDecode(raw, &p); err != nil {
			return nil, err
		}
		return app.AssignConnector{ConnectorID: p.ConnectorID}, nil
	},
	"card": func(raw json.RawMessage) (app.Command, error) {
		var p cardPayload
		if err := strictDecode(raw, &p); err != nil {
			return nil, err
		}
		return app.CardCommand{Raw: p.Raw}, nil
	},
	"toggle_view_mode": bare(app.ToggleViewMode{}),
	"select_opportunity": func(raw json.RawMessage) (app.Command, error) {
		var p opportunityIDPayload
		if err := strictDecode(raw, &p); err != nil {
			return nil, err
		}
		return app.SelectOpportunity{OpportunityID: p.OpportunityID}, nil
	},
	"set_sort": func(raw json.RawMessage) (app.Command, error) {
		var p sortPayload
		if err := strictDecode(raw, &p); err != nil {
			return nil, err
		}
		return app.SetSort{Sort: app.SortProperty(p.Sort)}, nil
	},
	"set_campus": func(raw json.RawMessage) (app.Command, error) {
		var p campusPayload
		if err := strictDecode(raw, &p); err != nil {
			return nil, err
		}
		return app.SetCampus{CampusID: p.CampusID}, nil
	},
	"set_connector": func(raw json.RawMessage) (app.Command, error) {
		var p connectorPayload
		if err := strictDecode(raw, &p); err != nil {
			return nil, err
		}
		return app.SetConnector{ConnectorID: p.ConnectorID}, nil
	},
	"apply_filter": func(raw json.RawMessage) (app.Command, error) {
		var p filterPayload
		if err := strictDecode(raw, &p); err != nil {
			return nil, err
		}
		return app.ApplyFilter{Filter: p.Filter}, nil
	},
	"clear_filter": bare(app.ClearFilter{}),
	"set_grid_page": func(raw json.RawMessage) (app.Command, error) {
		var p gridPagePayload
		if err := strictDecode(raw, &p); err != nil {
			return nil, err
		}
		return app.SetGridPage{Page: p.Page}, nil
	},
	"delete_request": func(raw json.RawMessage) (app.Command, error) {
		var p requestIDPayload
		if err := strictDecode(raw, &p); err != nil {
			return nil, err
		}
		return app.DeleteRequest{RequestID: p.RequestID}, nil
	},
	"close_modal": bare(app.CloseModal{}),
}

// CommandNames returns every accepted command type in sorted order.
func CommandNames() []string {
	names := make([]string, 0, len(commandDecoders))
	for name := range commandDecoders {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DecodeCommand reads one {"type": ...} command envelope.
func DecodeCommand(raw json.RawMessage) (app.Command, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("decode command: empty payload: %w", ErrInvalidRequest)
	}
	var head envelope
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode command: %w", errors.Join(ErrInvalidRequest, err))
	}
	name := strings.TrimSpace(head.Type)
	if name == "" {
		return nil, fmt.Errorf("decode command: type is required: %w", ErrInvalidRequest)
	}
	decode, ok := commandDecoders[name]
	if !ok {
		return nil, fmt.Errorf("decode command: unknown type %q: %w", name, ErrInvalidRequest)
	}
	cmd, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s command: %w", name, err)
	}
	return cmd, nil
}

func bare(cmd app.Command) commandDecoder {
	return func(raw json.RawMessage) (app.Command, error) {
		var p envelope
		if err := strictDecode(raw, &p); err != nil {
			return nil, err
		}
		return cmd, nil
	}
}

// strictDecode rejects unknown fields and trailing content.
func strictDecode(raw json.RawMessage, out any) error {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return errors.Join(ErrInvalidRequest, err)
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("trailing content: %w", ErrInvalidRequest)
	}
	return nil
}

func (p requestFormPayload) form() (app.RequestForm, error) {
	form := app.RequestForm{
		PersonID:         p.PersonID,
		StatusID:         p.StatusID,
		ConnectorID:      p.ConnectorID,
		CampusID:         p.CampusID,
		Comments:         p.Comments,
		PlacementGroupID: p.PlacementGroupID,
		PlacementRoleID:  p.PlacementRoleID,
		PlacementStatus:  p.PlacementStatus,
	}
	if strings.TrimSpace(p.State) != "" {
		state, err := domain.ParseConnectionState(p.State)
		if err != nil {
			return app.RequestForm{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		form.State = state
	}
	if date := strings.TrimSpace(p.FollowupDate); date != "" {
		parsed, err := parseDate(date)
		if err != nil {
			return app.RequestForm{}, err
		}
		form.FollowupDate = &parsed
	}
	if len(p.PlacementAttributes) > 0 {
		form.PlacementAttributes = domain.AttributeValues(p.PlacementAttributes)
	}
	return form, nil
}

// parseDate accepts a calendar date or an RFC3339 timestamp.
func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("followup_date %q: %w", raw, ErrInvalidRequest)
	}
	return t, nil
}
