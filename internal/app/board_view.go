package app

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hylla/connboard/internal/domain"
)

// Option is a generic id/name picker entry.
type Option struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// StatusOption is one status of the add/edit and transfer pickers.
type StatusOption struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	IsDefault  bool   `json:"is_default"`
	IsCritical bool   `json:"is_critical"`
}

// OpportunityNav is an opportunity entry of the navigation panel.
type OpportunityNav struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	PublicName   string `json:"public_name,omitempty"`
	IconCSSClass string `json:"icon_css_class,omitempty"`
	Selected     bool   `json:"selected"`
}

// ConnectionTypeNav groups active opportunities under their connection type.
type ConnectionTypeNav struct {
	ID            int64            `json:"id"`
	Name          string           `json:"name"`
	IconCSSClass  string           `json:"icon_css_class,omitempty"`
	Opportunities []OpportunityNav `json:"opportunities"`
}

// RequirementView is one visible group requirement of the detail panel.
type RequirementView struct {
	RequirementID int64                       `json:"requirement_id"`
	Name          string                      `json:"name"`
	CheckType     domain.RequirementCheckType `json:"check_type"`
	MustMeetToAdd bool                        `json:"must_meet_to_add"`
	Meets         domain.RequirementMeets     `json:"meets"`
	Message       string                      `json:"message,omitempty"`
}

// WorkflowView is a workflow launched for the request.
type WorkflowView struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// RequestDetail is the request modal's content.
type RequestDetail struct {
	Request             RequestView            `json:"request"`
	Placement           *domain.Placement      `json:"placement,omitempty"`
	PlacementAttributes domain.AttributeValues `json:"placement_attributes,omitempty"`
	Activities          ActivityListView       `json:"activities"`
	Requirements        []RequirementView      `json:"requirements,omitempty"`
	Workflows           []WorkflowView         `json:"workflows,omitempty"`
	CanConnect          bool                   `json:"can_connect"`
	CanTransfer         bool                   `json:"can_transfer"`
}

// TransferView is the transfer panel's pickers.
type TransferView struct {
	OpportunityID      int64            `json:"opportunity_id"`
	Opportunities      []OpportunityNav `json:"opportunities"`
	Statuses           []StatusOption   `json:"statuses"`
	DefaultConnectorID *int64           `json:"default_connector_id,omitempty"`
	CurrentConnectorID *int64           `json:"current_connector_id,omitempty"`
}

// BoardView is everything a renderer needs for one session state.
type BoardView struct {
	State         BoardState          `json:"state"`
	Navigation    []ConnectionTypeNav `json:"navigation"`
	Opportunity   *OpportunityNav     `json:"opportunity,omitempty"`
	Statuses      []StatusOption      `json:"statuses"`
	SortOptions   []SortOption        `json:"sort_options"`
	Campuses      []Option            `json:"campuses"`
	Connectors    []Option            `json:"connectors"`
	ActivityTypes []Option            `json:"activity_types"`
	IdleTooltip   string              `json:"idle_tooltip,omitempty"`
	LegendHTML    string              `json:"legend_html,omitempty"`
	Columns       []ColumnView        `json:"columns,omitempty"`
	Grid          *GridView           `json:"grid,omitempty"`
	Detail        *RequestDetail      `json:"detail,omitempty"`
	Transfer      *TransferView       `json:"transfer,omitempty"`
	Notices       []Notice            `json:"notices,omitempty"`
}

// IdleTooltip is the merge text describing the idle flag.
func IdleTooltip(days int) string {
	return fmt.Sprintf("Idle (no activity in %d days)", days)
}

// View reads everything the given state shows. It does not change state.
func (b *Board) View(ctx context.Context, state BoardState) (BoardView, error) {
	view := BoardView{
		State:         state,
		SortOptions:   SortOptions(),
		Statuses:      []StatusOption{},
		Campuses:      []Option{},
		Connectors:    []Option{},
		ActivityTypes: []Option{},
	}
	nav, err := b.navigation(ctx, state.OpportunityID)
	if err != nil {
		return BoardView{}, err
	}
	view.Navigation = nav
	if state.OpportunityID <= 0 {
		return view, nil
	}

	opp, err := b.repo.GetOpportunity(ctx, state.OpportunityID)
	if err != nil {
		return BoardView{}, fmt.Errorf("load opportunity %d: %w", state.OpportunityID, err)
	}
	view.Opportunity = &OpportunityNav{ID: opp.ID, Name: opp.Name, PublicName: opp.PublicName, IconCSSClass: opp.IconCSSClass, Selected: true}
	connType, err := b.repo.GetConnectionType(ctx, opp.ConnectionTypeID)
	if err != nil {
		return BoardView{}, fmt.Errorf("load connection type %d: %w", opp.ConnectionTypeID, err)
	}
	allStatuses, err := b.repo.ListConnectionStatuses(ctx, opp.ConnectionTypeID)
	if err != nil {
		return BoardView{}, err
	}
	statuses := activeStatuses(allStatuses)
	view.Statuses = statusOptions(statuses)

	campuses, err := b.repo.ListCampuses(ctx)
	if err != nil {
		return BoardView{}, err
	}
	campusByID := make(map[int64]domain.Campus, len(campuses))
	for _, c := range campuses {
		campusByID[c.ID] = c
		view.Campuses = append(view.Campuses, Option{ID: c.ID, Name: c.Name})
	}

	types, err := b.repo.ListActivityTypes(ctx)
	if err != nil {
		return BoardView{}, err
	}
	for _, t := range userActivityTypes(types, opp.ConnectionTypeID) {
		view.ActivityTypes = append(view.ActivityTypes, Option{ID: t.ID, Name: t.Name})
	}

	requests, err := b.repo.ListConnectionRequests(ctx, RequestQuery{OpportunityID: opp.ID})
	if err != nil {
		return BoardView{}, err
	}
	latest, err := b.repo.ListLatestActivities(ctx, opp.ID)
	if err != nil {
		return BoardView{}, err
	}

	var (
		selected   *domain.ConnectionRequest
		activities []domain.Activity
	)
	if state.ModalOpen && state.RequestID > 0 {
		req, err := b.repo.GetConnectionRequest(ctx, state.RequestID)
		switch {
		case err == nil && req.OpportunityID == opp.ID:
			selected = &req
			limit := b.cfg.ActivityPageSize + 1
			if state.ShowAllActivities {
				limit = 0
			}
			activities, err = b.repo.ListActivities(ctx, req.ID, limit)
			if err != nil {
				return BoardView{}, err
			}
		case err == nil, errors.Is(err, ErrNotFound):
		default:
			return BoardView{}, err
		}
	}

	personIDs := connectorIDs(opp, requests)
	for _, r := range requests {
		personIDs = append(personIDs, r.PersonID)
	}
	for _, a := range activities {
		if a.ConnectorID != nil {
			personIDs = append(personIDs, *a.ConnectorID)
		}
	}
	if state.Filter.RequesterID != nil {
		personIDs = append(personIDs, *state.Filter.RequesterID)
	}
	people, err := b.peopleByID(ctx, personIDs)
	if err != nil {
		return BoardView{}, err
	}
	for _, id := range uniqueIDs(connectorIDs(opp, requests)) {
		view.Connectors = append(view.Connectors, Option{ID: id, Name: people[id].FullName()})
	}
	slices.SortFunc(view.Connectors, func(a, b Option) int {
		if c := cmp.Compare(people[a.ID].SortName(), people[b.ID].SortName()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	groups, err := b.groupsByID(ctx, requests)
	if err != nil {
		return BoardView{}, err
	}

	view.IdleTooltip = IdleTooltip(connType.DaysUntilRequestIdle)
	if b.icons != nil {
		legend, err := b.icons.RenderStatusLegend(view.IdleTooltip)
		if err != nil {
			b.logger.Warn("render status legend", "err", err)
		}
		view.LegendHTML = legend
	}

	input := ProjectionInput{
		Requests:             requests,
		Statuses:             allStatuses,
		People:               people,
		Campuses:             campusByID,
		Groups:               groups,
		LatestActivities:     latest,
		ActorID:              state.ActorID,
		DaysUntilRequestIdle: connType.DaysUntilRequestIdle,
		Now:                  b.svc.clock(),
		CampusID:             state.CampusFilter,
		ConnectorID:          state.ConnectorFilter,
		Filter:               state.Filter,
		Sort:                 state.Sort,
	}
	rows := b.withStatusIcons(ProjectRequests(input), view.IdleTooltip)
	if state.ViewMode == ViewModeGrid {
		grid := GridPage(rows, state.GridPage, b.cfg.GridPageSize)
		view.Grid = &grid
	} else {
		view.Columns = BoardColumns(rows, statuses, b.cfg.MaxCardsPerColumn)
	}

	if selected != nil {
		single := input
		single.Requests = []domain.ConnectionRequest{*selected}
		single.CampusID, single.ConnectorID, single.Filter = nil, nil, RequestFilter{}
		projected := b.withStatusIcons(ProjectRequests(single), view.IdleTooltip)
		detail, notices, err := b.detail(ctx, *selected, projected[0], activities, types, people, state)
		if err != nil {
			return BoardView{}, err
		}
		view.Detail = &detail
		view.Notices = append(view.Notices, notices...)

		if state.ModalSubMode == ModalTransfer || state.ModalSubMode == ModalTransferSearch {
			transfer, err := b.transferView(ctx, state, opp.ConnectionTypeID, *selected)
			if err != nil {
				return BoardView{}, err
			}
			transfer.Statuses = view.Statuses
			view.Transfer = &transfer
		}
	}
	return view, nil
}

func (b *Board) navigation(ctx context.Context, selectedID int64) ([]ConnectionTypeNav, error) {
	types, err := b.repo.ListConnectionTypes(ctx)
	if err != nil {
		return nil, err
	}
	opps, err := b.repo.ListOpportunities(ctx, 0)
	if err != nil {
		return nil, err
	}
	byType := map[int64][]OpportunityNav{}
	for _, opp := range opps {
		if !opp.IsActive {
			continue
		}
		byType[opp.ConnectionTypeID] = append(byType[opp.ConnectionTypeID], OpportunityNav{
			ID:           opp.ID,
			Name:         opp.Name,
			PublicName:   opp.PublicName,
			IconCSSClass: opp.IconCSSClass,
			Selected:     opp.ID == selectedID,
		})
	}
	out := make([]ConnectionTypeNav, 0, len(types))
	for _, t := range types {
		items := byType[t.ID]
		if len(items) == 0 {
			continue
		}
		out = append(out, ConnectionTypeNav{ID: t.ID, Name: t.Name, IconCSSClass: t.IconCSSClass, Opportunities: items})
	}
	return out, nil
}

func (b *Board) detail(ctx context.Context, req domain.ConnectionRequest, row RequestView, activities []domain.Activity, types []domain.ActivityType, people map[int64]domain.Person, state BoardState) (RequestDetail, []Notice, error) {
	detail := RequestDetail{
		Request:             row,
		Placement:           req.Placement,
		PlacementAttributes: req.PlacementAttributes,
		Workflows:           []WorkflowView{},
	}

	typeByID := make(map[int64]domain.ActivityType, len(types))
	for _, t := range types {
		typeByID[t.ID] = t
	}
	items := make([]ActivityView, 0, len(activities))
	for _, a := range activities {
		t := typeByID[a.ActivityTypeID]
		item := ActivityView{
			ID:             a.ID,
			ActivityTypeID: a.ActivityTypeID,
			TypeName:       t.Name,
			ConnectorID:    a.ConnectorID,
			OpportunityID:  a.OpportunityID,
			Note:           a.Note,
			CreatedAt:      a.CreatedAt,
			IsSystem:       t.IsSystem(),
		}
		if a.ConnectorID != nil {
			item.ConnectorName = people[*a.ConnectorID].FullName()
		}
		items = append(items, item)
	}
	detail.Activities = ActivityList(items, state.ShowAllActivities, b.cfg.ActivityPageSize)

	workflows, err := b.repo.ListWorkflows(ctx, req.ID)
	if err != nil {
		return RequestDetail{}, nil, err
	}
	for _, w := range workflows {
		detail.Workflows = append(detail.Workflows, WorkflowView{ID: w.ID, Name: w.Name, Status: w.Status, CreatedAt: w.CreatedAt})
	}

	var notices []Notice
	requirements, err := b.svc.RequirementStatuses(ctx, req)
	if err != nil {
		return RequestDetail{}, nil, err
	}
	automaticBlocked := false
	for _, r := range requirements {
		detail.Requirements = append(detail.Requirements, RequirementView{
			RequirementID: r.RequirementID,
			Name:          r.Name,
			CheckType:     r.CheckType,
			MustMeetToAdd: r.MustMeetToAdd,
			Meets:         r.Meets,
			Message:       r.Message,
		})
		if r.Meets == domain.RequirementError {
			notices = append(notices, Notice{Kind: NoticeError, Title: "Requirement check failed", Message: requirementErrorMessage(r)})
		}
		if r.CheckType == domain.RequirementAutomatic && r.MustMeetToAdd && !r.Passing() {
			automaticBlocked = true
		}
	}
	if automaticBlocked {
		_, err := b.repo.FindGroupMember(ctx, req.Placement.GroupID, req.PersonID, req.Placement.RoleID)
		switch {
		case err == nil:
			automaticBlocked = false
		case !errors.Is(err, ErrNotFound):
			return RequestDetail{}, nil, err
		}
	}
	detail.CanConnect = req.CanConnect() && !automaticBlocked

	canTransfer, err := b.canTransfer(ctx, state.ConnectionTypeID, req)
	if err != nil {
		return RequestDetail{}, nil, err
	}
	detail.CanTransfer = canTransfer
	return detail, notices, nil
}

func requirementErrorMessage(r domain.RequirementStatus) string {
	if msg := strings.TrimSpace(r.Message); msg != "" {
		return r.Name + ": " + msg
	}
	return "unable to evaluate requirement " + r.Name
}

func (b *Board) transferView(ctx context.Context, state BoardState, connectionTypeID int64, req domain.ConnectionRequest) (TransferView, error) {
	opps, err := b.transferOpportunities(ctx, connectionTypeID)
	if err != nil {
		return TransferView{}, err
	}
	target := state.TransferOpportunityID
	if target <= 0 {
		target = state.OpportunityID
	}
	out := TransferView{OpportunityID: target, Opportunities: make([]OpportunityNav, 0, len(opps)), CurrentConnectorID: req.ConnectorID}
	for _, opp := range opps {
		out.Opportunities = append(out.Opportunities, OpportunityNav{
			ID:           opp.ID,
			Name:         opp.Name,
			PublicName:   opp.PublicName,
			IconCSSClass: opp.IconCSSClass,
			Selected:     opp.ID == target,
		})
		if opp.ID == target {
			out.DefaultConnectorID = opp.DefaultConnector(req.CampusID)
		}
	}
	return out, nil
}

func (b *Board) withStatusIcons(rows []RequestView, idleTooltip string) []RequestView {
	if b.icons == nil {
		return rows
	}
	for i := range rows {
		html, err := b.icons.RenderStatusIcons(StatusIconFields{
			IsAssignedToYou: rows[i].IsAssignedToYou,
			IsUnassigned:    rows[i].IsUnassigned,
			IsCritical:      rows[i].IsCritical,
			IsIdle:          rows[i].IsIdle,
		}, idleTooltip)
		if err != nil {
			b.logger.Warn("render status icons", "request_id", rows[i].ID, "err", err)
			continue
		}
		rows[i].StatusIconsHTML = html
	}
	return rows
}

func (b *Board) peopleByID(ctx context.Context, ids []int64) (map[int64]domain.Person, error) {
	ids = uniqueIDs(ids)
	out := make(map[int64]domain.Person, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	people, err := b.repo.ListPeople(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, p := range people {
		out[p.ID] = p
	}
	return out, nil
}

func (b *Board) groupsByID(ctx context.Context, requests []domain.ConnectionRequest) (map[int64]domain.Group, error) {
	var ids []int64
	for _, r := range requests {
		if r.Placement != nil {
			ids = append(ids, r.Placement.GroupID)
		}
	}
	ids = uniqueIDs(ids)
	out := make(map[int64]domain.Group, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	groups, err := b.repo.ListGroups(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		out[g.ID] = g
	}
	return out, nil
}

// connectorIDs lists the opportunity's campus connectors and every currently assigned connector.
func connectorIDs(opp domain.Opportunity, requests []domain.ConnectionRequest) []int64 {
	ids := make([]int64, 0, len(opp.CampusConnectors)+len(requests))
	for _, personID := range opp.CampusConnectors {
		ids = append(ids, personID)
	}
	for _, r := range requests {
		if r.ConnectorID != nil {
			ids = append(ids, *r.ConnectorID)
		}
	}
	return ids
}

func uniqueIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id > 0 {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func statusOptions(statuses []domain.ConnectionStatus) []StatusOption {
	out := make([]StatusOption, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, StatusOption{ID: s.ID, Name: s.Name, IsDefault: s.IsDefault, IsCritical: s.IsCritical})
	}
	return out
}
