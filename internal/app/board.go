package app

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	charmLog "github.com/charmbracelet/log"

	"github.com/hylla/connboard/internal/domain"
)

// BoardConfig holds the board's presentation limits and defaults.
type BoardConfig struct {
	MaxCardsPerColumn int
	ActivityPageSize  int
	GridPageSize      int
	DefaultSort       SortProperty
	DefaultViewMode   ViewMode
}

// DefaultBoardConfig returns the stock board limits.
func DefaultBoardConfig() BoardConfig {
	return BoardConfig{
		MaxCardsPerColumn: 100,
		ActivityPageSize:  DefaultActivityPageSize,
		GridPageSize:      50,
		DefaultSort:       SortOrder,
		DefaultViewMode:   ViewModeCard,
	}
}

func (c BoardConfig) normalized() BoardConfig {
	def := DefaultBoardConfig()
	if c.MaxCardsPerColumn < 0 {
		c.MaxCardsPerColumn = def.MaxCardsPerColumn
	}
	if c.ActivityPageSize <= 0 {
		c.ActivityPageSize = def.ActivityPageSize
	}
	if c.GridPageSize < 0 {
		c.GridPageSize = def.GridPageSize
	}
	if sort, err := ParseSortProperty(string(c.DefaultSort)); err == nil {
		c.DefaultSort = sort
	} else {
		c.DefaultSort = def.DefaultSort
	}
	if mode, err := ParseViewMode(string(c.DefaultViewMode)); err == nil {
		c.DefaultViewMode = mode
	} else {
		c.DefaultViewMode = def.DefaultViewMode
	}
	return c
}

// Board is the view-state controller. It holds no session state of its own: every call
// takes a BoardState and returns the next one.
type Board struct {
	svc    *Service
	repo   Repository
	prefs  PreferenceStore
	icons  StatusIconRenderer
	logger *charmLog.Logger
	cfg    BoardConfig
}

// NewBoard constructs a board controller. prefs and icons may be nil.
func NewBoard(svc *Service, prefs PreferenceStore, icons StatusIconRenderer, logger *charmLog.Logger, cfg BoardConfig) *Board {
	if logger == nil {
		logger = charmLog.New(io.Discard)
	}
	return &Board{
		svc:    svc,
		repo:   svc.Repository(),
		prefs:  prefs,
		icons:  icons,
		logger: logger,
		cfg:    cfg.normalized(),
	}
}

// Config returns the normalized board configuration.
func (b *Board) Config() BoardConfig {
	return b.cfg
}

// StartInput selects where a new session lands.
type StartInput struct {
	ActorID       int64
	OpportunityID int64
	// RequestID deep-links to a request and opens it in the modal.
	RequestID int64
}

// Start builds the initial state of a session. A deep-linked request wins, then an explicit
// opportunity, then the remembered opportunity preference, then the first active opportunity.
func (b *Board) Start(ctx context.Context, in StartInput) (BoardState, Outcome) {
	state := BoardState{
		ActorID:      in.ActorID,
		ViewMode:     b.cfg.DefaultViewMode,
		Sort:         b.cfg.DefaultSort,
		ModalSubMode: ModalView,
	}
	out := Outcome{Refresh: Refresh{Board: true, Modal: true, Settings: true}}

	if in.RequestID > 0 {
		req, err := b.repo.GetConnectionRequest(ctx, in.RequestID)
		switch {
		case err == nil:
			next, err := b.switchOpportunity(ctx, state, req.OpportunityID)
			if err == nil {
				return next.withModalOpen(req.ID), out
			}
			if !errors.Is(err, ErrNotFound) {
				return b.fail(state, "start", err)
			}
		case errors.Is(err, ErrNotFound):
			out.Notice = &Notice{Kind: NoticeInfo, Message: "connection request not found"}
		default:
			return b.fail(state, "start", err)
		}
	}

	for _, candidate := range []func() (int64, error){
		func() (int64, error) { return in.OpportunityID, nil },
		func() (int64, error) { return b.rememberedOpportunity(ctx, in.ActorID) },
	} {
		oppID, err := candidate()
		if err != nil {
			return b.fail(state, "start", err)
		}
		if oppID <= 0 {
			continue
		}
		next, err := b.switchOpportunity(ctx, state, oppID)
		if err == nil {
			return next, out
		}
		if !errors.Is(err, ErrNotFound) {
			return b.fail(state, "start", err)
		}
	}

	opps, err := b.repo.ListOpportunities(ctx, 0)
	if err != nil {
		return b.fail(state, "start", err)
	}
	for _, opp := range opps {
		if !opp.IsActive {
			continue
		}
		next, err := b.switchOpportunity(ctx, state, opp.ID)
		if err != nil {
			return b.fail(state, "start", err)
		}
		return next, out
	}
	if out.Notice == nil {
		out.Notice = &Notice{Kind: NoticeInfo, Message: "there are no active connection opportunities"}
	}
	return state, out
}

func (b *Board) rememberedOpportunity(ctx context.Context, actorID int64) (int64, error) {
	if b.prefs == nil || actorID <= 0 {
		return 0, nil
	}
	raw, err := b.prefs.GetPreference(ctx, actorID, PreferenceOpportunity)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, nil
	}
	return id, nil
}

// switchOpportunity selects an active opportunity, loads its connection type's settings,
// and remembers it. The selection and modal are cleared.
func (b *Board) switchOpportunity(ctx context.Context, state BoardState, opportunityID int64) (BoardState, error) {
	opp, err := b.repo.GetOpportunity(ctx, opportunityID)
	if err != nil {
		return state, err
	}
	if !opp.IsActive {
		return state, ErrNotFound
	}
	state = state.withModalClosed()
	state.RequestID = 0
	state.OpportunityID = opp.ID
	state.ConnectionTypeID = opp.ConnectionTypeID
	state, err = b.loadSettings(ctx, state)
	if err != nil {
		return state, err
	}
	if b.prefs != nil && state.ActorID > 0 {
		if err := b.prefs.SetPreference(ctx, state.ActorID, PreferenceOpportunity, strconv.FormatInt(opp.ID, 10)); err != nil {
			return state, err
		}
	}
	return state, nil
}

// Handle applies one command. Failures become notices on the outcome and leave the
// state unchanged; Handle never returns an error.
func (b *Board) Handle(ctx context.Context, state BoardState, cmd Command) (BoardState, Outcome) {
	if cmd == nil {
		return state, Outcome{}
	}
	next, out, err := b.dispatch(ctx, state, cmd)
	if err != nil {
		return b.fail(state, cmd.CommandName(), err)
	}
	return next, out
}

func (b *Board) dispatch(ctx context.Context, state BoardState, cmd Command) (BoardState, Outcome, error) {
	switch c := cmd.(type) {
	case SelectRequest:
		return b.selectRequest(ctx, state, c.RequestID)
	case OpenAdd:
		if state.OpportunityID <= 0 {
			return state, Outcome{}, validationf("select a connection opportunity first")
		}
		state = state.withModalOpen(0)
		state.IsAddEditMode = true
		return state, Outcome{Refresh: Refresh{Modal: true}}, nil
	case OpenEdit:
		if !state.InViewMode() {
			return state, Outcome{}, nil
		}
		state.IsAddEditMode = true
		return state, Outcome{Refresh: Refresh{Modal: true}}, nil
	case CancelEdit:
		switch {
		case state.IsAdding():
			state = state.withModalClosed()
		case state.IsEditing():
			state.IsAddEditMode = false
			state.ModalSubMode = ModalView
		default:
			return state, Outcome{}, nil
		}
		return state, Outcome{Refresh: Refresh{Modal: true}}, nil
	case SaveRequest:
		return b.saveRequest(ctx, state, c.Form)
	case BeginAddActivity:
		return b.switchSubMode(state, ModalView, ModalAddActivity), Outcome{Refresh: Refresh{Modal: true}}, nil
	case SaveActivity:
		return b.saveActivity(ctx, state, c)
	case CancelActivity:
		return b.switchSubMode(state, ModalAddActivity, ModalView), Outcome{Refresh: Refresh{Modal: true}}, nil
	case DeleteActivity:
		if !state.ModalOpen || state.RequestID <= 0 {
			return state, Outcome{}, nil
		}
		if err := b.svc.DeleteActivity(ctx, state.RequestID, c.ActivityID); err != nil {
			return state, Outcome{}, err
		}
		return state, Outcome{Refresh: Refresh{Board: true, Modal: true}}, nil
	case ShowAllActivities:
		if !state.ModalOpen || state.RequestID <= 0 {
			return state, Outcome{}, nil
		}
		state.ShowAllActivities = true
		return state, Outcome{Refresh: Refresh{Modal: true}}, nil
	case BeginTransfer:
		return b.beginTransfer(ctx, state)
	case BeginTransferSearch:
		return b.switchSubMode(state, ModalTransfer, ModalTransferSearch), Outcome{Refresh: Refresh{Modal: true}}, nil
	case PickTransferOpportunity:
		return b.pickTransferOpportunity(ctx, state, c.OpportunityID)
	case CancelTransferSearch:
		return b.switchSubMode(state, ModalTransferSearch, ModalTransfer), Outcome{Refresh: Refresh{Modal: true}}, nil
	case SaveTransfer:
		return b.saveTransfer(ctx, state, c)
	case CancelTransfer:
		if state.ModalSubMode != ModalTransfer && state.ModalSubMode != ModalTransferSearch {
			return state, Outcome{}, nil
		}
		state.ModalSubMode = ModalView
		state.TransferOpportunityID = 0
		return state, Outcome{Refresh: Refresh{Modal: true}}, nil
	case Connect:
		if !state.ModalOpen || state.RequestID <= 0 || state.IsAddEditMode {
			return state, Outcome{}, nil
		}
		return b.connect(ctx, state, state.RequestID, c.CheckedRequirementIDs)
	case AssignConnector:
		if !state.InViewMode() {
			return state, Outcome{}, nil
		}
		if _, err := b.svc.AssignConnector(ctx, state.RequestID, c.ConnectorID); err != nil {
			return state, Outcome{}, err
		}
		return state, Outcome{Refresh: Refresh{Board: true, Modal: true}}, nil
	case CardCommand:
		return b.cardCommand(ctx, state, c.Raw)
	case ToggleViewMode:
		if state.ViewMode == ViewModeGrid {
			state.ViewMode = ViewModeCard
		} else {
			state.ViewMode = ViewModeGrid
		}
		state.GridPage = 0
		return b.persist(ctx, state, PrefViewMode)
	case SelectOpportunity:
		next, err := b.switchOpportunity(ctx, state, c.OpportunityID)
		if errors.Is(err, ErrNotFound) {
			return state, Outcome{}, &ValidationError{Message: "connection opportunity not found", Err: err}
		}
		if err != nil {
			return state, Outcome{}, err
		}
		return next, Outcome{Refresh: Refresh{Board: true, Modal: true, Settings: true}}, nil
	case SetSort:
		sort, err := ParseSortProperty(string(c.Sort))
		if err != nil {
			return state, Outcome{}, asValidation(err)
		}
		state.Sort = sort
		return b.persist(ctx, state, PrefSortBy)
	case SetCampus:
		state.CampusFilter = positiveID(c.CampusID)
		state.GridPage = 0
		return b.persist(ctx, state, PrefCampusFilter)
	case SetConnector:
		state.ConnectorFilter = positiveID(c.ConnectorID)
		state.GridPage = 0
		return b.persist(ctx, state, PrefConnector)
	case ApplyFilter:
		state.Filter = c.Filter
		state.Filter.DateRange = c.Filter.DateRange.Days()
		state.GridPage = 0
		return b.persist(ctx, state, filterSubKeys()...)
	case ClearFilter:
		state.Filter = RequestFilter{}
		state.GridPage = 0
		return b.persist(ctx, state, filterSubKeys()...)
	case SetGridPage:
		state.GridPage = max(0, c.Page)
		return state, Outcome{Refresh: Refresh{Board: true}}, nil
	case DeleteRequest:
		return b.deleteRequest(ctx, state, c.RequestID)
	case CloseModal:
		state = state.withModalClosed()
		state.RequestID = 0
		return state, Outcome{Refresh: Refresh{Modal: true}}, nil
	default:
		return state, Outcome{}, validationf("unsupported command %q", cmd.CommandName())
	}
}

// fail turns a command error into a notice and keeps the previous state.
func (b *Board) fail(state BoardState, command string, err error) (BoardState, Outcome) {
	var (
		vErr *ValidationError
		pErr *PreconditionError
	)
	switch {
	case errors.As(err, &vErr):
		return state, Outcome{Notice: &Notice{Kind: NoticeValidation, Title: "Please correct the following", Message: vErr.Message}}
	case errors.As(err, &pErr):
		return state, Outcome{Notice: &Notice{Kind: NoticeDanger, Title: "Unable to delete", Message: pErr.Reason}}
	case errors.Is(err, ErrNotFound):
		b.logger.Debug("board target not found", "command", command, "err", err)
		return state, Outcome{}
	default:
		b.logger.Error("board command failed", "command", command, "opportunity_id", state.OpportunityID, "request_id", state.RequestID, "err", err)
		return state, Outcome{Notice: &Notice{Kind: NoticeError, Title: "Error", Message: "the command could not be completed"}}
	}
}

func (b *Board) persist(ctx context.Context, state BoardState, subs ...PreferenceSubKey) (BoardState, Outcome, error) {
	if err := b.saveSettings(ctx, state, subs...); err != nil {
		return state, Outcome{}, err
	}
	return state, Outcome{Refresh: Refresh{Board: true, Settings: true}}, nil
}

func (b *Board) switchSubMode(state BoardState, from, to ModalSubMode) BoardState {
	if !state.ModalOpen || state.IsAddEditMode || state.RequestID <= 0 || state.ModalSubMode != from {
		return state
	}
	state.ModalSubMode = to
	return state
}

// loadSelected reads a request that belongs to the board's current opportunity.
func (b *Board) loadSelected(ctx context.Context, state BoardState, requestID int64) (domain.ConnectionRequest, error) {
	req, err := b.repo.GetConnectionRequest(ctx, requestID)
	if err != nil {
		return domain.ConnectionRequest{}, err
	}
	if req.OpportunityID != state.OpportunityID {
		return domain.ConnectionRequest{}, ErrNotFound
	}
	return req, nil
}

func (b *Board) selectRequest(ctx context.Context, state BoardState, requestID int64) (BoardState, Outcome, error) {
	req, err := b.loadSelected(ctx, state, requestID)
	if errors.Is(err, ErrNotFound) {
		return state, Outcome{Notice: &Notice{Kind: NoticeInfo, Message: "connection request not found"}}, nil
	}
	if err != nil {
		return state, Outcome{}, err
	}
	return state.withModalOpen(req.ID), Outcome{Refresh: Refresh{Modal: true}}, nil
}

func (b *Board) saveRequest(ctx context.Context, state BoardState, form RequestForm) (BoardState, Outcome, error) {
	if !state.ModalOpen || !state.IsAddEditMode {
		return state, Outcome{}, nil
	}
	placement, err := domain.NewPlacement(form.PlacementGroupID, form.PlacementRoleID, form.PlacementStatus)
	if err != nil {
		return state, Outcome{}, asValidation(err)
	}
	in := SaveRequestInput{
		ID:                  state.RequestID,
		OpportunityID:       state.OpportunityID,
		ActorID:             state.ActorID,
		PersonID:            form.PersonID,
		StatusID:            form.StatusID,
		State:               form.State,
		ConnectorID:         form.ConnectorID,
		CampusID:            form.CampusID,
		Comments:            form.Comments,
		FollowupDate:        form.FollowupDate,
		Placement:           placement,
		PlacementAttributes: form.PlacementAttributes,
	}
	if state.IsEditing() {
		if _, err := b.loadSelected(ctx, state, state.RequestID); err != nil {
			return state, Outcome{}, err
		}
	}
	saved, err := b.svc.SaveRequest(ctx, in)
	if err != nil {
		return state, Outcome{}, err
	}
	out := Outcome{Refresh: Refresh{Board: true, Modal: true}}
	if state.IsAdding() {
		state = state.withModalClosed()
		state.RequestID = 0
		out.CreatedID = saved.ID
		return state, out, nil
	}
	state.IsAddEditMode = false
	state.ModalSubMode = ModalView
	return state, out, nil
}

func (b *Board) saveActivity(ctx context.Context, state BoardState, c SaveActivity) (BoardState, Outcome, error) {
	if !state.ModalOpen || state.RequestID <= 0 || state.ModalSubMode != ModalAddActivity {
		return state, Outcome{}, nil
	}
	if _, err := b.svc.AddActivity(ctx, AddActivityInput{
		RequestID:      state.RequestID,
		ActorID:        state.ActorID,
		ActivityTypeID: c.ActivityTypeID,
		ConnectorID:    positiveID(c.ConnectorID),
		Note:           c.Note,
	}); err != nil {
		return state, Outcome{}, err
	}
	state.ModalSubMode = ModalView
	return state, Outcome{Refresh: Refresh{Board: true, Modal: true}}, nil
}

func (b *Board) beginTransfer(ctx context.Context, state BoardState) (BoardState, Outcome, error) {
	if !state.InViewMode() {
		return state, Outcome{}, nil
	}
	req, err := b.loadSelected(ctx, state, state.RequestID)
	if err != nil {
		return state, Outcome{}, err
	}
	ok, err := b.canTransfer(ctx, state.ConnectionTypeID, req)
	if err != nil {
		return state, Outcome{}, err
	}
	if !ok {
		return state, Outcome{}, validationf("this request cannot be transferred")
	}
	state.ModalSubMode = ModalTransfer
	state.TransferOpportunityID = state.OpportunityID
	return state, Outcome{Refresh: Refresh{Modal: true}}, nil
}

// canTransfer requires an open-able request and at least one other active opportunity of the type.
func (b *Board) canTransfer(ctx context.Context, connectionTypeID int64, req domain.ConnectionRequest) (bool, error) {
	if !req.CanConnect() {
		return false, nil
	}
	opps, err := b.transferOpportunities(ctx, connectionTypeID)
	if err != nil {
		return false, err
	}
	return len(opps) > 1, nil
}

func (b *Board) transferOpportunities(ctx context.Context, connectionTypeID int64) ([]domain.Opportunity, error) {
	opps, err := b.repo.ListOpportunities(ctx, connectionTypeID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Opportunity, 0, len(opps))
	for _, opp := range opps {
		if opp.IsActive {
			out = append(out, opp)
		}
	}
	return out, nil
}

func (b *Board) pickTransferOpportunity(ctx context.Context, state BoardState, opportunityID int64) (BoardState, Outcome, error) {
	if !state.ModalOpen || state.ModalSubMode != ModalTransferSearch {
		return state, Outcome{}, nil
	}
	opp, err := b.repo.GetOpportunity(ctx, opportunityID)
	if errors.Is(err, ErrNotFound) || (err == nil && (!opp.IsActive || opp.ConnectionTypeID != state.ConnectionTypeID)) {
		return state, Outcome{}, validationf("connection opportunity is not available for transfer")
	}
	if err != nil {
		return state, Outcome{}, err
	}
	state.TransferOpportunityID = opp.ID
	state.ModalSubMode = ModalTransfer
	return state, Outcome{Refresh: Refresh{Modal: true}}, nil
}

func (b *Board) saveTransfer(ctx context.Context, state BoardState, c SaveTransfer) (BoardState, Outcome, error) {
	if !state.ModalOpen || state.RequestID <= 0 || state.ModalSubMode != ModalTransfer {
		return state, Outcome{}, nil
	}
	oppID := c.OpportunityID
	if oppID <= 0 {
		oppID = state.TransferOpportunityID
	}
	if oppID <= 0 {
		return state, Outcome{}, validationf("select a connection opportunity to transfer to")
	}
	if oppID != state.OpportunityID {
		opp, err := b.repo.GetOpportunity(ctx, oppID)
		if errors.Is(err, ErrNotFound) || (err == nil && (!opp.IsActive || opp.ConnectionTypeID != state.ConnectionTypeID)) {
			return state, Outcome{}, validationf("connection opportunity is not available for transfer")
		}
		if err != nil {
			return state, Outcome{}, err
		}
	}
	result, err := b.svc.Transfer(ctx, TransferInput{
		RequestID:     state.RequestID,
		ActorID:       state.ActorID,
		OpportunityID: oppID,
		StatusID:      c.StatusID,
		Connector:     c.Connector,
		Note:          c.Note,
	})
	if err != nil {
		return state, Outcome{}, err
	}
	out := Outcome{Refresh: Refresh{Board: true, Modal: true}}
	if !result.OpportunityChanged {
		state.ModalSubMode = ModalView
		state.TransferOpportunityID = 0
		return state, out, nil
	}
	next, err := b.switchOpportunity(ctx, state, result.Request.OpportunityID)
	if err != nil {
		return state, Outcome{}, err
	}
	next.RequestID = result.Request.ID
	out.Refresh.Settings = true
	return next, out, nil
}

func (b *Board) connect(ctx context.Context, state BoardState, requestID int64, checked []int64) (BoardState, Outcome, error) {
	req, err := b.loadSelected(ctx, state, requestID)
	if err != nil {
		return state, Outcome{}, err
	}
	if !req.CanConnect() {
		return state, Outcome{}, validationf("this request cannot be connected")
	}
	if _, err := b.svc.Connect(ctx, ConnectInput{RequestID: req.ID, ActorID: state.ActorID, CheckedRequirementIDs: checked}); err != nil {
		return state, Outcome{}, err
	}
	return state, Outcome{Refresh: Refresh{Board: true, Modal: state.ModalOpen}}, nil
}

func (b *Board) cardCommand(ctx context.Context, state BoardState, raw string) (BoardState, Outcome, error) {
	decoded, ok := ParseCardCommand(raw)
	if !ok {
		return state, Outcome{}, nil
	}
	switch decoded.Action {
	case CardActionView:
		return b.selectRequest(ctx, state, decoded.RequestID)
	case CardActionConnect:
		selected := state
		if !state.IsAddEditMode {
			selected.RequestID = decoded.RequestID
		}
		next, out, err := b.connect(ctx, selected, decoded.RequestID, nil)
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			// The notice belongs to the card that was acted on.
			failed, out := b.fail(selected, CardCommand{}.CommandName(), err)
			return failed, out, nil
		}
		return next, out, err
	default:
		if _, err := b.loadSelected(ctx, state, decoded.RequestID); err != nil {
			return state, Outcome{}, err
		}
		if _, err := b.svc.MoveCard(ctx, MoveCardInput{
			RequestID: decoded.RequestID,
			StatusID:  decoded.StatusID,
			Index:     decoded.Index,
			Reorder:   state.Sort.AllowsReorder(),
		}); err != nil {
			return state, Outcome{}, err
		}
		return state, Outcome{Refresh: Refresh{Board: true}}, nil
	}
}

func (b *Board) deleteRequest(ctx context.Context, state BoardState, requestID int64) (BoardState, Outcome, error) {
	if requestID <= 0 {
		requestID = state.RequestID
	}
	if requestID <= 0 {
		return state, Outcome{}, nil
	}
	if _, err := b.loadSelected(ctx, state, requestID); err != nil {
		return state, Outcome{}, err
	}
	if err := b.svc.DeleteRequest(ctx, requestID); err != nil {
		return state, Outcome{}, err
	}
	out := Outcome{Refresh: Refresh{Board: true}}
	if state.RequestID == requestID {
		state = state.withModalClosed()
		state.RequestID = 0
		out.Refresh.Modal = true
	}
	return state, out, nil
}

func positiveID(id *int64) *int64 {
	if id == nil || *id <= 0 {
		return nil
	}
	v := *id
	return &v
}
