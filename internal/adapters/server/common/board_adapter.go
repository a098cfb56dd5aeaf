package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	charmLog "github.com/charmbracelet/log"

	"github.com/hylla/connboard/internal/app"
	"github.com/hylla/connboard/internal/domain"
)

// BoardAdapter maps transport contracts onto the app.Board controller and a session registry.
type BoardAdapter struct {
	board    *app.Board
	repo     app.Repository
	sessions *Sessions
	logger   *charmLog.Logger
}

var _ BoardService = (*BoardAdapter)(nil)

// NewBoardAdapter builds one adapter. A nil sessions registry gets a fresh one; a nil logger discards.
func NewBoardAdapter(board *app.Board, repo app.Repository, sessions *Sessions, logger *charmLog.Logger) *BoardAdapter {
	if sessions == nil {
		sessions = NewSessions(nil)
	}
	if logger == nil {
		logger = charmLog.New(io.Discard)
	}
	return &BoardAdapter{board: board, repo: repo, sessions: sessions, logger: logger}
}

// Sessions returns the adapter's session registry.
func (a *BoardAdapter) Sessions() *Sessions {
	return a.sessions
}

// ListOpportunities lists opportunities ordered as the store returns them.
func (a *BoardAdapter) ListOpportunities(ctx context.Context, in ListOpportunitiesRequest) ([]OpportunitySummary, error) {
	if a == nil || a.repo == nil {
		return nil, fmt.Errorf("board adapter is not configured: %w", ErrServiceUnavailable)
	}
	if in.ConnectionTypeID < 0 {
		return nil, fmt.Errorf("connection_type_id must be positive: %w", ErrInvalidRequest)
	}
	opps, err := a.repo.ListOpportunities(ctx, in.ConnectionTypeID)
	if err != nil {
		return nil, mapAppError("list opportunities", err)
	}
	out := make([]OpportunitySummary, 0, len(opps))
	for _, opp := range opps {
		if in.ActiveOnly && !opp.IsActive {
			continue
		}
		out = append(out, summarizeOpportunity(opp))
	}
	return out, nil
}

// StartSession lands a new session and registers it.
func (a *BoardAdapter) StartSession(ctx context.Context, in StartSessionRequest) (SessionStart, error) {
	if a == nil || a.board == nil {
		return SessionStart{}, fmt.Errorf("board adapter is not configured: %w", ErrServiceUnavailable)
	}
	if in.ActorID <= 0 {
		return SessionStart{}, fmt.Errorf("actor_id is required: %w", ErrInvalidRequest)
	}
	if in.OpportunityID < 0 || in.RequestID < 0 {
		return SessionStart{}, fmt.Errorf("opportunity_id and request_id must be positive: %w", ErrInvalidRequest)
	}
	state, outcome := a.board.Start(ctx, app.StartInput{
		ActorID:       in.ActorID,
		OpportunityID: in.OpportunityID,
		RequestID:     in.RequestID,
	})
	session := a.sessions.Create(state)
	a.logger.Debug("board session started", "session", session.ID, "actor_id", in.ActorID, "opportunity_id", state.OpportunityID)
	return SessionStart{Session: session, Outcome: outcome}, nil
}

// GetSession returns the current state of one session.
func (a *BoardAdapter) GetSession(_ context.Context, id string) (Session, error) {
	id, err := normalizeSessionID(id)
	if err != nil {
		return Session{}, err
	}
	return a.sessions.Get(id)
}

// View projects the session's current state.
func (a *BoardAdapter) View(ctx context.Context, id string) (app.BoardView, error) {
	if a == nil || a.board == nil {
		return app.BoardView{}, fmt.Errorf("board adapter is not configured: %w", ErrServiceUnavailable)
	}
	session, err := a.GetSession(ctx, id)
	if err != nil {
		return app.BoardView{}, err
	}
	view, err := a.board.View(ctx, session.State)
	if err != nil {
		a.logger.Error("board view failed", "session", session.ID, "err", err)
		return app.BoardView{}, mapAppError("view board", err)
	}
	return view, nil
}

// ApplyCommand decodes one command envelope and runs it against the session.
func (a *BoardAdapter) ApplyCommand(ctx context.Context, id string, raw json.RawMessage) (CommandResult, error) {
	if a == nil || a.board == nil {
		return CommandResult{}, fmt.Errorf("board adapter is not configured: %w", ErrServiceUnavailable)
	}
	id, err := normalizeSessionID(id)
	if err != nil {
		return CommandResult{}, err
	}
	cmd, err := DecodeCommand(raw)
	if err != nil {
		return CommandResult{}, err
	}
	var outcome app.Outcome
	session, err := a.sessions.Update(ctx, id, func(state app.BoardState) (app.BoardState, error) {
		next, out := a.board.Handle(ctx, state, cmd)
		outcome = out
		return next, nil
	})
	if err != nil {
		return CommandResult{}, err
	}
	if outcome.Notice != nil {
		a.logger.Debug("board command notice", "session", id, "command", cmd.CommandName(), "kind", outcome.Notice.Kind)
	}
	return CommandResult{
		SessionID: id,
		Command:   cmd.CommandName(),
		State:     session.State,
		Outcome:   outcome,
	}, nil
}

// CloseSession drops one session.
func (a *BoardAdapter) CloseSession(_ context.Context, id string) error {
	id, err := normalizeSessionID(id)
	if err != nil {
		return err
	}
	if err := a.sessions.Delete(id); err != nil {
		return err
	}
	a.logger.Debug("board session closed", "session", id)
	return nil
}

func normalizeSessionID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("session id is required: %w", ErrInvalidRequest)
	}
	return id, nil
}

// mapAppError maps app and domain failures onto transport sentinels.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrPrecondition):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrPreconditionFailed, err))
	case errors.Is(err, app.ErrValidation), domain.IsValidationError(err):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
