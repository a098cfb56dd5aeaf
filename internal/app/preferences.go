package app

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/hylla/connboard/internal/domain"
)

// PreferenceOpportunity is the global key remembering the last selected opportunity.
const PreferenceOpportunity = "ConnectionOpportunityId"

// PreferenceSubKey names one per-connection-type preference.
type PreferenceSubKey string

// Per-connection-type preference sub-keys.
const (
	PrefSortBy         PreferenceSubKey = "SortBy"
	PrefCampusFilter   PreferenceSubKey = "CampusFilter"
	PrefViewMode       PreferenceSubKey = "ViewMode"
	PrefConnector      PreferenceSubKey = "ConnectorPersonAliasId"
	PrefDateRange      PreferenceSubKey = "DateRange"
	PrefRequester      PreferenceSubKey = "Requester"
	PrefStatuses       PreferenceSubKey = "Statuses"
	PrefStates         PreferenceSubKey = "States"
	PrefLastActivities PreferenceSubKey = "LastActivities"
)

// PreferenceDelimiter joins multi-valued preferences.
const PreferenceDelimiter = "|"

const dateLayout = "2006-01-02"

// PreferenceKey scopes a sub-key to a connection type: "{connectionTypeId}-{subKey}".
func PreferenceKey(connectionTypeID int64, sub PreferenceSubKey) string {
	return strconv.FormatInt(connectionTypeID, 10) + "-" + string(sub)
}

// loadSettings replaces the state's view mode, sort, campus, connector, and filter with the
// stored preferences of its connection type. Unreadable values fall back to defaults.
func (b *Board) loadSettings(ctx context.Context, state BoardState) (BoardState, error) {
	state.ViewMode = b.cfg.DefaultViewMode
	state.Sort = b.cfg.DefaultSort
	state.CampusFilter = nil
	state.ConnectorFilter = nil
	state.Filter = RequestFilter{}
	state.GridPage = 0
	if b.prefs == nil || state.ConnectionTypeID <= 0 || state.ActorID <= 0 {
		return state, nil
	}

	get := func(sub PreferenceSubKey) (string, error) {
		return b.prefs.GetPreference(ctx, state.ActorID, PreferenceKey(state.ConnectionTypeID, sub))
	}
	values := map[PreferenceSubKey]string{}
	for _, sub := range []PreferenceSubKey{
		PrefSortBy, PrefCampusFilter, PrefViewMode, PrefConnector, PrefDateRange,
		PrefRequester, PrefStatuses, PrefStates, PrefLastActivities,
	} {
		v, err := get(sub)
		if err != nil {
			return state, err
		}
		values[sub] = strings.TrimSpace(v)
	}

	if mode, err := ParseViewMode(values[PrefViewMode]); err == nil && values[PrefViewMode] != "" {
		state.ViewMode = mode
	}
	if sort, err := ParseSortProperty(values[PrefSortBy]); err == nil && values[PrefSortBy] != "" {
		state.Sort = sort
	}
	state.CampusFilter = parseOptionalID(values[PrefCampusFilter])
	state.ConnectorFilter = parseOptionalID(values[PrefConnector])
	state.Filter = RequestFilter{
		DateRange:           decodeDateRange(values[PrefDateRange]),
		RequesterID:         parseOptionalID(values[PrefRequester]),
		StatusIDs:           splitIDs(values[PrefStatuses]),
		States:              splitStates(values[PrefStates]),
		LastActivityTypeIDs: splitIDs(values[PrefLastActivities]),
	}
	return state, nil
}

// saveSettings writes the given sub-keys from the state.
func (b *Board) saveSettings(ctx context.Context, state BoardState, subs ...PreferenceSubKey) error {
	if b.prefs == nil || state.ConnectionTypeID <= 0 || state.ActorID <= 0 {
		return nil
	}
	for _, sub := range subs {
		if err := b.prefs.SetPreference(ctx, state.ActorID, PreferenceKey(state.ConnectionTypeID, sub), settingValue(state, sub)); err != nil {
			return err
		}
	}
	return nil
}

func settingValue(state BoardState, sub PreferenceSubKey) string {
	switch sub {
	case PrefSortBy:
		return string(state.Sort)
	case PrefCampusFilter:
		return formatOptionalID(state.CampusFilter)
	case PrefViewMode:
		return string(state.ViewMode)
	case PrefConnector:
		return formatOptionalID(state.ConnectorFilter)
	case PrefDateRange:
		return encodeDateRange(state.Filter.DateRange)
	case PrefRequester:
		return formatOptionalID(state.Filter.RequesterID)
	case PrefStatuses:
		return joinIDs(state.Filter.StatusIDs)
	case PrefStates:
		parts := make([]string, 0, len(state.Filter.States))
		for _, s := range state.Filter.States {
			parts = append(parts, string(s))
		}
		return strings.Join(parts, PreferenceDelimiter)
	case PrefLastActivities:
		return joinIDs(state.Filter.LastActivityTypeIDs)
	default:
		return ""
	}
}

func filterSubKeys() []PreferenceSubKey {
	return []PreferenceSubKey{PrefDateRange, PrefRequester, PrefStatuses, PrefStates, PrefLastActivities}
}

func parseOptionalID(raw string) *int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}

func formatOptionalID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

func splitIDs(raw string) []int64 {
	var out []int64
	for _, part := range strings.Split(raw, PreferenceDelimiter) {
		if id := parseOptionalID(part); id != nil {
			out = append(out, *id)
		}
	}
	return out
}

func joinIDs(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, PreferenceDelimiter)
}

func splitStates(raw string) []domain.ConnectionState {
	var out []domain.ConnectionState
	for _, part := range strings.Split(raw, PreferenceDelimiter) {
		if strings.TrimSpace(part) == "" {
			continue
		}
		if state, err := domain.ParseConnectionState(part); err == nil {
			out = append(out, state)
		}
	}
	return out
}

// encodeDateRange writes "start,end" as dates; either side may be empty.
func encodeDateRange(r DateRange) string {
	if r.IsZero() {
		return ""
	}
	var start, end string
	if r.Start != nil {
		start = r.Start.UTC().Format(dateLayout)
	}
	if r.End != nil {
		end = r.End.UTC().Format(dateLayout)
	}
	return start + "," + end
}

func decodeDateRange(raw string) DateRange {
	startRaw, endRaw, _ := strings.Cut(strings.TrimSpace(raw), ",")
	var out DateRange
	if t, err := time.Parse(dateLayout, strings.TrimSpace(startRaw)); err == nil {
		out.Start = &t
	}
	if t, err := time.Parse(dateLayout, strings.TrimSpace(endRaw)); err == nil {
		out.End = &t
	}
	return out
}
