package app

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hylla/connboard/internal/domain"
)

// SortProperty is a board/grid sort key.
type SortProperty string

// Sort properties. Every key has an ascending and a descending variant.
const (
	SortOrder            SortProperty = "order"
	SortOrderDesc        SortProperty = "order_desc"
	SortRequestor        SortProperty = "requestor"
	SortRequestorDesc    SortProperty = "requestor_desc"
	SortConnector        SortProperty = "connector"
	SortConnectorDesc    SortProperty = "connector_desc"
	SortDateAdded        SortProperty = "date_added"
	SortDateAddedDesc    SortProperty = "date_added_desc"
	SortLastActivity     SortProperty = "last_activity"
	SortLastActivityDesc SortProperty = "last_activity_desc"
	SortCampus           SortProperty = "campus"
	SortCampusDesc       SortProperty = "campus_desc"
	SortGroup            SortProperty = "group"
	SortGroupDesc        SortProperty = "group_desc"
)

// SortOption is one entry of the sort picker.
type SortOption struct {
	Value SortProperty `json:"value"`
	Label string       `json:"label"`
}

// SortOptions lists the sort picker entries in display order.
func SortOptions() []SortOption {
	return []SortOption{
		{SortOrder, "Order"},
		{SortOrderDesc, "Order (Descending)"},
		{SortRequestor, "Requestor"},
		{SortRequestorDesc, "Requestor (Descending)"},
		{SortConnector, "Connector"},
		{SortConnectorDesc, "Connector (Descending)"},
		{SortDateAdded, "Date Added"},
		{SortDateAddedDesc, "Date Added (Newest First)"},
		{SortLastActivity, "Last Activity"},
		{SortLastActivityDesc, "Last Activity (Newest First)"},
		{SortCampus, "Campus"},
		{SortCampusDesc, "Campus (Descending)"},
		{SortGroup, "Group"},
		{SortGroupDesc, "Group (Descending)"},
	}
}

// ParseSortProperty validates a sort key. Blank input yields SortOrder.
func ParseSortProperty(raw string) (SortProperty, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return SortOrder, nil
	}
	for _, opt := range SortOptions() {
		if string(opt.Value) == raw {
			return opt.Value, nil
		}
	}
	return "", fmt.Errorf("%w: %q", domain.ErrInvalidSort, raw)
}

// AllowsReorder reports whether dragging a card rewrites order values under this sort.
func (s SortProperty) AllowsReorder() bool {
	return s == SortOrder
}

func (s SortProperty) descending() bool {
	return strings.HasSuffix(string(s), "_desc")
}

func (s SortProperty) base() SortProperty {
	return SortProperty(strings.TrimSuffix(string(s), "_desc"))
}

// DateRange bounds the last-activity date filter. Either side may be open.
type DateRange struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Days truncates both bounds to UTC midnight, the precision a saved range keeps.
func (r DateRange) Days() DateRange {
	var out DateRange
	if r.Start != nil {
		start := utcDay(*r.Start)
		out.Start = &start
	}
	if r.End != nil {
		end := utcDay(*r.End)
		out.End = &end
	}
	return out
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Contains reports whether t falls inside the range. End is inclusive of its whole day.
func (r DateRange) Contains(t time.Time) bool {
	r = r.Days()
	if r.Start != nil && t.Before(*r.Start) {
		return false
	}
	if r.End != nil && !t.Before(r.End.AddDate(0, 0, 1)) {
		return false
	}
	return true
}

// IsZero reports whether neither bound is set.
func (r DateRange) IsZero() bool {
	return r.Start == nil && r.End == nil
}

// RequestFilter is the board's filter panel.
type RequestFilter struct {
	DateRange           DateRange                `json:"date_range"`
	RequesterID         *int64                   `json:"requester_id,omitempty"`
	StatusIDs           []int64                  `json:"status_ids,omitempty"`
	States              []domain.ConnectionState `json:"states,omitempty"`
	LastActivityTypeIDs []int64                  `json:"last_activity_type_ids,omitempty"`
}

// IsZero reports whether no filter is applied.
func (f RequestFilter) IsZero() bool {
	return f.DateRange.IsZero() && f.RequesterID == nil && len(f.StatusIDs) == 0 && len(f.States) == 0 && len(f.LastActivityTypeIDs) == 0
}

// RequestView is the denormalized row/card shape of one request.
type RequestView struct {
	ID                   int64                  `json:"id"`
	OpportunityID        int64                  `json:"opportunity_id"`
	StatusID             int64                  `json:"status_id"`
	StatusName           string                 `json:"status_name"`
	StatusHighlightColor string                 `json:"status_highlight_color,omitempty"`
	State                domain.ConnectionState `json:"state"`
	StateLabel           string                 `json:"state_label"`
	Order                int                    `json:"order"`
	PersonID             int64                  `json:"person_id"`
	PersonName           string                 `json:"person_name"`
	PersonEmail          string                 `json:"person_email,omitempty"`
	ConnectorID          *int64                 `json:"connector_id,omitempty"`
	ConnectorName        string                 `json:"connector_name,omitempty"`
	CampusID             *int64                 `json:"campus_id,omitempty"`
	CampusName           string                 `json:"campus_name,omitempty"`
	GroupID              *int64                 `json:"group_id,omitempty"`
	GroupName            string                 `json:"group_name,omitempty"`
	Comments             string                 `json:"comments,omitempty"`
	FollowupDate         *time.Time             `json:"followup_date,omitempty"`
	CreatedAt            time.Time              `json:"created_at"`
	LastActivityAt       *time.Time             `json:"last_activity_at,omitempty"`
	LastActivityTypeID   *int64                 `json:"last_activity_type_id,omitempty"`
	IsAssignedToYou      bool                   `json:"is_assigned_to_you"`
	IsUnassigned         bool                   `json:"is_unassigned"`
	IsCritical           bool                   `json:"is_critical"`
	IsIdle               bool                   `json:"is_idle"`
	CanConnect           bool                   `json:"can_connect"`
	StatusIconsHTML      string                 `json:"status_icons_html,omitempty"`
}

// ProjectionInput is everything ProjectRequests reads.
type ProjectionInput struct {
	Requests             []domain.ConnectionRequest
	Statuses             []domain.ConnectionStatus
	People               map[int64]domain.Person
	Campuses             map[int64]domain.Campus
	Groups               map[int64]domain.Group
	LatestActivities     map[int64]domain.Activity
	ActorID              int64
	DaysUntilRequestIdle int
	Now                  time.Time
	CampusID             *int64
	ConnectorID          *int64
	Filter               RequestFilter
	Sort                 SortProperty
}

// ProjectRequests filters and sorts requests into view rows. It does not mutate its input.
func ProjectRequests(in ProjectionInput) []RequestView {
	statuses := make(map[int64]domain.ConnectionStatus, len(in.Statuses))
	for _, status := range in.Statuses {
		statuses[status.ID] = status
	}

	views := make([]RequestView, 0, len(in.Requests))
	for _, r := range in.Requests {
		latest, hasActivity := in.LatestActivities[r.ID]
		if !matchesFilter(in, r, latest, hasActivity) {
			continue
		}
		views = append(views, projectRequest(in, statuses[r.StatusID], r, latest, hasActivity))
	}
	sortViews(views, in.Sort)
	return views
}

func matchesFilter(in ProjectionInput, r domain.ConnectionRequest, latest domain.Activity, hasActivity bool) bool {
	if in.CampusID != nil && (r.CampusID == nil || *r.CampusID != *in.CampusID) {
		return false
	}
	if in.ConnectorID != nil && (r.ConnectorID == nil || *r.ConnectorID != *in.ConnectorID) {
		return false
	}
	f := in.Filter
	if f.RequesterID != nil && r.PersonID != *f.RequesterID {
		return false
	}
	if len(f.StatusIDs) > 0 && !slices.Contains(f.StatusIDs, r.StatusID) {
		return false
	}
	if len(f.States) > 0 && !slices.Contains(f.States, r.State) {
		return false
	}
	if len(f.LastActivityTypeIDs) > 0 && (!hasActivity || !slices.Contains(f.LastActivityTypeIDs, latest.ActivityTypeID)) {
		return false
	}
	if !f.DateRange.IsZero() {
		ref := r.CreatedAt
		if hasActivity {
			ref = latest.CreatedAt
		}
		if !f.DateRange.Contains(ref) {
			return false
		}
	}
	return true
}

func projectRequest(in ProjectionInput, status domain.ConnectionStatus, r domain.ConnectionRequest, latest domain.Activity, hasActivity bool) RequestView {
	person := in.People[r.PersonID]
	v := RequestView{
		ID:                   r.ID,
		OpportunityID:        r.OpportunityID,
		StatusID:             r.StatusID,
		StatusName:           status.Name,
		StatusHighlightColor: status.HighlightColor,
		State:                r.State,
		StateLabel:           r.State.Label(),
		Order:                r.Order,
		PersonID:             r.PersonID,
		PersonName:           person.FullName(),
		PersonEmail:          person.Email,
		ConnectorID:          r.ConnectorID,
		CampusID:             r.CampusID,
		Comments:             r.Comments,
		FollowupDate:         r.FollowupDate,
		CreatedAt:            r.CreatedAt,
		IsAssignedToYou:      r.ConnectorID != nil && in.ActorID > 0 && *r.ConnectorID == in.ActorID,
		IsUnassigned:         r.ConnectorID == nil,
		IsCritical:           status.IsCritical,
		CanConnect:           r.CanConnect(),
	}
	if r.ConnectorID != nil {
		v.ConnectorName = in.People[*r.ConnectorID].FullName()
	}
	if r.CampusID != nil {
		v.CampusName = in.Campuses[*r.CampusID].Name
	}
	if r.Placement != nil {
		groupID := r.Placement.GroupID
		v.GroupID = &groupID
		v.GroupName = in.Groups[groupID].Name
	}
	ref := r.CreatedAt
	if hasActivity {
		at := latest.CreatedAt
		typeID := latest.ActivityTypeID
		v.LastActivityAt = &at
		v.LastActivityTypeID = &typeID
		ref = at
	}
	v.IsIdle = isIdle(r, ref, in.DaysUntilRequestIdle, in.Now)
	return v
}

// isIdle reports an open request with no activity since the idle threshold.
// Requests without activity are measured from their creation.
func isIdle(r domain.ConnectionRequest, lastTouched time.Time, days int, now time.Time) bool {
	if days <= 0 || !r.IsOpen() {
		return false
	}
	return lastTouched.Before(now.AddDate(0, 0, -days))
}

func sortViews(views []RequestView, sort SortProperty) {
	desc := sort.descending()
	base := sort.base()
	slices.SortStableFunc(views, func(a, b RequestView) int {
		c := compareViews(a, b, base)
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if desc {
			return -c
		}
		return c
	})
}

func compareViews(a, b RequestView, key SortProperty) int {
	switch key {
	case SortRequestor:
		return compareNames(a.PersonName, b.PersonName)
	case SortConnector:
		return compareNames(a.ConnectorName, b.ConnectorName)
	case SortDateAdded:
		return a.CreatedAt.Compare(b.CreatedAt)
	case SortLastActivity:
		return compareTimes(a.LastActivityAt, b.LastActivityAt)
	case SortCampus:
		return compareNames(a.CampusName, b.CampusName)
	case SortGroup:
		return compareNames(a.GroupName, b.GroupName)
	default:
		return cmp.Compare(a.Order, b.Order)
	}
}

// compareNames sorts case-insensitively with blanks last.
func compareNames(a, b string) int {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	switch {
	case a == b:
		return 0
	case a == "":
		return 1
	case b == "":
		return -1
	default:
		return cmp.Compare(a, b)
	}
}

// compareTimes sorts nil first.
func compareTimes(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return a.Compare(*b)
	}
}

// ColumnView is one status column of the card board.
type ColumnView struct {
	StatusID       int64         `json:"status_id"`
	Name           string        `json:"name"`
	HighlightColor string        `json:"highlight_color,omitempty"`
	IsCritical     bool          `json:"is_critical"`
	Total          int           `json:"total"`
	Cards          []RequestView `json:"cards"`
}

// BoardColumns groups projected rows into the given status columns, keeping projection
// order and capping each column at maxCards (0 means no cap). Rows in other statuses are dropped.
func BoardColumns(views []RequestView, statuses []domain.ConnectionStatus, maxCards int) []ColumnView {
	columns := make([]ColumnView, 0, len(statuses))
	index := make(map[int64]int, len(statuses))
	for _, status := range statuses {
		index[status.ID] = len(columns)
		columns = append(columns, ColumnView{
			StatusID:       status.ID,
			Name:           status.Name,
			HighlightColor: status.HighlightColor,
			IsCritical:     status.IsCritical,
			Cards:          []RequestView{},
		})
	}
	for _, v := range views {
		i, ok := index[v.StatusID]
		if !ok {
			continue
		}
		columns[i].Total++
		if maxCards > 0 && len(columns[i].Cards) >= maxCards {
			continue
		}
		columns[i].Cards = append(columns[i].Cards, v)
	}
	return columns
}

// GridView is one page of the request grid.
type GridView struct {
	Rows  []RequestView `json:"rows"`
	Total int           `json:"total"`
	Page  int           `json:"page"`
	Size  int           `json:"size"`
	Pages int           `json:"pages"`
}

// GridPage slices projected rows into a zero-based page. size <= 0 shows everything.
func GridPage(views []RequestView, page, size int) GridView {
	total := len(views)
	if size <= 0 {
		return GridView{Rows: slices.Clone(views), Total: total, Page: 0, Size: total, Pages: 1}
	}
	pages := max(1, (total+size-1)/size)
	page = max(0, min(page, pages-1))
	start := min(page*size, total)
	end := min(start+size, total)
	return GridView{
		Rows:  slices.Clone(views[start:end]),
		Total: total,
		Page:  page,
		Size:  size,
		Pages: pages,
	}
}

// ActivityView is one row of a request's activity list.
type ActivityView struct {
	ID             int64     `json:"id"`
	ActivityTypeID int64     `json:"activity_type_id"`
	TypeName       string    `json:"type_name"`
	ConnectorID    *int64    `json:"connector_id,omitempty"`
	ConnectorName  string    `json:"connector_name,omitempty"`
	OpportunityID  int64     `json:"opportunity_id"`
	Note           string    `json:"note,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	IsSystem       bool      `json:"is_system"`
}

// ActivityListView is the capped or expanded activity list.
type ActivityListView struct {
	Items      []ActivityView `json:"items"`
	HasMore    bool           `json:"has_more"`
	ShowingAll bool           `json:"showing_all"`
}

// DefaultActivityPageSize caps the activity list until "show all" is chosen.
const DefaultActivityPageSize = 10

// ActivityList orders activities newest first (ties by id, newest id first) and applies
// the page cap unless showAll is set. Callers fetch pageSize+1 rows to learn HasMore.
func ActivityList(activities []ActivityView, showAll bool, pageSize int) ActivityListView {
	if pageSize <= 0 {
		pageSize = DefaultActivityPageSize
	}
	items := slices.Clone(activities)
	slices.SortStableFunc(items, func(a, b ActivityView) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if showAll || len(items) <= pageSize {
		return ActivityListView{Items: items, ShowingAll: showAll}
	}
	return ActivityListView{Items: items[:pageSize], HasMore: true}
}
