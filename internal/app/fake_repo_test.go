package app

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"time"

	"github.com/hylla/connboard/internal/domain"
)

type fakeRepo struct {
	types         map[int64]domain.ConnectionType
	statuses      map[int64]domain.ConnectionStatus
	opportunities map[int64]domain.Opportunity
	activityTypes map[int64]domain.ActivityType
	people        map[int64]domain.Person
	campuses      map[int64]domain.Campus
	groups        map[int64]domain.Group
	requests      map[int64]domain.ConnectionRequest
	activities    map[int64]domain.Activity
	workflows     map[int64]domain.Workflow
	members       map[int64]domain.GroupMember
	nextID        int64
	failUpdate    error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		types:         map[int64]domain.ConnectionType{},
		statuses:      map[int64]domain.ConnectionStatus{},
		opportunities: map[int64]domain.Opportunity{},
		activityTypes: map[int64]domain.ActivityType{},
		people:        map[int64]domain.Person{},
		campuses:      map[int64]domain.Campus{},
		groups:        map[int64]domain.Group{},
		requests:      map[int64]domain.ConnectionRequest{},
		activities:    map[int64]domain.Activity{},
		workflows:     map[int64]domain.Workflow{},
		members:       map[int64]domain.GroupMember{},
		nextID:        1000,
	}
}

func (f *fakeRepo) id() int64 {
	f.nextID++
	return f.nextID
}

// InTx restores the mutable tables when fn fails.
func (f *fakeRepo) InTx(_ context.Context, fn func(Repository) error) error {
	requests := maps.Clone(f.requests)
	activities := maps.Clone(f.activities)
	members := maps.Clone(f.members)
	if err := fn(f); err != nil {
		f.requests, f.activities, f.members = requests, activities, members
		return err
	}
	return nil
}

func (f *fakeRepo) ListConnectionTypes(context.Context) ([]domain.ConnectionType, error) {
	return sortedValues(f.types, func(t domain.ConnectionType) int64 { return t.ID }), nil
}

func (f *fakeRepo) GetConnectionType(_ context.Context, id int64) (domain.ConnectionType, error) {
	t, ok := f.types[id]
	if !ok {
		return domain.ConnectionType{}, ErrNotFound
	}
	return t, nil
}

func (f *fakeRepo) ListConnectionStatuses(_ context.Context, typeID int64) ([]domain.ConnectionStatus, error) {
	var out []domain.ConnectionStatus
	for _, s := range sortedValues(f.statuses, func(s domain.ConnectionStatus) int64 { return s.ID }) {
		if s.ConnectionTypeID == typeID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListOpportunities(_ context.Context, typeID int64) ([]domain.Opportunity, error) {
	var out []domain.Opportunity
	for _, o := range sortedValues(f.opportunities, func(o domain.Opportunity) int64 { return o.ID }) {
		if typeID == 0 || o.ConnectionTypeID == typeID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetOpportunity(_ context.Context, id int64) (domain.Opportunity, error) {
	o, ok := f.opportunities[id]
	if !ok {
		return domain.Opportunity{}, ErrNotFound
	}
	return o, nil
}

func (f *fakeRepo) ListActivityTypes(context.Context) ([]domain.ActivityType, error) {
	return sortedValues(f.activityTypes, func(t domain.ActivityType) int64 { return t.ID }), nil
}

func (f *fakeRepo) ListPeople(_ context.Context, ids []int64) ([]domain.Person, error) {
	var out []domain.Person
	for _, id := range ids {
		if p, ok := f.people[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListCampuses(context.Context) ([]domain.Campus, error) {
	return sortedValues(f.campuses, func(c domain.Campus) int64 { return c.ID }), nil
}

func (f *fakeRepo) ListGroups(_ context.Context, ids []int64) ([]domain.Group, error) {
	var out []domain.Group
	for _, id := range ids {
		if g, ok := f.groups[id]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetConnectionRequest(_ context.Context, id int64) (domain.ConnectionRequest, error) {
	r, ok := f.requests[id]
	if !ok {
		return domain.ConnectionRequest{}, ErrNotFound
	}
	return r, nil
}

func (f *fakeRepo) ListConnectionRequests(_ context.Context, q RequestQuery) ([]domain.ConnectionRequest, error) {
	var out []domain.ConnectionRequest
	for _, r := range sortedValues(f.requests, func(r domain.ConnectionRequest) int64 { return r.ID }) {
		if r.OpportunityID != q.OpportunityID {
			continue
		}
		if q.StatusID > 0 && r.StatusID != q.StatusID {
			continue
		}
		if q.PersonID > 0 && r.PersonID != q.PersonID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRepo) CreateConnectionRequest(_ context.Context, r domain.ConnectionRequest) (domain.ConnectionRequest, error) {
	r.ID = f.id()
	f.requests[r.ID] = r
	return r, nil
}

func (f *fakeRepo) UpdateConnectionRequest(_ context.Context, r domain.ConnectionRequest) error {
	if f.failUpdate != nil {
		return f.failUpdate
	}
	if _, ok := f.requests[r.ID]; !ok {
		return ErrNotFound
	}
	f.requests[r.ID] = r
	return nil
}

func (f *fakeRepo) UpdateRequestOrders(_ context.Context, orders map[int64]int) error {
	for id, order := range orders {
		r, ok := f.requests[id]
		if !ok {
			return ErrNotFound
		}
		r.Order = order
		f.requests[id] = r
	}
	return nil
}

func (f *fakeRepo) DeleteConnectionRequest(_ context.Context, id int64) error {
	if _, ok := f.requests[id]; !ok {
		return ErrNotFound
	}
	delete(f.requests, id)
	for aid, a := range f.activities {
		if a.RequestID == id {
			delete(f.activities, aid)
		}
	}
	return nil
}

func (f *fakeRepo) CanDeleteConnectionRequest(_ context.Context, id int64) (string, error) {
	for _, w := range f.workflows {
		if w.RequestID == id {
			return "This connection request is assigned to a workflow.", nil
		}
	}
	return "", nil
}

func (f *fakeRepo) CreateActivity(_ context.Context, a domain.Activity) (domain.Activity, error) {
	a.ID = f.id()
	f.activities[a.ID] = a
	return a, nil
}

func (f *fakeRepo) GetActivity(_ context.Context, id int64) (domain.Activity, error) {
	a, ok := f.activities[id]
	if !ok {
		return domain.Activity{}, ErrNotFound
	}
	return a, nil
}

func (f *fakeRepo) ListActivities(_ context.Context, requestID int64, limit int) ([]domain.Activity, error) {
	var out []domain.Activity
	for _, a := range f.activities {
		if a.RequestID == requestID {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b domain.Activity) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) ListLatestActivities(_ context.Context, opportunityID int64) (map[int64]domain.Activity, error) {
	out := map[int64]domain.Activity{}
	for _, a := range f.activities {
		r, ok := f.requests[a.RequestID]
		if !ok || r.OpportunityID != opportunityID {
			continue
		}
		cur, ok := out[a.RequestID]
		if !ok || a.CreatedAt.After(cur.CreatedAt) || (a.CreatedAt.Equal(cur.CreatedAt) && a.ID > cur.ID) {
			out[a.RequestID] = a
		}
	}
	return out, nil
}

func (f *fakeRepo) DeleteActivity(_ context.Context, id int64) error {
	if _, ok := f.activities[id]; !ok {
		return ErrNotFound
	}
	delete(f.activities, id)
	return nil
}

func (f *fakeRepo) ListWorkflows(_ context.Context, requestID int64) ([]domain.Workflow, error) {
	var out []domain.Workflow
	for _, w := range sortedValues(f.workflows, func(w domain.Workflow) int64 { return w.ID }) {
		if w.RequestID == requestID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeRepo) FindGroupMember(_ context.Context, groupID, personID, roleID int64) (domain.GroupMember, error) {
	for _, m := range f.members {
		if m.GroupID == groupID && m.PersonID == personID && m.RoleID == roleID {
			return m, nil
		}
	}
	return domain.GroupMember{}, ErrNotFound
}

func (f *fakeRepo) CreateGroupMember(_ context.Context, m domain.GroupMember) (domain.GroupMember, error) {
	m.ID = f.id()
	f.members[m.ID] = m
	return m, nil
}

func (f *fakeRepo) activitiesOf(requestID int64) []domain.Activity {
	out, _ := f.ListActivities(context.Background(), requestID, 0)
	return out
}

func sortedValues[T any](m map[int64]T, id func(T) int64) []T {
	out := slices.Collect(maps.Values(m))
	slices.SortFunc(out, func(a, b T) int { return cmp.Compare(id(a), id(b)) })
	return out
}

type fakeRequirements struct {
	statuses []domain.RequirementStatus
	err      error
	calls    int
}

func (f *fakeRequirements) EvaluateRequirements(context.Context, int64, int64, int64) ([]domain.RequirementStatus, error) {
	f.calls++
	return f.statuses, f.err
}

type fakePrefs struct {
	values map[int64]map[string]string
}

func newFakePrefs() *fakePrefs {
	return &fakePrefs{values: map[int64]map[string]string{}}
}

func (f *fakePrefs) GetPreference(_ context.Context, personID int64, key string) (string, error) {
	return f.values[personID][key], nil
}

func (f *fakePrefs) SetPreference(_ context.Context, personID int64, key, value string) error {
	if f.values[personID] == nil {
		f.values[personID] = map[string]string{}
	}
	f.values[personID][key] = value
	return nil
}

type fakeIcons struct{}

func (fakeIcons) RenderStatusIcons(fields StatusIconFields, _ string) (string, error) {
	if fields.IsIdle {
		return "<span class=\"idle\"></span>", nil
	}
	return "", nil
}

func (fakeIcons) RenderStatusLegend(idleTooltip string) (string, error) {
	return "<div>" + idleTooltip + "</div>", nil
}

// Fixture ids.
const (
	fxType         int64 = 1
	fxStatusNo     int64 = 10
	fxStatusMaybe  int64 = 11
	fxStatusOld    int64 = 12
	fxOppServe     int64 = 20
	fxOppGreet     int64 = 21
	fxOppOtherType int64 = 22
	fxOtherType    int64 = 2
	fxOtherStatus  int64 = 30
	fxActAssigned  int64 = 40
	fxActConnected int64 = 41
	fxActTransfer  int64 = 42
	fxActCall      int64 = 43
	fxActEmail     int64 = 44
	fxCampusMain   int64 = 50
	fxCampusWest   int64 = 51
	fxActor        int64 = 100
	fxAlice        int64 = 101
	fxBob          int64 = 102
	fxCarol        int64 = 103
	fxDefaultConn  int64 = 104
	fxGroup        int64 = 60
	fxRole         int64 = 61
)

var fxNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fxNow }

func seededRepo() *fakeRepo {
	f := newFakeRepo()
	f.types[fxType] = domain.ConnectionType{ID: fxType, Name: "Serving", DaysUntilRequestIdle: 7}
	f.types[fxOtherType] = domain.ConnectionType{ID: fxOtherType, Name: "Small Groups", DaysUntilRequestIdle: 14}
	f.statuses[fxStatusNo] = domain.ConnectionStatus{ID: fxStatusNo, ConnectionTypeID: fxType, Name: "No Contact", Order: 0, IsActive: true, IsDefault: true}
	f.statuses[fxStatusMaybe] = domain.ConnectionStatus{ID: fxStatusMaybe, ConnectionTypeID: fxType, Name: "Contacted", Order: 1, IsActive: true, IsCritical: true}
	f.statuses[fxStatusOld] = domain.ConnectionStatus{ID: fxStatusOld, ConnectionTypeID: fxType, Name: "Retired", Order: 2}
	f.statuses[fxOtherStatus] = domain.ConnectionStatus{ID: fxOtherStatus, ConnectionTypeID: fxOtherType, Name: "New", IsActive: true, IsDefault: true}
	f.opportunities[fxOppServe] = domain.Opportunity{
		ID: fxOppServe, ConnectionTypeID: fxType, Name: "Ushers", IsActive: true,
		CampusConnectors: map[int64]int64{fxCampusMain: fxDefaultConn},
	}
	f.opportunities[fxOppGreet] = domain.Opportunity{
		ID: fxOppGreet, ConnectionTypeID: fxType, Name: "Greeters", IsActive: true,
		CampusConnectors: map[int64]int64{fxCampusMain: fxCarol},
	}
	f.opportunities[fxOppOtherType] = domain.Opportunity{ID: fxOppOtherType, ConnectionTypeID: fxOtherType, Name: "Alpha", IsActive: true}
	f.activityTypes[fxActAssigned] = domain.ActivityType{ID: fxActAssigned, SystemKey: domain.SystemActivityAssigned, Name: "Assigned", IsActive: true}
	f.activityTypes[fxActConnected] = domain.ActivityType{ID: fxActConnected, SystemKey: domain.SystemActivityConnected, Name: "Connected", IsActive: true}
	f.activityTypes[fxActTransfer] = domain.ActivityType{ID: fxActTransfer, SystemKey: domain.SystemActivityTransferred, Name: "Transferred", IsActive: true}
	typeID := fxType
	f.activityTypes[fxActCall] = domain.ActivityType{ID: fxActCall, ConnectionTypeID: &typeID, Name: "Phone Call", IsActive: true}
	f.activityTypes[fxActEmail] = domain.ActivityType{ID: fxActEmail, Name: "Email", IsActive: true}
	f.campuses[fxCampusMain] = domain.Campus{ID: fxCampusMain, Name: "Main"}
	f.campuses[fxCampusWest] = domain.Campus{ID: fxCampusWest, Name: "West"}
	for _, p := range []domain.Person{
		{ID: fxActor, NickName: "Ted", LastName: "Decker"},
		{ID: fxAlice, NickName: "Alice", LastName: "Adams"},
		{ID: fxBob, NickName: "Bob", LastName: "Baker"},
		{ID: fxCarol, NickName: "Carol", LastName: "Clark"},
		{ID: fxDefaultConn, NickName: "Dana", LastName: "Dunn"},
	} {
		f.people[p.ID] = p
	}
	f.groups[fxGroup] = domain.Group{ID: fxGroup, Name: "Usher Team"}
	return f
}

func systemTypes() SystemActivityTypes {
	return SystemActivityTypes{
		domain.SystemActivityAssigned:    fxActAssigned,
		domain.SystemActivityConnected:   fxActConnected,
		domain.SystemActivityTransferred: fxActTransfer,
	}
}

func newTestService(repo *fakeRepo, req RequirementsEvaluator) *Service {
	return NewService(repo, req, fixedClock, ServiceConfig{SystemActivityTypes: systemTypes()})
}

// putRequest stores a request directly, bypassing the service.
func (f *fakeRepo) putRequest(r domain.ConnectionRequest) domain.ConnectionRequest {
	if r.ID == 0 {
		r.ID = f.id()
	}
	if r.State == "" {
		r.State = domain.StateActive
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = fxNow.Add(-time.Hour)
	}
	r.UpdatedAt = r.CreatedAt
	f.requests[r.ID] = r
	return r
}

func int64Ptr(v int64) *int64 { return &v }
