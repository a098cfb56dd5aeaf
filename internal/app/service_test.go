package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hylla/connboard/internal/domain"
)

// TestSaveRequestAddDefaults verifies add falls back to the default status and appends Assigned.
func TestSaveRequestAddDefaults(t *testing.T) {
	repo := seededRepo()
	svc := newTestService(repo, nil)

	req, err := svc.SaveRequest(context.Background(), SaveRequestInput{
		OpportunityID: fxOppServe,
		ActorID:       fxActor,
		PersonID:      fxAlice,
		ConnectorID:   int64Ptr(fxBob),
		Comments:      "  <b>Wants</b> to serve &amp; help ",
	})
	if err != nil {
		t.Fatalf("SaveRequest() error = %v", err)
	}
	if req.ID == 0 || req.StatusID != fxStatusNo || req.State != domain.StateActive || req.Order != 0 {
		t.Fatalf("unexpected request %#v", req)
	}
	if req.Comments != "Wants to serve & help" {
		t.Fatalf("expected sanitized comments, got %q", req.Comments)
	}
	acts := repo.activitiesOf(req.ID)
	if len(acts) != 1 || acts[0].ActivityTypeID != fxActAssigned || acts[0].ConnectorID == nil || *acts[0].ConnectorID != fxBob {
		t.Fatalf("expected one Assigned activity for bob, got %#v", acts)
	}
}

func TestSaveRequestAddAppendsToColumnBottom(t *testing.T) {
	repo := seededRepo()
	repo.putRequest(domain.ConnectionRequest{OpportunityID: fxOppServe, PersonID: fxBob, StatusID: fxStatusNo, Order: 4})
	repo.putRequest(domain.ConnectionRequest{OpportunityID: fxOppServe, PersonID: fxCarol, StatusID: fxStatusNo, Order: 9})
	svc := newTestService(repo, nil)

	req, err := svc.SaveRequest(context.Background(), SaveRequestInput{OpportunityID: fxOppServe, PersonID: fxAlice})
	if err != nil {
		t.Fatalf("SaveRequest() error = %v", err)
	}
	if req.Order != 10 {
		t.Fatalf("expected order 10, got %d", req.Order)
	}
	if got := repo.activitiesOf(req.ID); len(got) != 0 {
		t.Fatalf("expected no activity without connector, got %#v", got)
	}
}

func TestSaveRequestValidation(t *testing.T) {
	tomorrow := fxNow.AddDate(0, 0, 1)
	tests := []struct {
		name string
		in   SaveRequestInput
	}{
		{name: "missing person", in: SaveRequestInput{OpportunityID: fxOppServe}},
		{name: "unknown opportunity", in: SaveRequestInput{OpportunityID: 999, PersonID: fxAlice}},
		{name: "status from another type", in: SaveRequestInput{OpportunityID: fxOppServe, PersonID: fxAlice, StatusID: fxOtherStatus}},
		{name: "followup without date", in: SaveRequestInput{OpportunityID: fxOppServe, PersonID: fxAlice, State: domain.StateFutureFollowUp}},
		{name: "bad state", in: SaveRequestInput{OpportunityID: fxOppServe, PersonID: fxAlice, State: "snoozed", FollowupDate: &tomorrow}},
		{name: "partial placement", in: SaveRequestInput{OpportunityID: fxOppServe, PersonID: fxAlice, Placement: &domain.Placement{GroupID: fxGroup}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := seededRepo()
			svc := newTestService(repo, nil)
			_, err := svc.SaveRequest(context.Background(), tc.in)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if len(repo.requests) != 0 {
				t.Fatalf("expected nothing written, got %d requests", len(repo.requests))
			}
		})
	}
}

func TestSaveRequestRejectsOpenDuplicate(t *testing.T) {
	repo := seededRepo()
	repo.putRequest(domain.ConnectionRequest{OpportunityID: fxOppServe, PersonID: fxAlice, StatusID: fxStatusNo})
	closed := repo.putRequest(domain.ConnectionRequest{OpportunityID: fxOppGreet, PersonID: fxBob, StatusID: fxStatusNo, State: domain.StateConnected})
	svc := newTestService(repo, nil)

	if _, err := svc.SaveRequest(context.Background(), SaveRequestInput{OpportunityID: fxOppServe, PersonID: fxAlice}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected duplicate to fail validation, got %v", err)
	}
	if _, err := svc.SaveRequest(context.Background(), SaveRequestInput{OpportunityID: closed.OpportunityID, PersonID: fxBob}); err != nil {
		t.Fatalf("expected closed request not to count as duplicate, got %v", err)
	}
}

func TestSaveRequestEdit(t *testing.T) {
	repo := seededRepo()
	repo.putRequest(domain.ConnectionRequest{OpportunityID: fxOppServe, PersonID: fxBob, StatusID: fxStatusMaybe, Order: 7})
	existing := repo.putRequest(domain.ConnectionRequest{
		OpportunityID: fxOppServe, PersonID: fxAlice, StatusID: fxStatusNo, ConnectorID: int64Ptr(fxBob),
		Placement:           &domain.Placement{GroupID: fxGroup, RoleID: fxRole, MemberStatus: domain.MemberStatusActive},
		PlacementAttributes: domain.AttributeValues{"shirt": "L"},
	})
	svc := newTestService(repo, nil)

	followup := fxNow.AddDate(0, 1, 0)
	got, err := svc.SaveRequest(context.Background(), SaveRequestInput{
		ID:           existing.ID,
		PersonID:     fxAlice,
		StatusID:     fxStatusMaybe,
		State:        domain.StateFutureFollowUp,
		FollowupDate: &followup,
		ConnectorID:  int64Ptr(fxBob),
	})
	if err != nil {
		t.Fatalf("SaveRequest(edit) error = %v", err)
	}
	if got.StatusID != fxStatusMaybe || got.Order != 8 {
		t.Fatalf("expected bottom of Contacted at 8, got status %d order %d", got.StatusID, got.Order)
	}
	if got.FollowupDate == nil || !got.FollowupDate.Equal(followup) {
		t.Fatalf("expected followup date kept, got %v", got.FollowupDate)
	}
	if got.Placement != nil || got.PlacementAttributes != nil {
		t.Fatalf("expected cleared placement, got %#v %#v", got.Placement, got.PlacementAttributes)
	}
	if acts := repo.activitiesOf(existing.ID); len(acts) != 0 {
		t.Fatalf("unchanged connector must not log Assigned, got %#v", acts)
	}

	got, err = svc.SaveRequest(context.Background(), SaveRequestInput{ID: existing.ID, PersonID: fxAlice, State: domain.StateActive, ConnectorID: int64Ptr(fxCarol)})
	if err != nil {
		t.Fatalf("SaveRequest(reassign) error = %v", err)
	}
	if got.FollowupDate != nil {
		t.Fatalf("leaving FutureFollowUp must clear the date, got %v", got.FollowupDate)
	}
	if got.StatusID != fxStatusMaybe || got.Order != 8 {
		t.Fatalf("expected status kept, got %d/%d", got.StatusID, got.Order)
	}
	if acts := repo.activitiesOf(existing.ID); len(acts) != 1 || acts[0].ActivityTypeID != fxActAssigned {
		t.Fatalf("expected Assigned activity, got %#v", acts)
	}
}

func placedRequest(repo *fakeRepo) domain.ConnectionRequest {
	return repo.putRequest(domain.ConnectionRequest{
		OpportunityID:       fxOppServe,
		PersonID:            fxAlice,
		StatusID:            fxStatusNo,
		CampusID:            int64Ptr(fxCampusMain),
		Placement:           &domain.Placement{GroupID: fxGroup, RoleID: fxRole, MemberStatus: domain.MemberStatusPending},
		PlacementAttributes: domain.AttributeValues{"shirt": "L"},
	})
}

func TestConnectGuardBlocksUntickedManualRequirement(t *testing.T) {
	repo := seededRepo()
	req := placedRequest(repo)
	reqs := &fakeRequirements{statuses: []domain.RequirementStatus{
		{RequirementID: 1, Name: "Background Check", CheckType: domain.RequirementManual, MustMeetToAdd: true, Meets: domain.RequirementNotMet},
		{RequirementID: 2, Name: "Age", CheckType: domain.RequirementAutomatic, Meets: domain.RequirementNotApplicable},
	}}
	svc := newTestService(repo, reqs)

	_, err := svc.Connect(context.Background(), ConnectInput{RequestID: req.ID, ActorID: fxActor})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if len(repo.members) != 0 || len(repo.activities) != 0 {
		t.Fatalf("expected nothing written, got members=%d activities=%d", len(repo.members), len(repo.activities))
	}
	if got := repo.requests[req.ID].State; got != domain.StateActive {
		t.Fatalf("expected state unchanged, got %q", got)
	}
}

func TestConnectGuardBlocksFailingAutomaticRequirement(t *testing.T) {
	repo := seededRepo()
	req := placedRequest(repo)
	reqs := &fakeRequirements{statuses: []domain.RequirementStatus{
		{RequirementID: 3, Name: "Membership", CheckType: domain.RequirementAutomatic, MustMeetToAdd: true, Meets: domain.RequirementNotMet},
	}}
	svc := newTestService(repo, reqs)

	if _, err := svc.Connect(context.Background(), ConnectInput{RequestID: req.ID, CheckedRequirementIDs: []int64{3}}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestConnectCreatesMembership(t *testing.T) {
	repo := seededRepo()
	req := placedRequest(repo)
	reqs := &fakeRequirements{statuses: []domain.RequirementStatus{
		{RequirementID: 1, Name: "Background Check", CheckType: domain.RequirementManual, MustMeetToAdd: true, Meets: domain.RequirementNotMet},
		{RequirementID: 4, Name: "Covenant", CheckType: domain.RequirementManual, Meets: domain.RequirementMeetsAll},
		{RequirementID: 5, Name: "Training", CheckType: domain.RequirementAutomatic, MustMeetToAdd: true, Meets: domain.RequirementMeetsWithWarning},
	}}
	svc := newTestService(repo, reqs)

	got, err := svc.Connect(context.Background(), ConnectInput{RequestID: req.ID, ActorID: fxActor, CheckedRequirementIDs: []int64{1}})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !got.MemberCreated || got.Member == nil {
		t.Fatalf("expected created member, got %#v", got)
	}
	want := domain.GroupMember{
		ID:                got.Member.ID,
		GroupID:           fxGroup,
		PersonID:          fxAlice,
		RoleID:            fxRole,
		Status:            domain.MemberStatusPending,
		Attributes:        domain.AttributeValues{"shirt": "L"},
		MetRequirementIDs: []int64{1, 4},
		CreatedAt:         fxNow,
	}
	if diff := cmp.Diff(want, repo.members[got.Member.ID]); diff != "" {
		t.Fatalf("member mismatch (-want +got):\n%s", diff)
	}
	if got.Request.State != domain.StateConnected || repo.requests[req.ID].State != domain.StateConnected {
		t.Fatalf("expected connected state, got %q", repo.requests[req.ID].State)
	}
	acts := repo.activitiesOf(req.ID)
	if len(acts) != 1 || acts[0].ActivityTypeID != fxActConnected || acts[0].ConnectorID == nil || *acts[0].ConnectorID != fxActor {
		t.Fatalf("expected Connected activity by actor, got %#v", acts)
	}
}

func TestConnectSkipsGuardForExistingMember(t *testing.T) {
	repo := seededRepo()
	req := placedRequest(repo)
	repo.members[1] = domain.GroupMember{ID: 1, GroupID: fxGroup, PersonID: fxAlice, RoleID: fxRole, Status: domain.MemberStatusActive}
	reqs := &fakeRequirements{statuses: []domain.RequirementStatus{
		{RequirementID: 1, Name: "Background Check", CheckType: domain.RequirementManual, MustMeetToAdd: true, Meets: domain.RequirementNotMet},
	}}
	svc := newTestService(repo, reqs)

	got, err := svc.Connect(context.Background(), ConnectInput{RequestID: req.ID})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if got.MemberCreated || len(repo.members) != 1 || reqs.calls != 0 {
		t.Fatalf("expected existing membership reused without evaluation, got created=%v members=%d calls=%d", got.MemberCreated, len(repo.members), reqs.calls)
	}
}

func TestConnectWithoutPlacement(t *testing.T) {
	repo := seededRepo()
	req := repo.putRequest(domain.ConnectionRequest{OpportunityID: fxOppServe, PersonID: fxAlice, StatusID: fxStatusNo})
	svc := newTestService(repo, &fakeRequirements{err: errors.New("should not be called")})

	got, err := svc.Connect(context.Background(), ConnectInput{RequestID: req.ID})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if got.Member != nil || got.Request.State != domain.StateConnected {
		t.Fatalf("unexpected result %#v", got)
	}
}

func TestConnectRollsBackOnWriteFailure(t *testing.T) {
	repo := seededRepo()
	req := placedRequest(repo)
	repo.failUpdate = errors.New("disk full")
	svc := newTestService(repo, &fakeRequirements{})

	if _, err := svc.Connect(context.Background(), ConnectInput{RequestID: req.ID}); err == nil {
		t.Fatal("expected write failure")
	}
	if len(repo.members) != 0 || len(repo.activities) != 0 {
		t.Fatalf("expected rollback, got members=%d activities=%d", len(repo.members), len(repo.activities))
	}
}

func TestTransferDefaultConnector(t *testing.T) {
	repo := seededRepo()
	req := placedRequest(repo)
	repo.putRequest(domain.ConnectionRequest{OpportunityID: fxOppGreet, PersonID: fxBob, StatusID: fxStatusNo, Order: 3})
	svc := newTestService(repo, nil)

	got, err := svc.Transfer(context.Background(), TransferInput{
		RequestID:     req.ID,
		ActorID:       fxActor,
		OpportunityID: fxOppGreet,
		Connector:     ConnectorPolicy{Mode: ConnectorDefault},
		Note:          "<i>moving</i> over",
	})
	if err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	if !got.OpportunityChanged {
		t.Fatal("expected opportunity change")
	}
	r := repo.requests[req.ID]
	if r.OpportunityID != fxOppGreet || r.StatusID != fxStatusNo || r.Order != 4 {
		t.Fatalf("expected bottom of Greeters/No Contact, got opp=%d status=%d order=%d", r.OpportunityID, r.StatusID, r.Order)
	}
	if r.Placement != nil || r.PlacementAttributes != nil {
		t.Fatalf("expected placement cleared, got %#v", r.Placement)
	}
	if r.ConnectorID == nil || *r.ConnectorID != fxCarol {
		t.Fatalf("expected campus connector carol, got %v", r.ConnectorID)
	}
	typesByID := map[int64]string{}
	for _, a := range repo.activitiesOf(req.ID) {
		typesByID[a.ActivityTypeID] = a.Note
	}
	want := map[int64]string{fxActTransfer: "moving over", fxActAssigned: ""}
	if diff := cmp.Diff(want, typesByID); diff != "" {
		t.Fatalf("activities mismatch (-want +got):\n%s", diff)
	}
}

func TestTransferConnectorPolicies(t *testing.T) {
	tests := []struct {
		name   string
		policy ConnectorPolicy
		want   *int64
		logs   int
	}{
		{name: "keep", policy: ConnectorPolicy{Mode: ConnectorKeep}, want: int64Ptr(fxBob), logs: 1},
		{name: "none", policy: ConnectorPolicy{Mode: ConnectorNone}, want: nil, logs: 1},
		{name: "explicit", policy: ConnectorPolicy{Mode: ConnectorExplicit, PersonID: fxDefaultConn}, want: int64Ptr(fxDefaultConn), logs: 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := seededRepo()
			req := repo.putRequest(domain.ConnectionRequest{OpportunityID: fxOppServe, PersonID: fxAlice, StatusID: fxStatusNo, ConnectorID: int64Ptr(fxBob)})
			svc := newTestService(repo, nil)
			got, err := svc.Transfer(context.Background(), TransferInput{RequestID: req.ID, OpportunityID: fxOppServe, StatusID: fxStatusMaybe, Connector: tc.policy})
			if err != nil {
				t.Fatalf("Transfer() error = %v", err)
			}
			if got.OpportunityChanged {
				t.Fatal("same opportunity must not report a change")
			}
			if diff := cmp.Diff(tc.want, got.Request.ConnectorID); diff != "" {
				t.Fatalf("connector mismatch (-want +got):\n%s", diff)
			}
			if n := len(repo.activitiesOf(req.ID)); n != tc.logs {
				t.Fatalf("expected %d activities, got %d", tc.logs, n)
			}
		})
	}
}

func TestTransferRejectsUnknownTarget(t *testing.T) {
	repo := seededRepo()
	req := repo.putRequest(domain.ConnectionRequest{OpportunityID: fxOppServe, PersonID: fxAlice, StatusID: fxStatusNo})
	svc := newTestService(repo, nil)
	if _, err := svc.Transfer(context.Background(), TransferInput{RequestID: req.ID, OpportunityID: 404}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, err := svc.Transfer(context.Background(), TransferInput{RequestID: req.ID, OpportunityID: fxOppServe, Connector: ConnectorPolicy{Mode: ConnectorExplicit}}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for explicit without person, got %v", err)
	}
}

func TestAssignConnector(t *testing.T) {
	repo := seededRepo()
	req := repo.putRequest(domain.ConnectionRequest{OpportunityID: fxOppServe, PersonID: fxAlice, StatusID: fxStatusNo})
	svc := newTestService(repo, nil)
	ctx := context.Background()

	if _, err := svc.AssignConnector(ctx, req.ID, int64Ptr(fxBob)); err != nil {
		t.Fatalf("AssignConnector() error = %v", err)
	}
	if _, err := svc.AssignConnector(ctx, req.ID, int64Ptr(fxBob)); err != nil {
		t.Fatalf("AssignConnector(same) error = %v", err)
	}
	if _, err := svc.AssignConnector(ctx, req.ID, nil); err != nil {
		t.Fatalf("AssignConnector(nil) error = %v", err)
	}
	if repo.requests[req.ID].ConnectorID != nil {
		t.Fatalf("expected connector cleared")
	}
	if n := len(repo.activitiesOf(req.ID)); n != 1 {
		t.Fatalf("expected exactly one Assigned activity, got %d", n)
	}
}

func TestMoveCardReordersWithinColumn(t *testing.T) {
	repo := seededRepo()
	a := repo.putRequest(domain.ConnectionRequest{OpportunityID: fxOppServe, PersonID: fxAlice, StatusID: fxStatusNo, Order: 4})
	b := repo.putRequest(domain.ConnectionRequest{OpportunityID: fxOppServe, PersonID: fxBob, StatusID: fxStatusNo, Order: 9})
	c := repo.putRequest(domain.ConnectionRequest{OpportunityID: fxOppServe, PersonID: fxCarol, StatusID: fxStatusNo, Order: 12})
	svc := newTestService(repo, nil)

	if _, err := svc.MoveCard(context.Background(), MoveCardInput{RequestID: c.ID, StatusID: fxStatusNo, Index: 0, Reorder: true}); err != nil {
		t.Fatalf("MoveCard() error = %v", err)
	}
	got := map[int64]int{a.ID: repo.requests[a.ID].Order, b.ID: repo.requests[b.ID].Order, c.ID: repo.requests[c.ID].Order}
	want := map[int64]int{c.ID: 4, a.ID: 9, b.ID: 12}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("orders mismatch (-want +got):\n%s", diff)
	}
}

func TestMoveCardIntoAnotherColumn(t *testing.T) {
	repo := seededRepo()
	a := repo.putRequest(domain.ConnectionRequest{OpportunityID: fxOppServe, PersonID: fxAlice, StatusID: fxStatusNo, Order: 4})
	b := repo.putRequest(domain.ConnectionRequest{OpportunityID: fxOppServe, PersonID: fxBob, StatusID: fxStatusNo, Order: 9})
	c := repo.putRequest(domain.ConnectionRequest{OpportunityID: fxOppServe, PersonID: fxCarol, StatusID: fxStatusNo, Order: 12})
	moving := repo.putRequest(domain.ConnectionRequest{OpportunityID: fxOppServe, PersonID: fxDefaultConn, StatusID: fxStatusMaybe, Order: 0})
	svc := newTestService(repo, nil)

	if _, err := svc.MoveCard(context.Background(), MoveCardInput{RequestID: moving.ID, StatusID: fxStatusNo, Index: 1, Reorder: true}); err != nil {
		t.Fatalf("MoveCard() error = %v", err)
	}
	got := map[int64]int{}
	for _, id := range []int64{a.ID, b.ID, c.ID, moving.ID} {
		got[id] = repo.requests[id].Order
	}
	want := map[int64]int{a.ID: 4, b.ID: 9, c.ID: 12, moving.ID: 13}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("orders mismatch (-want +got):\n%s", diff)
	}
	if repo.requests[moving.ID].StatusID != fxStatusNo {
		t.Fatalf("expected status change")
	}
}

func TestMoveCardWithoutReorderKeepsOrder(t *testing.T) {
	repo := seededRepo()
	req := repo.putRequest(domain.ConnectionRequest{OpportunityID: fxOppServe, PersonID: fxAlice, StatusID: fxStatusNo, Order: 6})
	svc := newTestService(repo, nil)

	got, err := svc.MoveCard(context.Background(), MoveCardInput{RequestID: req.ID, StatusID: fxStatusMaybe, Index: 0})
	if err != nil {
		t.Fatalf("MoveCard() error = %v", err)
	}
	if got.StatusID != fxStatusMaybe || got.Order != 6 {
		t.Fatalf("expected status change only, got %d/%d", got.StatusID, got.Order)
	}
	if _, err := svc.MoveCard(context.Background(), MoveCardInput{RequestID: req.ID, StatusID: fxOtherStatus}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign status, got %v", err)
	}
}

func TestAddAndDeleteActivity(t *testing.T) {
	repo := seededRepo()
	req := repo.putRequest(domain.ConnectionRequest{OpportunityID: fxOppServe, PersonID: fxAlice, StatusID: fxStatusNo})
	svc := newTestService(repo, nil)
	ctx := context.Background()

	got, err := svc.AddActivity(ctx, AddActivityInput{RequestID: req.ID, ActorID: fxActor, ActivityTypeID: fxActCall, Note: "<script>x</script>left voicemail"})
	if err != nil {
		t.Fatalf("AddActivity() error = %v", err)
	}
	if got.ConnectorID == nil || *got.ConnectorID != fxActor || got.Note != "left voicemail" || !got.CreatedAt.Equal(fxNow) {
		t.Fatalf("unexpected activity %#v", got)
	}
	if _, err := svc.AddActivity(ctx, AddActivityInput{RequestID: req.ID, ActivityTypeID: fxActConnected}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected system type rejected, got %v", err)
	}
	if err := svc.DeleteActivity(ctx, req.ID+1, got.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for wrong request, got %v", err)
	}
	if err := svc.DeleteActivity(ctx, req.ID, got.ID); err != nil {
		t.Fatalf("DeleteActivity() error = %v", err)
	}
	if len(repo.activities) != 0 {
		t.Fatalf("expected activity deleted")
	}
}

func TestDeleteRequest(t *testing.T) {
	repo := seededRepo()
	blocked := repo.putRequest(domain.ConnectionRequest{OpportunityID: fxOppServe, PersonID: fxAlice, StatusID: fxStatusNo})
	free := repo.putRequest(domain.ConnectionRequest{OpportunityID: fxOppServe, PersonID: fxBob, StatusID: fxStatusNo})
	repo.workflows[1] = domain.Workflow{ID: 1, RequestID: blocked.ID, Name: "Follow up"}
	repo.activities[5] = domain.Activity{ID: 5, RequestID: free.ID, OpportunityID: fxOppServe, ActivityTypeID: fxActCall, CreatedAt: fxNow}
	svc := newTestService(repo, nil)
	ctx := context.Background()

	err := svc.DeleteRequest(ctx, blocked.ID)
	if !errors.Is(err, ErrPrecondition) || err.Error() != "This connection request is assigned to a workflow." {
		t.Fatalf("expected precondition reason, got %v", err)
	}
	if _, ok := repo.requests[blocked.ID]; !ok {
		t.Fatal("blocked request must survive")
	}
	if err := svc.DeleteRequest(ctx, free.ID); err != nil {
		t.Fatalf("DeleteRequest() error = %v", err)
	}
	if _, ok := repo.requests[free.ID]; ok || len(repo.activities) != 0 {
		t.Fatal("expected request and activities removed")
	}
	if err := svc.DeleteRequest(ctx, free.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadSystemActivityTypes(t *testing.T) {
	repo := seededRepo()
	got, err := LoadSystemActivityTypes(context.Background(), repo)
	if err != nil {
		t.Fatalf("LoadSystemActivityTypes() error = %v", err)
	}
	if diff := cmp.Diff(systemTypes(), got); diff != "" {
		t.Fatalf("table mismatch (-want +got):\n%s", diff)
	}
	delete(repo.activityTypes, fxActTransfer)
	if _, err := LoadSystemActivityTypes(context.Background(), repo); err == nil {
		t.Fatal("expected missing transferred type to fail")
	}
}

func TestRequirementStatusesHidesNotApplicable(t *testing.T) {
	repo := seededRepo()
	req := placedRequest(repo)
	svc := newTestService(repo, &fakeRequirements{statuses: []domain.RequirementStatus{
		{RequirementID: 1, Name: "A", Meets: domain.RequirementNotApplicable},
		{RequirementID: 2, Name: "B", Meets: domain.RequirementError},
	}})
	got, err := svc.RequirementStatuses(context.Background(), req)
	if err != nil {
		t.Fatalf("RequirementStatuses() error = %v", err)
	}
	if len(got) != 1 || got[0].RequirementID != 2 {
		t.Fatalf("unexpected statuses %#v", got)
	}
}
