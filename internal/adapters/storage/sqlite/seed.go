package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/hylla/connboard/internal/domain"
)

// DemoData identifies the rows SeedDemo created.
type DemoData struct {
	ConnectionTypeID int64
	OpportunityIDs   []int64
	ActorID          int64
	RequestIDs       []int64
}

// SeedDemo fills an empty database with a small volunteer board. It reports false and
// writes nothing when any connection type already exists.
func (r *Repository) SeedDemo(ctx context.Context, now time.Time) (DemoData, bool, error) {
	existing, err := r.ListConnectionTypes(ctx)
	if err != nil {
		return DemoData{}, false, err
	}
	if len(existing) > 0 {
		return DemoData{}, false, nil
	}

	var (
		out  DemoData
		step = func(name string, err error) error {
			if err != nil {
				return fmt.Errorf("seed %s: %w", name, err)
			}
			return nil
		}
	)
	ct, err := r.CreateConnectionType(ctx, domain.ConnectionType{Name: "Serving", IconCSSClass: "fa fa-hands-helping", DaysUntilRequestIdle: 7})
	if err := step("connection type", err); err != nil {
		return DemoData{}, false, err
	}
	out.ConnectionTypeID = ct.ID

	var statusIDs []int64
	for i, s := range []domain.ConnectionStatus{
		{Name: "No Contact", IsDefault: true},
		{Name: "Contacted", IsCritical: true, HighlightColor: "#f0ad4e"},
		{Name: "Scheduled"},
	} {
		s.ConnectionTypeID = ct.ID
		s.Order = i
		s.IsActive = true
		saved, err := r.CreateConnectionStatus(ctx, s)
		if err := step("status", err); err != nil {
			return DemoData{}, false, err
		}
		statusIDs = append(statusIDs, saved.ID)
	}

	for _, name := range []string{"Phone Call", "Email", "Meeting"} {
		_, err := r.CreateActivityType(ctx, domain.ActivityType{ConnectionTypeID: &ct.ID, Name: name, IsActive: true})
		if err := step("activity type", err); err != nil {
			return DemoData{}, false, err
		}
	}

	campus, err := r.CreateCampus(ctx, domain.Campus{Name: "Main Campus", ShortCode: "MAIN"})
	if err := step("campus", err); err != nil {
		return DemoData{}, false, err
	}

	var people []domain.Person
	for _, p := range []domain.Person{
		{NickName: "Ted", LastName: "Decker", Email: "ted@example.org"},
		{NickName: "Alisha", LastName: "Marble", Email: "alisha@example.org"},
		{NickName: "Noah", LastName: "Jameson", Email: "noah@example.org"},
		{NickName: "Sarah", LastName: "Simmons", Email: "sarah@example.org"},
	} {
		saved, err := r.CreatePerson(ctx, p)
		if err := step("person", err); err != nil {
			return DemoData{}, false, err
		}
		people = append(people, saved)
	}
	out.ActorID = people[0].ID

	for _, name := range []string{"Greeting Team", "Parking Team"} {
		opp, err := r.CreateOpportunity(ctx, domain.Opportunity{
			ConnectionTypeID: ct.ID,
			Name:             name,
			PublicName:       name,
			IsActive:         true,
			CampusConnectors: map[int64]int64{campus.ID: people[0].ID},
		})
		if err := step("opportunity", err); err != nil {
			return DemoData{}, false, err
		}
		out.OpportunityIDs = append(out.OpportunityIDs, opp.ID)
	}

	group, err := r.CreateGroup(ctx, domain.Group{Name: "Greeters", CampusID: &campus.ID})
	if err := step("group", err); err != nil {
		return DemoData{}, false, err
	}
	role, err := r.CreateGroupRole(ctx, domain.GroupRole{Name: "Member"})
	if err := step("group role", err); err != nil {
		return DemoData{}, false, err
	}
	_, err = r.CreateGroupRequirement(ctx, GroupRequirement{
		GroupID:       group.ID,
		Name:          "Background Check",
		CheckType:     domain.RequirementManual,
		MustMeetToAdd: true,
	})
	if err := step("group requirement", err); err != nil {
		return DemoData{}, false, err
	}

	for i, person := range people[1:] {
		req, err := domain.NewConnectionRequest(domain.ConnectionRequestInput{
			OpportunityID: out.OpportunityIDs[0],
			PersonID:      person.ID,
			StatusID:      statusIDs[i%len(statusIDs)],
			CampusID:      &campus.ID,
			Order:         i,
			Placement:     &domain.Placement{GroupID: group.ID, RoleID: role.ID, MemberStatus: domain.MemberStatusActive},
		}, now.Add(-time.Duration(len(people)-i)*24*time.Hour))
		if err := step("request", err); err != nil {
			return DemoData{}, false, err
		}
		saved, err := r.CreateConnectionRequest(ctx, req)
		if err := step("request", err); err != nil {
			return DemoData{}, false, err
		}
		out.RequestIDs = append(out.RequestIDs, saved.ID)
	}
	return out, true, nil
}
