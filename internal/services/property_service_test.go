package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPropertyRegister(t *testing.T) {
	svc := &PropertyService{DB: newTestDB(t)}
	ctx := context.Background()
	owner := Identity{ID: "alice"}

	cases := []struct {
		name string
		in   PropertyInput
		want error
	}{
		{"blank number", PropertyInput{Area: 45.5, Street: "Sadovaya", HouseNumber: "12"}, ErrMissingFields},
		{"blank street", PropertyInput{Number: "101", Area: 45.5, HouseNumber: "12"}, ErrMissingFields},
		{"zero area", PropertyInput{Number: "101", Area: 0, Street: "Sadovaya", HouseNumber: "12"}, ErrNonPositiveArea},
		{"negative area", PropertyInput{Number: "101", Area: -3, Street: "Sadovaya", HouseNumber: "12"}, ErrNonPositiveArea},
	}
	for _, tc := range cases {
		if _, err := svc.Register(ctx, owner, tc.in); !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}

	floor := 4
	p, err := svc.Register(ctx, owner, PropertyInput{
		Number: "101", Area: 45.5,
		Street: "Sadovaya", HouseNumber: "12", Entrance: "2", Floor: &floor,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if p.ID == "" || p.OwnerID != "alice" {
		t.Fatalf("unexpected property: %+v", p)
	}
	if got := p.FullAddress(); got != "st. Sadovaya, bld. 12, entrance 2, floor 4, unit 101" {
		t.Fatalf("FullAddress = %q", got)
	}

	// The unit number is unique across the community.
	if _, err := svc.Register(ctx, Identity{ID: "bob"}, PropertyInput{
		Number: "101", Area: 30, Street: "Sadovaya", HouseNumber: "12",
	}); !errors.Is(err, ErrDuplicateNumber) {
		t.Fatalf("duplicate number: got %v", err)
	}
}

func TestPropertyListing(t *testing.T) {
	svc := &PropertyService{DB: newTestDB(t)}
	ctx := context.Background()

	for _, reg := range []struct{ owner, number string }{
		{"alice", "101"}, {"alice", "102"}, {"bob", "201"},
	} {
		if _, err := svc.Register(ctx, Identity{ID: reg.owner}, PropertyInput{
			Number: reg.number, Area: 40, Street: "Sadovaya", HouseNumber: "12",
		}); err != nil {
			t.Fatalf("register %s: %v", reg.number, err)
		}
	}

	owned, err := svc.ListOwned(ctx, "alice")
	if err != nil || len(owned) != 2 {
		t.Fatalf("ListOwned = %d, %v; want 2", len(owned), err)
	}
	if _, err := svc.ListAll(ctx, Identity{ID: "alice"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-admin ListAll: got %v", err)
	}
	all, err := svc.ListAll(ctx, Identity{ID: "root", IsAdmin: true})
	if err != nil || len(all) != 3 {
		t.Fatalf("admin ListAll = %d, %v; want 3", len(all), err)
	}
}

func TestPropertyDelete_BlockedByVotes(t *testing.T) {
	votings, props, clock := newVotingFixture(t)
	ctx := context.Background()

	p, err := props.Register(ctx, Identity{ID: "alice"}, PropertyInput{
		Number: "101", Area: 45.5, Street: "Sadovaya", HouseNumber: "12",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	v := openVoting(t, votings, clock, "creator")
	if _, err := votings.SubmitVote(ctx, Identity{ID: "alice"}, v.ID, optionID(t, v, "Yes")); err != nil {
		t.Fatalf("SubmitVote: %v", err)
	}

	if err := props.Delete(ctx, Identity{ID: "bob"}, p.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-owner delete: got %v", err)
	}
	if err := props.Delete(ctx, Identity{ID: "alice"}, p.ID); !errors.Is(err, ErrPropertyHasVotes) {
		t.Fatalf("delete with votes: got %v", err)
	}

	// Deleting the voting clears its votes and frees the unit.
	clock.t = v.EndDate.Add(time.Hour)
	if err := votings.Delete(ctx, Identity{ID: "creator"}, v.ID); err != nil {
		t.Fatalf("delete voting: %v", err)
	}
	if err := props.Delete(ctx, Identity{ID: "alice"}, p.ID); err != nil {
		t.Fatalf("delete freed unit: %v", err)
	}
	if err := props.Delete(ctx, Identity{ID: "alice"}, p.ID); !errors.Is(err, ErrPropertyNotFound) {
		t.Fatalf("second delete: got %v", err)
	}
}
