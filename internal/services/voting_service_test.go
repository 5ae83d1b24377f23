package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dvorik/go-community-backend/internal/domain"
	"github.com/dvorik/go-community-backend/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// fixedClock pins a service's Now seam to a controllable instant.
type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time          { return c.t }
func (c *fixedClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newVotingFixture(t *testing.T) (*VotingService, *PropertyService, *fixedClock) {
	t.Helper()
	db := newTestDB(t)
	props := &PropertyService{DB: db}
	svc := NewVotingService(db, props)
	clock := &fixedClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc.Now = clock.now
	return svc, props, clock
}

func registerUnits(t *testing.T, props *PropertyService, owner string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := props.Register(context.Background(), Identity{ID: owner}, PropertyInput{
			Number:      fmt.Sprintf("%s-%d", owner, 101+i),
			Area:        45.5,
			Street:      "Sadovaya",
			HouseNumber: "12",
		})
		if err != nil {
			t.Fatalf("register unit: %v", err)
		}
	}
}

func openVoting(t *testing.T, svc *VotingService, clock *fixedClock, creator string) *domain.Voting {
	t.Helper()
	v, err := svc.Create(context.Background(), Identity{ID: creator}, VotingInput{
		Title:       "Roof repair",
		Description: "Fix the roof before winter",
		Question:    "Approve the roof repair budget?",
		StartDate:   clock.t.Add(time.Hour),
		EndDate:     clock.t.Add(7 * 24 * time.Hour),
		Options:     []string{"Yes", "No"},
	})
	if err != nil {
		t.Fatalf("create voting: %v", err)
	}
	clock.advance(2 * time.Hour) // move inside the window
	return v
}

func optionID(t *testing.T, v *domain.Voting, text string) string {
	t.Helper()
	for _, o := range v.Options {
		if o.Text == text {
			return o.ID
		}
	}
	t.Fatalf("option %q not found", text)
	return ""
}

func TestCreate_Validation(t *testing.T) {
	svc, _, clock := newVotingFixture(t)
	ctx := context.Background()
	valid := VotingInput{
		Title: "t", Description: "d", Question: "q",
		StartDate: clock.t.Add(time.Hour), EndDate: clock.t.Add(2 * time.Hour),
		Options: []string{"a", "b"},
	}

	cases := []struct {
		name   string
		mutate func(in *VotingInput)
		want   error
	}{
		{"empty title", func(in *VotingInput) { in.Title = "  " }, ErrMissingFields},
		{"empty description", func(in *VotingInput) { in.Description = "" }, ErrMissingFields},
		{"empty question", func(in *VotingInput) { in.Question = "" }, ErrMissingFields},
		{"one option", func(in *VotingInput) { in.Options = []string{"a"} }, ErrTooFewOptions},
		{"blank options dropped", func(in *VotingInput) { in.Options = []string{"a", "  ", ""} }, ErrTooFewOptions},
		{"start equals end", func(in *VotingInput) { in.EndDate = in.StartDate }, ErrBadDateRange},
		{"start after end", func(in *VotingInput) { in.StartDate = in.EndDate.Add(time.Hour) }, ErrBadDateRange},
		{"start in past", func(in *VotingInput) { in.StartDate = clock.t.Add(-time.Minute) }, ErrStartInPast},
	}
	for _, tc := range cases {
		in := valid
		in.Options = append([]string(nil), valid.Options...)
		tc.mutate(&in)
		if _, err := svc.Create(ctx, Identity{ID: "u1"}, in); !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
		// Every one of those must also be a validation-class error.
		if _, err := svc.Create(ctx, Identity{ID: "u1"}, in); !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: error not in validation class", tc.name)
		}
	}
}

func TestCreate_DoesNotMutateCallerOptions(t *testing.T) {
	svc, _, clock := newVotingFixture(t)

	options := []string{"  Yes  ", "", "No"}
	_, err := svc.Create(context.Background(), Identity{ID: "u1"}, VotingInput{
		Title: "t", Description: "d", Question: "q",
		StartDate: clock.t.Add(time.Hour), EndDate: clock.t.Add(2 * time.Hour),
		Options: options,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if options[0] != "  Yes  " || options[1] != "" || options[2] != "No" {
		t.Fatalf("caller's options slice mutated: %q", options)
	}
}

func TestCreate_AtomicWithOptions(t *testing.T) {
	svc, _, clock := newVotingFixture(t)
	v := openVoting(t, svc, clock, "u1")

	got, err := svc.Get(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Options) != 2 {
		t.Fatalf("options = %d; want 2", len(got.Options))
	}
	if !got.IsActive || got.CreatedBy != "u1" {
		t.Fatalf("unexpected voting fields: %+v", got)
	}
}

func TestSubmitVote_FanOutPerOwnedUnit(t *testing.T) {
	svc, props, clock := newVotingFixture(t)
	registerUnits(t, props, "alice", 3)
	v := openVoting(t, svc, clock, "creator")

	votes, err := svc.SubmitVote(context.Background(), Identity{ID: "alice"}, v.ID, optionID(t, v, "Yes"))
	if err != nil {
		t.Fatalf("SubmitVote: %v", err)
	}
	if len(votes) != 3 {
		t.Fatalf("votes = %d; want one per owned unit (3)", len(votes))
	}
	seen := map[string]bool{}
	for _, vote := range votes {
		if vote.OptionID != optionID(t, v, "Yes") {
			t.Fatalf("vote references wrong option: %+v", vote)
		}
		if !vote.VotedAt.Equal(votes[0].VotedAt) {
			t.Fatalf("fan-out timestamps differ")
		}
		if seen[vote.PropertyID] {
			t.Fatalf("same property voted twice in one fan-out")
		}
		seen[vote.PropertyID] = true
	}
}

func TestSubmitVote_SecondSubmissionFails_NoNewRows(t *testing.T) {
	svc, props, clock := newVotingFixture(t)
	registerUnits(t, props, "alice", 2)
	v := openVoting(t, svc, clock, "creator")
	ctx := context.Background()

	if _, err := svc.SubmitVote(ctx, Identity{ID: "alice"}, v.ID, optionID(t, v, "Yes")); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	// Second submission fails regardless of the chosen option, even one that
	// does not belong to the voting: having voted is checked first.
	if _, err := svc.SubmitVote(ctx, Identity{ID: "alice"}, v.ID, optionID(t, v, "No")); !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}
	if _, err := svc.SubmitVote(ctx, Identity{ID: "alice"}, v.ID, "not-an-option"); !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("already voted with unknown option: got %v, want ErrAlreadyVoted", err)
	}

	_, total, err := svc.Results(ctx, v.ID)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if total != 2 {
		t.Fatalf("total = %d; want 2 (failed call must not add rows)", total)
	}
}

func TestSubmitVote_Eligibility(t *testing.T) {
	svc, props, clock := newVotingFixture(t)
	v := openVoting(t, svc, clock, "creator")
	ctx := context.Background()

	if _, err := svc.SubmitVote(ctx, Identity{ID: "landless"}, v.ID, optionID(t, v, "Yes")); !errors.Is(err, ErrNoProperties) {
		t.Fatalf("expected ErrNoProperties, got %v", err)
	}

	registerUnits(t, props, "bob", 1)
	if _, err := svc.SubmitVote(ctx, Identity{ID: "bob"}, v.ID, "not-an-option"); !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("expected ErrInvalidOption, got %v", err)
	}
}

func TestSubmitVote_WindowAndActiveFlag(t *testing.T) {
	svc, props, clock := newVotingFixture(t)
	registerUnits(t, props, "alice", 1)
	ctx := context.Background()

	v, err := svc.Create(ctx, Identity{ID: "creator"}, VotingInput{
		Title: "t", Description: "d", Question: "q",
		StartDate: clock.t.Add(time.Hour), EndDate: clock.t.Add(2 * time.Hour),
		Options: []string{"a", "b"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	yes := v.Options[0].ID

	// Upcoming.
	if _, err := svc.SubmitVote(ctx, Identity{ID: "alice"}, v.ID, yes); !errors.Is(err, ErrVotingClosed) {
		t.Fatalf("upcoming voting accepted a vote: %v", err)
	}

	// Past end date.
	clock.advance(3 * time.Hour)
	if _, err := svc.SubmitVote(ctx, Identity{ID: "alice"}, v.ID, yes); !errors.Is(err, ErrVotingClosed) {
		t.Fatalf("ended voting accepted a vote: %v", err)
	}
	if !errors.Is(ErrVotingClosed, ErrState) {
		t.Fatalf("ErrVotingClosed not in state class")
	}

	// Deactivated inside the window.
	clock.t = v.StartDate.Add(time.Minute)
	if err := svc.DB.Model(&domain.Voting{}).Where("id = ?", v.ID).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := svc.SubmitVote(ctx, Identity{ID: "alice"}, v.ID, yes); !errors.Is(err, ErrVotingClosed) {
		t.Fatalf("deactivated voting accepted a vote: %v", err)
	}
}

func TestResults_PercentagesAndExampleScenario(t *testing.T) {
	svc, props, clock := newVotingFixture(t)
	// Account A owns #101 (45.5) and #102 (30.0).
	ctx := context.Background()
	for i, area := range []float64{45.5, 30.0} {
		if _, err := props.Register(ctx, Identity{ID: "A"}, PropertyInput{
			Number: fmt.Sprintf("10%d", i+1), Area: area, Street: "Sadovaya", HouseNumber: "12",
		}); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	v := openVoting(t, svc, clock, "creator")

	// No votes yet: every percentage is zero.
	results, total, err := svc.Results(ctx, v.ID)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if total != 0 {
		t.Fatalf("total = %d; want 0", total)
	}
	for id, r := range results {
		if r.Votes != 0 || r.Percentage != 0 {
			t.Fatalf("option %s non-zero with no votes: %+v", id, r)
		}
	}

	if _, err := svc.SubmitVote(ctx, Identity{ID: "A"}, v.ID, optionID(t, v, "Yes")); err != nil {
		t.Fatalf("SubmitVote: %v", err)
	}

	results, total, err = svc.Results(ctx, v.ID)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if total != 2 {
		t.Fatalf("total = %d; want 2", total)
	}
	yes := results[optionID(t, v, "Yes")]
	no := results[optionID(t, v, "No")]
	if yes.Votes != 2 || yes.Percentage != 100.0 {
		t.Fatalf("Yes = %+v; want 2 votes / 100.0%%", yes)
	}
	if no.Votes != 0 || no.Percentage != 0.0 {
		t.Fatalf("No = %+v; want 0 votes / 0.0%%", no)
	}
}

func TestResults_PercentagesSumToHundred(t *testing.T) {
	svc, props, clock := newVotingFixture(t)
	ctx := context.Background()
	voters := []struct {
		id    string
		units int
	}{{"a", 1}, {"b", 1}, {"c", 1}}
	for _, vr := range voters {
		registerUnits(t, props, vr.id, vr.units)
	}
	v := openVoting(t, svc, clock, "creator")

	// 2 Yes, 1 No -> 66.7 + 33.3.
	for i, vr := range voters {
		choice := "Yes"
		if i == 2 {
			choice = "No"
		}
		if _, err := svc.SubmitVote(ctx, Identity{ID: vr.id}, v.ID, optionID(t, v, choice)); err != nil {
			t.Fatalf("vote %s: %v", vr.id, err)
		}
	}

	results, total, err := svc.Results(ctx, v.ID)
	if err != nil || total != 3 {
		t.Fatalf("Results total = %d, %v; want 3", total, err)
	}
	var sum float64
	for _, r := range results {
		sum += r.Percentage
	}
	if math.Abs(sum-100.0) > 0.11 {
		t.Fatalf("percentages sum to %.2f; want 100 +- rounding", sum)
	}
	if got := results[optionID(t, v, "Yes")].Percentage; got != 66.7 {
		t.Fatalf("Yes = %.1f; want 66.7", got)
	}
}

func TestUpdateDelete_BlockedWhileOpen(t *testing.T) {
	svc, _, clock := newVotingFixture(t)
	v := openVoting(t, svc, clock, "u1") // clock is now inside the window
	ctx := context.Background()
	in := VotingInput{
		Title: "new", Description: "new", Question: "new",
		StartDate: clock.t.Add(time.Hour), EndDate: clock.t.Add(2 * time.Hour),
		Options: []string{"x", "y"},
	}

	if _, err := svc.Update(ctx, Identity{ID: "u1"}, v.ID, in); !errors.Is(err, ErrVotingOpen) {
		t.Fatalf("update of open voting: got %v, want ErrVotingOpen", err)
	}
	if err := svc.Delete(ctx, Identity{ID: "u1"}, v.ID); !errors.Is(err, ErrVotingOpen) {
		t.Fatalf("delete of open voting: got %v, want ErrVotingOpen", err)
	}

	// Deactivate -> no longer open -> both succeed.
	if err := svc.DB.Model(&domain.Voting{}).Where("id = ?", v.ID).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	updated, err := svc.Update(ctx, Identity{ID: "u1"}, v.ID, in)
	if err != nil {
		t.Fatalf("update of closed voting: %v", err)
	}
	if updated.Title != "new" || len(updated.Options) != 2 || updated.Options[0].Text != "x" {
		t.Fatalf("update did not replace fields/options: %+v", updated)
	}
	if err := svc.Delete(ctx, Identity{ID: "u1"}, v.ID); err != nil {
		t.Fatalf("delete of closed voting: %v", err)
	}
	if _, err := svc.Get(ctx, v.ID); !errors.Is(err, ErrVotingNotFound) {
		t.Fatalf("voting survived delete: %v", err)
	}
}

func TestUpdate_RejectedWhenVotesExist(t *testing.T) {
	svc, props, clock := newVotingFixture(t)
	registerUnits(t, props, "alice", 1)
	v := openVoting(t, svc, clock, "u1")
	ctx := context.Background()

	if _, err := svc.SubmitVote(ctx, Identity{ID: "alice"}, v.ID, optionID(t, v, "Yes")); err != nil {
		t.Fatalf("vote: %v", err)
	}
	// Close the voting; votes remain.
	clock.t = v.EndDate.Add(time.Hour)

	_, err := svc.Update(ctx, Identity{ID: "u1"}, v.ID, VotingInput{
		Title: "new", Description: "new", Question: "new",
		StartDate: clock.t.Add(time.Hour), EndDate: clock.t.Add(2 * time.Hour),
		Options: []string{"x", "y"},
	})
	if !errors.Is(err, ErrVotingHasVotes) {
		t.Fatalf("expected ErrVotingHasVotes, got %v", err)
	}
	// The recorded vote must survive the rejected edit.
	if _, total, err := svc.Results(ctx, v.ID); err != nil || total != 1 {
		t.Fatalf("votes lost after rejected edit: total=%d err=%v", total, err)
	}
}

func TestUpdateDelete_CreatorOnly(t *testing.T) {
	svc, _, clock := newVotingFixture(t)
	v := openVoting(t, svc, clock, "u1")
	clock.t = v.EndDate.Add(time.Hour) // closed
	ctx := context.Background()

	if err := svc.Delete(ctx, Identity{ID: "intruder"}, v.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-creator delete: got %v, want ErrForbidden", err)
	}
	// Admins may delete others' votings.
	if err := svc.Delete(ctx, Identity{ID: "root", IsAdmin: true}, v.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
}

func TestResultsBreakdown_Visibility(t *testing.T) {
	svc, props, clock := newVotingFixture(t)
	registerUnits(t, props, "alice", 1)
	registerUnits(t, props, "bob", 1)
	v := openVoting(t, svc, clock, "creator")
	ctx := context.Background()

	for _, u := range []string{"alice", "bob"} {
		if _, err := svc.SubmitVote(ctx, Identity{ID: u}, v.ID, optionID(t, v, "Yes")); err != nil {
			t.Fatalf("vote %s: %v", u, err)
		}
	}

	if rows, err := svc.ResultsBreakdown(ctx, Identity{}, v.ID); err != nil || rows != nil {
		t.Fatalf("anonymous breakdown = %v, %v; want empty", rows, err)
	}
	rows, err := svc.ResultsBreakdown(ctx, Identity{ID: "alice"}, v.ID)
	if err != nil || len(rows) != 1 || rows[0].OwnerID != "alice" {
		t.Fatalf("owner breakdown = %+v, %v; want alice's unit only", rows, err)
	}
	rows, err = svc.ResultsBreakdown(ctx, Identity{ID: "root", IsAdmin: true}, v.ID)
	if err != nil || len(rows) != 2 {
		t.Fatalf("admin breakdown = %+v, %v; want both units", rows, err)
	}
}

func TestDeleteVote_AdminOnly_AndResultsRecompute(t *testing.T) {
	svc, props, clock := newVotingFixture(t)
	registerUnits(t, props, "alice", 1)
	v := openVoting(t, svc, clock, "creator")
	ctx := context.Background()

	votes, err := svc.SubmitVote(ctx, Identity{ID: "alice"}, v.ID, optionID(t, v, "Yes"))
	if err != nil {
		t.Fatalf("vote: %v", err)
	}

	if err := svc.DeleteVote(ctx, Identity{ID: "alice"}, votes[0].ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-admin vote delete: got %v, want ErrForbidden", err)
	}
	if err := svc.DeleteVote(ctx, Identity{ID: "root", IsAdmin: true}, votes[0].ID); err != nil {
		t.Fatalf("admin vote delete: %v", err)
	}
	// Results are recomputed from rows, so the deletion shows immediately.
	if _, total, err := svc.Results(ctx, v.ID); err != nil || total != 0 {
		t.Fatalf("total = %d, %v; want 0 after admin deletion", total, err)
	}
	if err := svc.DeleteVote(ctx, Identity{ID: "root", IsAdmin: true}, votes[0].ID); !errors.Is(err, ErrVoteNotFound) {
		t.Fatalf("second delete: got %v, want ErrVoteNotFound", err)
	}
}

func TestUserVote(t *testing.T) {
	svc, props, clock := newVotingFixture(t)
	registerUnits(t, props, "alice", 2)
	v := openVoting(t, svc, clock, "creator")
	ctx := context.Background()

	if _, err := svc.UserVote(ctx, Identity{ID: "alice"}, v.ID); !errors.Is(err, ErrVoteNotFound) {
		t.Fatalf("expected ErrVoteNotFound before voting, got %v", err)
	}
	if _, err := svc.SubmitVote(ctx, Identity{ID: "alice"}, v.ID, optionID(t, v, "No")); err != nil {
		t.Fatalf("vote: %v", err)
	}
	got, err := svc.UserVote(ctx, Identity{ID: "alice"}, v.ID)
	if err != nil {
		t.Fatalf("UserVote: %v", err)
	}
	if got.OptionID != optionID(t, v, "No") {
		t.Fatalf("UserVote option mismatch: %+v", got)
	}
}
