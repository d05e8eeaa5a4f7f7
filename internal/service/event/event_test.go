package event_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Alijeyrad/simorq_booking/internal/domain"
	"github.com/Alijeyrad/simorq_booking/internal/repo"
	"github.com/Alijeyrad/simorq_booking/internal/repo/repotest"
	"github.com/Alijeyrad/simorq_booking/internal/service/event"
	"github.com/Alijeyrad/simorq_booking/internal/settings"
)

var (
	// 2024-01-10 is a Wednesday.
	day   = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	until = time.Date(2024, 1, 31, 23, 59, 0, 0, time.UTC)
)

func newService(t *testing.T, maxOccurrences int) (event.Service, *repo.Client) {
	t.Helper()
	db := repotest.Open(t)
	store := settings.Static{Location: time.UTC, MaxRecurringOccurrences: maxOccurrences}
	return event.New(db, store, event.WithClock(func() time.Time { return day })), db
}

func weekly(start time.Time, hours int, until time.Time) *domain.Event {
	return &domain.Event{
		Name:        "Pottery class",
		Description: "Wheel throwing for beginners",
		Price:       40,
		MaxCapacity: 8,
		Providers:   []int64{7},
		Tags:        []*domain.EventTag{{Name: "craft"}},
		Recurring:   &domain.Recurring{Cycle: domain.CycleWeekly, Until: until},
		Periods: []*domain.EventPeriod{{
			PeriodStart: start,
			PeriodEnd:   start.Add(time.Duration(hours) * time.Hour),
		}},
	}
}

// addChain creates the default four event chain from 2024-01-10 to
// 2024-01-31 and returns it reloaded from the database.
func addChain(t *testing.T, svc event.Service, db *repo.Client) []*domain.Event {
	t.Helper()
	added, err := svc.Add(context.Background(), weekly(day.Add(10*time.Hour), 2, until))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	return chain(t, db, added[0].ID)
}

func chain(t *testing.T, db *repo.Client, rootID int64) []*domain.Event {
	t.Helper()
	out, err := db.Event.Chain(context.Background(), rootID)
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}
	return out
}

func reload(t *testing.T, db *repo.Client, id int64) *domain.Event {
	t.Helper()
	e, err := db.Event.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get %d: %v", id, err)
	}
	return e
}

func parentOf(e *domain.Event) int64 {
	if e.ParentID == nil {
		return 0
	}
	return *e.ParentID
}

func TestAddBuildsWeeklyChain(t *testing.T) {
	svc, db := newService(t, 0)
	got := addChain(t, svc, db)

	if len(got) != 4 {
		t.Fatalf("chain length = %d, want 4", len(got))
	}
	root := got[0]
	for i, e := range got {
		wantStart := day.Add(10*time.Hour).AddDate(0, 0, 7*i)
		if !e.Start().Equal(wantStart) {
			t.Errorf("event %d start = %v, want %v", i, e.Start(), wantStart)
		}
		if e.Recurring == nil || e.Recurring.Order != i+1 {
			t.Errorf("event %d recurring = %+v, want order %d", i, e.Recurring, i+1)
		}
		if e.Status != domain.StatusApproved {
			t.Errorf("event %d status = %s", i, e.Status)
		}
		if len(e.Tags) != 1 || e.Tags[0].Name != "craft" || len(e.Providers) != 1 {
			t.Errorf("event %d tags/providers = %+v / %v", i, e.Tags, e.Providers)
		}
		if i == 0 {
			if e.ParentID != nil {
				t.Errorf("origin parent = %d, want nil", *e.ParentID)
			}
			continue
		}
		if parentOf(e) != root.ID {
			t.Errorf("event %d parent = %d, want %d", i, parentOf(e), root.ID)
		}
	}
}

func TestAddRollsBackWhenChainTooLong(t *testing.T) {
	svc, db := newService(t, 3)
	_, err := svc.Add(context.Background(), weekly(day.Add(10*time.Hour), 2, until))
	if !errors.Is(err, domain.ErrTooManyOccurrences) {
		t.Fatalf("err = %v, want ErrTooManyOccurrences", err)
	}

	left, err := db.Event.ApprovedStartingBetween(context.Background(), day, day.AddDate(0, 2, 0))
	if err != nil {
		t.Fatalf("ApprovedStartingBetween: %v", err)
	}
	if len(left) != 0 {
		t.Errorf("%d events persisted after rollback", len(left))
	}
}

func TestAddRejectsInvalidEvents(t *testing.T) {
	svc, _ := newService(t, 0)
	ctx := context.Background()

	noPeriods := weekly(day, 1, until)
	noPeriods.Periods = nil
	if _, err := svc.Add(ctx, noPeriods); !errors.Is(err, event.ErrInvalidEvent) {
		t.Errorf("no periods: err = %v", err)
	}

	backwards := weekly(day, 1, until)
	backwards.Periods[0].PeriodEnd = day.Add(-time.Hour)
	if _, err := svc.Add(ctx, backwards); !errors.Is(err, domain.ErrInvalidInterval) {
		t.Errorf("backwards period: err = %v", err)
	}

	badCycle := weekly(day, 1, until)
	badCycle.Recurring.Cycle = "fortnightly"
	if _, err := svc.Add(ctx, badCycle); !errors.Is(err, domain.ErrUnknownCycle) {
		t.Errorf("bad cycle: err = %v", err)
	}
}

func TestUpdateChangesUntil(t *testing.T) {
	tests := []struct {
		name        string
		until       time.Time
		wantAdded   int
		wantDeleted int
		wantLength  int
	}{
		{name: "extend", until: time.Date(2024, 2, 7, 23, 0, 0, 0, time.UTC), wantAdded: 1, wantLength: 5},
		{name: "extend two weeks", until: time.Date(2024, 2, 14, 23, 0, 0, 0, time.UTC), wantAdded: 2, wantLength: 6},
		{name: "shorten", until: time.Date(2024, 1, 17, 23, 0, 0, 0, time.UTC), wantDeleted: 2, wantLength: 2},
		{name: "unchanged", until: until, wantLength: 4},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, db := newService(t, 0)
			members := addChain(t, svc, db)
			origin := members[0]

			updated := origin.Clone()
			updated.Recurring.Until = tc.until
			res, err := svc.Update(context.Background(), origin, updated, true)
			if err != nil {
				t.Fatalf("Update: %v", err)
			}
			if len(res.Added) != tc.wantAdded || len(res.Deleted) != tc.wantDeleted {
				t.Errorf("added/deleted = %d/%d, want %d/%d", len(res.Added), len(res.Deleted), tc.wantAdded, tc.wantDeleted)
			}
			if len(res.Rescheduled) != 0 {
				t.Errorf("rescheduled = %d, want 0", len(res.Rescheduled))
			}

			got := chain(t, db, origin.ID)
			if len(got) != tc.wantLength {
				t.Fatalf("chain length = %d, want %d", len(got), tc.wantLength)
			}
			for i, e := range got {
				if e.Recurring.Order != i+1 || !e.Recurring.Until.Equal(tc.until) {
					t.Errorf("event %d recurring = %+v", i, e.Recurring)
				}
				wantStart := day.Add(10*time.Hour).AddDate(0, 0, 7*i)
				if !e.Start().Equal(wantStart) {
					t.Errorf("event %d start = %v, want %v", i, e.Start(), wantStart)
				}
			}
		})
	}
}

func TestUpdateReschedulesFollowers(t *testing.T) {
	svc, db := newService(t, 0)
	members := addChain(t, svc, db)
	origin := members[0]

	updated := origin.Clone()
	updated.Periods[0].PeriodStart = day.Add(14 * time.Hour)
	updated.Periods[0].PeriodEnd = day.Add(16 * time.Hour)
	res, err := svc.Update(context.Background(), origin, updated, true)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(res.Rescheduled) != 4 {
		t.Errorf("rescheduled = %d, want 4", len(res.Rescheduled))
	}
	if len(res.Cloned) != 4 {
		t.Errorf("cloned = %d, want 4", len(res.Cloned))
	}
	if !res.Cloned[1].Start().Equal(members[1].Start()) {
		t.Errorf("clone keeps pre-update start: got %v, want %v", res.Cloned[1].Start(), members[1].Start())
	}

	got := chain(t, db, origin.ID)
	if len(got) != 4 {
		t.Fatalf("chain length = %d, want 4", len(got))
	}
	for i, e := range got {
		wantStart := day.Add(14*time.Hour).AddDate(0, 0, 7*i)
		if !e.Start().Equal(wantStart) {
			t.Errorf("event %d start = %v, want %v", i, e.Start(), wantStart)
		}
		if e.Periods[0].ID != members[i].Periods[0].ID {
			t.Errorf("event %d period id = %d, want %d", i, e.Periods[0].ID, members[i].Periods[0].ID)
		}
	}
}

func TestUpdateFollowerStartsNewChain(t *testing.T) {
	svc, db := newService(t, 0)
	members := addChain(t, svc, db)
	third := members[2]

	updated := third.Clone()
	updated.Periods[0].PeriodStart = third.Start().Add(4 * time.Hour)
	updated.Periods[0].PeriodEnd = third.Start().Add(6 * time.Hour)
	if _, err := svc.Update(context.Background(), third, updated, true); err != nil {
		t.Fatalf("Update: %v", err)
	}

	newStart := third.Start().Add(4 * time.Hour)
	for _, e := range members[:2] {
		got := reload(t, db, e.ID)
		if !got.Recurring.Until.Equal(newStart) {
			t.Errorf("event %d until = %v, want %v", e.ID, got.Recurring.Until, newStart)
		}
		if !got.Start().Equal(e.Start()) {
			t.Errorf("event %d moved to %v", e.ID, got.Start())
		}
	}

	head := reload(t, db, third.ID)
	if head.ParentID != nil || head.Recurring.Order != 1 {
		t.Errorf("new origin parent/order = %v/%d", head.ParentID, head.Recurring.Order)
	}
	last := reload(t, db, members[3].ID)
	if parentOf(last) != third.ID || last.Recurring.Order != 2 {
		t.Errorf("follower parent/order = %d/%d, want %d/2", parentOf(last), last.Recurring.Order, third.ID)
	}
	if want := members[3].Start().Add(4 * time.Hour); !last.Start().Equal(want) {
		t.Errorf("follower start = %v, want %v", last.Start(), want)
	}
}

func TestUpdateSingleFollowerDetachesFromChain(t *testing.T) {
	svc, db := newService(t, 0)
	members := addChain(t, svc, db)
	second := members[1]

	updated := second.Clone()
	updated.Periods[0].PeriodStart = second.Start().Add(3 * time.Hour)
	updated.Periods[0].PeriodEnd = second.Start().Add(5 * time.Hour)
	if _, err := svc.Update(context.Background(), second, updated, false); err != nil {
		t.Fatalf("Update: %v", err)
	}

	moved := reload(t, db, second.ID)
	if moved.ParentID != nil || moved.Recurring.Order != 1 {
		t.Errorf("moved event parent/order = %d/%d, want 0/1", parentOf(moved), moved.Recurring.Order)
	}

	rest := chain(t, db, members[0].ID)
	if len(rest) != 3 {
		t.Fatalf("chain length = %d, want 3", len(rest))
	}
	prev := 0
	for _, e := range rest {
		if e.ID == second.ID {
			t.Errorf("moved event %d still in the chain", e.ID)
		}
		if e.Recurring.Order <= prev {
			t.Errorf("event %d order = %d after %d", e.ID, e.Recurring.Order, prev)
		}
		prev = e.Recurring.Order
		if e.ID != members[0].ID && parentOf(e) != members[0].ID {
			t.Errorf("event %d parent = %d, want %d", e.ID, parentOf(e), members[0].ID)
		}
	}
}

func TestUpdateOriginStopsRecurring(t *testing.T) {
	svc, db := newService(t, 0)
	members := addChain(t, svc, db)
	origin := members[0]

	updated := origin.Clone()
	updated.Recurring = nil
	if _, err := svc.Update(context.Background(), origin, updated, false); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if got := reload(t, db, origin.ID); got.Recurring != nil || got.ParentID != nil {
		t.Errorf("former origin recurring/parent = %+v/%v", got.Recurring, got.ParentID)
	}
	if got := reload(t, db, members[1].ID); got.ParentID != nil {
		t.Errorf("promoted origin parent = %d, want nil", *got.ParentID)
	}
	for _, e := range members[2:] {
		if got := reload(t, db, e.ID); parentOf(got) != members[1].ID {
			t.Errorf("event %d parent = %d, want %d", e.ID, parentOf(got), members[1].ID)
		}
	}
}

func TestUpdateCopiesDescriptionToClones(t *testing.T) {
	svc, db := newService(t, 0)
	members := addChain(t, svc, db)
	origin := members[0]

	updated := origin.Clone()
	updated.Description = "Glazing week"
	updated.ZoomUserID = "zoom-host"
	res, err := svc.Update(context.Background(), origin, updated, true)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	for _, c := range res.Cloned {
		if c.Description != "Glazing week" || c.ZoomUserID != "zoom-host" {
			t.Errorf("clone %d description/zoom = %q/%q", c.ID, c.Description, c.ZoomUserID)
		}
	}
}

func addBooking(t *testing.T, db *repo.Client, e *domain.Event) *domain.CustomerBooking {
	t.Helper()
	ctx := context.Background()
	b := &domain.CustomerBooking{CustomerID: 3, Status: domain.StatusApproved, Persons: 2, Price: 40}
	if err := db.Booking.Create(ctx, b); err != nil {
		t.Fatalf("create booking: %v", err)
	}
	if err := db.Booking.LinkEventPeriods(ctx, b.ID, []int64{e.Periods[0].ID}); err != nil {
		t.Fatalf("link periods: %v", err)
	}
	if err := db.Payment.Create(ctx, &domain.Payment{
		CustomerBookingID: b.ID,
		Amount:            80,
		DateTime:          day,
		Status:            domain.PaymentPending,
		Gateway:           domain.GatewayOnSite,
	}); err != nil {
		t.Fatalf("create payment: %v", err)
	}
	return b
}

func TestUpdateStatusCascadesToFollowers(t *testing.T) {
	svc, db := newService(t, 0)
	ctx := context.Background()
	members := addChain(t, svc, db)
	booking := addBooking(t, db, members[2])

	second := reload(t, db, members[1].ID)
	updated, err := svc.UpdateStatus(ctx, second, domain.StatusRejected, true)
	if err != nil {
		t.Fatalf("UpdateStatus reject: %v", err)
	}
	if len(updated) != 3 {
		t.Fatalf("updated = %d events, want 3", len(updated))
	}
	third := updated[1]
	if len(third.Bookings) != 1 || !third.Bookings[0].ChangedStatus || third.Bookings[0].Status != domain.StatusRejected {
		t.Errorf("third bookings = %+v", third.Bookings)
	}
	if b, err := db.Booking.Get(ctx, booking.ID); err != nil || b.Status != domain.StatusRejected {
		t.Errorf("stored booking = %+v, %v", b, err)
	}
	if got := reload(t, db, members[0].ID); got.Status != domain.StatusApproved {
		t.Errorf("origin status = %s, want approved", got.Status)
	}

	second = reload(t, db, members[1].ID)
	updated, err = svc.UpdateStatus(ctx, second, domain.StatusApproved, true)
	if err != nil {
		t.Fatalf("UpdateStatus approve: %v", err)
	}
	if len(updated) != 3 {
		t.Errorf("re-approved = %d events, want 3", len(updated))
	}
	for _, e := range members[1:] {
		if got := reload(t, db, e.ID); got.Status != domain.StatusApproved {
			t.Errorf("event %d status = %s", e.ID, got.Status)
		}
	}

	if _, err := svc.UpdateStatus(ctx, second, domain.StatusPending, false); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("pending: err = %v, want ErrInvalidArgument", err)
	}
}

func TestDeleteOriginReanchorsChain(t *testing.T) {
	svc, db := newService(t, 0)
	members := addChain(t, svc, db)

	ok, err := svc.Delete(context.Background(), members[0], false)
	if err != nil || !ok {
		t.Fatalf("Delete = %v, %v", ok, err)
	}
	if _, err := db.Event.Get(context.Background(), members[0].ID); !repo.IsNotFound(err) {
		t.Errorf("origin still present: %v", err)
	}

	head := reload(t, db, members[1].ID)
	if head.ParentID != nil {
		t.Errorf("new origin parent = %d", *head.ParentID)
	}
	if got := chain(t, db, head.ID); len(got) != 3 {
		t.Errorf("new chain length = %d, want 3", len(got))
	}
}

func TestDeleteFollowingRewindsUntil(t *testing.T) {
	svc, db := newService(t, 0)
	ctx := context.Background()
	members := addChain(t, svc, db)

	if _, err := svc.UpdateStatus(ctx, reload(t, db, members[2].ID), domain.StatusRejected, true); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if _, err := svc.Delete(ctx, reload(t, db, members[2].ID), true); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	got := chain(t, db, members[0].ID)
	if len(got) != 2 {
		t.Fatalf("chain length = %d, want 2", len(got))
	}
	for _, e := range got {
		if !e.Recurring.Until.Equal(members[2].Start()) {
			t.Errorf("event %d until = %v, want %v", e.ID, e.Recurring.Until, members[2].Start())
		}
	}
}

func TestDeleteFollowingKeepsUntilWithApprovedFollowers(t *testing.T) {
	svc, db := newService(t, 0)
	ctx := context.Background()
	members := addChain(t, svc, db)

	if _, err := svc.Delete(ctx, reload(t, db, members[1].ID), true); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	got := chain(t, db, members[0].ID)
	if len(got) != 3 {
		t.Fatalf("chain length = %d, want 3", len(got))
	}
	for _, e := range got {
		if !e.Recurring.Until.Equal(until) {
			t.Errorf("event %d until = %v, want %v", e.ID, e.Recurring.Until, until)
		}
	}
}

func TestDeleteOriginLeavesNoDanglingParents(t *testing.T) {
	tests := []struct {
		name     string
		rejected []int
		// wantParent maps member index to its expected parent member index,
		// -1 for none.
		wantParent map[int]int
	}{
		{
			name:       "rejected member before the new origin",
			rejected:   []int{1},
			wantParent: map[int]int{1: -1, 2: -1, 3: 2},
		},
		{
			name:       "no approved member left",
			rejected:   []int{1, 2, 3},
			wantParent: map[int]int{1: -1, 2: 1, 3: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, db := newService(t, 0)
			ctx := context.Background()
			members := addChain(t, svc, db)
			for _, i := range tt.rejected {
				if _, err := svc.UpdateStatus(ctx, reload(t, db, members[i].ID), domain.StatusRejected, false); err != nil {
					t.Fatalf("UpdateStatus: %v", err)
				}
			}

			if _, err := svc.Delete(ctx, reload(t, db, members[0].ID), false); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			for i, p := range tt.wantParent {
				want := int64(0)
				if p >= 0 {
					want = members[p].ID
				}
				if got := parentOf(reload(t, db, members[i].ID)); got != want {
					t.Errorf("member %d parent = %d, want %d", i, got, want)
				}
			}
		})
	}
}

func TestDeleteRemovesBookingsAndPayments(t *testing.T) {
	svc, db := newService(t, 0)
	ctx := context.Background()
	members := addChain(t, svc, db)
	booking := addBooking(t, db, members[3])

	if _, err := svc.Delete(ctx, reload(t, db, members[3].ID), false); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := db.Booking.Get(ctx, booking.ID); !repo.IsNotFound(err) {
		t.Errorf("booking still present: %v", err)
	}
	payments, err := db.Payment.ByBookings(ctx, []int64{booking.ID})
	if err != nil || len(payments) != 0 {
		t.Errorf("payments = %v, %v", payments, err)
	}
	if got := chain(t, db, members[0].ID); len(got) != 3 {
		t.Errorf("chain length = %d, want 3", len(got))
	}
}

func TestRemoveSlotsFromEvents(t *testing.T) {
	svc, _ := newService(t, 0)
	ctx := context.Background()

	multiDay := &domain.Event{
		Name:      "Retreat",
		Providers: []int64{7},
		Periods: []*domain.EventPeriod{{
			PeriodStart: day.Add(10 * time.Hour),
			PeriodEnd:   day.AddDate(0, 0, 2).Add(12 * time.Hour),
		}},
	}
	if _, err := svc.Add(ctx, multiDay); err != nil {
		t.Fatalf("Add: %v", err)
	}

	window := domain.TimeInterval{Start: day.AddDate(0, 0, -1), End: day.AddDate(0, 1, 0)}
	blocks, err := svc.RemoveSlotsFromEvents(ctx, []*domain.Provider{{ID: 7}, {ID: 8}}, window)
	if err != nil {
		t.Fatalf("RemoveSlotsFromEvents: %v", err)
	}
	if len(blocks[8]) != 0 {
		t.Errorf("provider 8 blocks = %v, want none", blocks[8])
	}
	if len(blocks[7]) != 3 {
		t.Fatalf("provider 7 blocks = %v, want 3", blocks[7])
	}
	for i, b := range blocks[7] {
		start := day.AddDate(0, 0, i).Add(10 * time.Hour)
		if !b.Start.Equal(start) || !b.End.Equal(start.Add(2*time.Hour)) {
			t.Errorf("block %d = %v - %v", i, b.Start, b.End)
		}
	}
}
