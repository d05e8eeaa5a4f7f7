package event

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/Alijeyrad/simorq_booking/internal/domain"
	"github.com/Alijeyrad/simorq_booking/internal/repo"
	"github.com/Alijeyrad/simorq_booking/internal/settings"
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

// UpdateResult reports what an update did to the chain. Cloned holds the
// state of every touched event before the update, in visit order.
type UpdateResult struct {
	Rescheduled []*domain.Event `json:"rescheduled"`
	Added       []*domain.Event `json:"added"`
	Deleted     []*domain.Event `json:"deleted"`
	Cloned      []*domain.Event `json:"cloned"`
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	Get(ctx context.Context, id int64) (*domain.Event, error)
	Add(ctx context.Context, e *domain.Event) ([]*domain.Event, error)
	Update(ctx context.Context, oldEvent, newEvent *domain.Event, updateFollowing bool) (*UpdateResult, error)
	UpdateStatus(ctx context.Context, e *domain.Event, status domain.BookingStatus, updateFollowing bool) ([]*domain.Event, error)
	Delete(ctx context.Context, e *domain.Event, deleteFollowing bool) (bool, error)

	// RemoveSlotsFromEvents returns, per provider, the time held by
	// approved events in window.
	RemoveSlotsFromEvents(ctx context.Context, providers []*domain.Provider, window domain.TimeInterval) (map[int64][]domain.TimeInterval, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type eventService struct {
	db    *repo.Client
	store settings.Store
	now   func() time.Time
}

type Option func(*eventService)

func WithClock(now func() time.Time) Option {
	return func(s *eventService) { s.now = now }
}

func New(db *repo.Client, store settings.Store, opts ...Option) Service {
	s := &eventService{db: db, store: store, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *eventService) Get(ctx context.Context, id int64) (*domain.Event, error) {
	e, err := s.db.Use(ctx).Event.Get(ctx, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// ---------------------------------------------------------------------------
// Add
// ---------------------------------------------------------------------------

func (s *eventService) Add(ctx context.Context, e *domain.Event) ([]*domain.Event, error) {
	if err := validate(e); err != nil {
		return nil, err
	}
	set, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	var added []*domain.Event
	err = repo.WithTx(ctx, s.db, func(ctx context.Context, tx *repo.Tx) error {
		e.ParentID = nil
		if e.Recurring != nil {
			e.Recurring.Order = 1
		}
		if err := s.addSingle(ctx, tx.Client, e); err != nil {
			return err
		}
		added = append(added, e)
		if e.Recurring == nil {
			return nil
		}

		sets, err := domain.RecurringPeriods(*e.Recurring, e.Periods, set.MaxRecurringOccurrences)
		if err != nil {
			return err
		}
		rootID := e.ID
		for i, periods := range sets {
			next := followerOf(e, i+2)
			next.ParentID = &rootID
			next.Periods = periods
			if err := s.addSingle(ctx, tx.Client, next); err != nil {
				return err
			}
			added = append(added, next)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("add event: %w", err)
	}
	return added, nil
}

// followerOf copies origin into a new unsaved chain member.
func followerOf(origin *domain.Event, order int) *domain.Event {
	next := origin.Clone()
	next.ID = 0
	next.Bookings = nil
	next.Recurring.Order = order
	next.Tags = lo.Map(origin.Tags, func(t *domain.EventTag, _ int) *domain.EventTag {
		return &domain.EventTag{Name: t.Name}
	})
	next.Gallery = lo.Map(origin.Gallery, func(g *domain.GalleryImage, _ int) *domain.GalleryImage {
		return &domain.GalleryImage{URL: g.URL, Position: g.Position}
	})
	return next
}

func (s *eventService) addSingle(ctx context.Context, db *repo.Client, e *domain.Event) error {
	e.Status = domain.StatusApproved
	e.NotifyParticipants = true
	e.Created = s.now().UTC()

	if err := db.Event.CreateRow(ctx, e); err != nil {
		return err
	}
	for _, p := range e.Periods {
		p.EventID = e.ID
		if err := db.Event.CreatePeriod(ctx, p); err != nil {
			return err
		}
	}
	if err := db.Event.ReplaceTags(ctx, e.ID, e.Tags); err != nil {
		return err
	}
	if err := db.Event.ReplaceProviders(ctx, e.ID, e.Providers); err != nil {
		return err
	}
	for _, g := range e.Gallery {
		g.EventID = e.ID
		if err := db.Event.AddGalleryImage(ctx, g); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Update
// ---------------------------------------------------------------------------

// clones keeps the first snapshot of each event id.
type clones struct {
	seen  map[int64]bool
	items []*domain.Event
}

func (c *clones) add(e *domain.Event) {
	if c.seen[e.ID] {
		return
	}
	c.seen[e.ID] = true
	c.items = append(c.items, e.Clone())
}

func (s *eventService) Update(ctx context.Context, oldEvent, newEvent *domain.Event, updateFollowing bool) (*UpdateResult, error) {
	if err := validate(newEvent); err != nil {
		return nil, err
	}
	set, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	res := &UpdateResult{}
	cloned := &clones{seen: map[int64]bool{}}

	err = repo.WithTx(ctx, s.db, func(ctx context.Context, tx *repo.Tx) error {
		db := tx.Client
		cloned.add(oldEvent)

		root := oldEvent.ChainRoot()
		isNewRecurring := separateRecurrence(newEvent, oldEvent)
		isRescheduled := !domain.PeriodsEqual(newEvent.Periods, oldEvent.Periods)
		// A new recurrence detaches the event as the origin of its own chain.
		if isNewRecurring {
			newEvent.Recurring.Order = 1
			newEvent.ParentID = nil
		}
		if isRescheduled {
			res.Rescheduled = append(res.Rescheduled, newEvent)
		}

		if newEvent.Recurring == nil {
			newEvent.ParentID = nil
		}
		if err := s.updateSingle(ctx, db, oldEvent, newEvent, false); err != nil {
			return err
		}

		// An origin that stops recurring hands the chain to its first follower.
		if newEvent.Recurring == nil && oldEvent.Recurring != nil && oldEvent.ParentID == nil {
			if err := s.promoteFirstFollower(ctx, db, newEvent.ID, cloned); err != nil {
				return err
			}
		}

		if updateFollowing && newEvent.Recurring != nil {
			if err := s.updateFollowing(ctx, db, set, root, oldEvent, newEvent, isNewRecurring, isRescheduled, cloned, res); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}

	if newEvent.ZoomUserID != "" && oldEvent.ZoomUserID == "" {
		for _, e := range cloned.items {
			e.ZoomUserID = newEvent.ZoomUserID
		}
	}
	if newEvent.Description != "" &&
		(newEvent.Description != oldEvent.Description || newEvent.Name != oldEvent.Name) {
		for _, e := range cloned.items {
			e.Description = newEvent.Description
		}
	}
	res.Cloned = cloned.items
	return res, nil
}

func (s *eventService) promoteFirstFollower(ctx context.Context, db *repo.Client, originID int64, cloned *clones) error {
	chain, err := db.Event.Chain(ctx, originID)
	if err != nil {
		return err
	}
	var first *int64
	for _, f := range chain {
		cloned.add(f)
		if f.ID <= originID {
			continue
		}
		if err := db.Event.UpdateParent(ctx, f.ID, first); err != nil {
			return err
		}
		if first == nil {
			id := f.ID
			first = &id
		}
	}
	return nil
}

func (s *eventService) updateFollowing(
	ctx context.Context,
	db *repo.Client,
	set *settings.Settings,
	root int64,
	oldEvent, newEvent *domain.Event,
	isNewRecurring, isRescheduled bool,
	cloned *clones,
	res *UpdateResult,
) error {
	chain, err := db.Event.Chain(ctx, root)
	if err != nil {
		return err
	}
	if len(chain) == 0 {
		return nil
	}

	pattern := chain[0].Periods
	if isNewRecurring {
		pattern = newEvent.Periods
	}
	originPeriods := domain.ClonePeriods(pattern, false)
	if len(originPeriods) == 0 {
		return ErrInvalidEvent
	}
	until := newEvent.Recurring.Until
	order := newEvent.Recurring.Order

	for _, f := range chain {
		cloned.add(f)

		if f.ID < newEvent.ID && f.Recurring != nil {
			f.Recurring.Until = until
			if isNewRecurring {
				f.Recurring.Until = newEvent.Periods[0].PeriodStart
			}
			if err := s.updateSingle(ctx, db, f, f, true); err != nil {
				return err
			}
		}

		if f.ID <= newEvent.ID {
			continue
		}

		nextOrder := order + 1
		if f.Recurring != nil {
			nextOrder = f.Recurring.Order
		}
		if isNewRecurring {
			order++
			nextOrder = order
		}
		f.Recurring = &domain.Recurring{Cycle: newEvent.Recurring.Cycle, Until: until, Order: nextOrder}

		previous := domain.ClonePeriods(f.Periods, true)
		if err := domain.BuildFollowingEvent(f, newEvent, originPeriods); err != nil {
			return err
		}
		if isRescheduled && f.Status == domain.StatusApproved {
			res.Rescheduled = append(res.Rescheduled, f)
		}

		if f.Periods[0].PeriodStart.After(until) {
			if err := s.deleteEvent(ctx, db, f); err != nil {
				return err
			}
			res.Deleted = append(res.Deleted, f)
			continue
		}
		if isNewRecurring {
			f.ParentID = &newEvent.ID
		}
		before := f.Clone()
		before.Periods = previous
		if err := s.updateSingle(ctx, db, before, f, false); err != nil {
			return err
		}
	}

	return s.extendChain(ctx, db, set, chain[len(chain)-1], newEvent, originPeriods, isNewRecurring, res)
}

// extendChain appends members after last until the next occurrence would
// start after until.
func (s *eventService) extendChain(
	ctx context.Context,
	db *repo.Client,
	set *settings.Settings,
	last, newEvent *domain.Event,
	originPeriods []*domain.EventPeriod,
	isNewRecurring bool,
	res *UpdateResult,
) error {
	if last.Recurring == nil || len(last.Periods) == 0 {
		return nil
	}
	until := newEvent.Recurring.Until
	lastOrder := last.Recurring.Order
	lastStart := last.Periods[0].PeriodStart

	parentID := newEvent.ID
	if !isNewRecurring && newEvent.ParentID != nil {
		parentID = *newEvent.ParentID
	}

	for !lastStart.After(until) {
		lastOrder++
		next := &domain.Event{
			Name:        newEvent.Name,
			Description: newEvent.Description,
			Price:       newEvent.Price,
			ZoomUserID:  newEvent.ZoomUserID,
			Recurring:   &domain.Recurring{Cycle: newEvent.Recurring.Cycle, Until: until, Order: lastOrder},
			Periods:     domain.ClonePeriods(originPeriods, false),
		}
		if err := domain.BuildFollowingEvent(next, newEvent, domain.ClonePeriods(originPeriods, false)); err != nil {
			return err
		}
		next.ParentID = &parentID

		lastStart = next.Periods[0].PeriodStart
		if lastStart.After(until) {
			break
		}
		if set.MaxRecurringOccurrences > 0 && lastOrder > set.MaxRecurringOccurrences {
			return domain.ErrTooManyOccurrences
		}
		for _, p := range next.Periods {
			p.ID = 0
			p.ZoomMeetingID = ""
		}
		if err := s.addSingle(ctx, db, next); err != nil {
			return err
		}
		res.Added = append(res.Added, next)
	}
	return nil
}

// updateSingle persists newEvent over oldEvent. Previous chain members only
// get their row rewritten; tags and providers are left alone.
func (s *eventService) updateSingle(ctx context.Context, db *repo.Client, oldEvent, newEvent *domain.Event, isPrevious bool) error {
	if !isPrevious {
		if err := db.Event.ReplaceTags(ctx, newEvent.ID, newEvent.Tags); err != nil {
			return err
		}
		if err := db.Event.ReplaceProviders(ctx, newEvent.ID, newEvent.Providers); err != nil {
			return err
		}
	}

	newEvent.Status = oldEvent.Status
	newEvent.NotifyParticipants = true

	kept := make([]int64, 0, len(newEvent.Periods))
	for _, p := range newEvent.Periods {
		p.EventID = newEvent.ID
		if p.ID != 0 {
			kept = append(kept, p.ID)
			if err := db.Event.UpdatePeriod(ctx, p); err != nil {
				return err
			}
			continue
		}
		if err := db.Event.CreatePeriod(ctx, p); err != nil {
			return err
		}
	}
	oldIDs := lo.Map(oldEvent.Periods, func(p *domain.EventPeriod, _ int) int64 { return p.ID })
	if err := db.Event.DeletePeriods(ctx, lo.Without(oldIDs, kept...)); err != nil {
		return err
	}

	if !isPrevious {
		if err := db.Event.DeleteGallery(ctx, newEvent.ID); err != nil {
			return err
		}
		for _, g := range newEvent.Gallery {
			g.EventID = newEvent.ID
			if err := db.Event.AddGalleryImage(ctx, g); err != nil {
				return err
			}
		}
	}
	return db.Event.UpdateRow(ctx, newEvent)
}

// separateRecurrence reports whether newEvent starts a recurrence of its
// own: its periods or its cycle changed.
func separateRecurrence(newEvent, oldEvent *domain.Event) bool {
	if newEvent.Recurring == nil {
		return false
	}
	if !domain.PeriodsEqual(newEvent.Periods, oldEvent.Periods) {
		return true
	}
	return oldEvent.Recurring == nil || newEvent.Recurring.Cycle != oldEvent.Recurring.Cycle
}

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

func (s *eventService) UpdateStatus(ctx context.Context, e *domain.Event, status domain.BookingStatus, updateFollowing bool) ([]*domain.Event, error) {
	if status != domain.StatusApproved && status != domain.StatusRejected {
		return nil, fmt.Errorf("%w: event status %q", domain.ErrInvalidArgument, status)
	}

	var updated []*domain.Event
	err := repo.WithTx(ctx, s.db, func(ctx context.Context, tx *repo.Tx) error {
		db := tx.Client
		if e.Status != status {
			if err := s.setStatus(ctx, db, e, status); err != nil {
				return err
			}
			updated = append(updated, e)
		}
		if !updateFollowing {
			return nil
		}

		chain, err := db.Event.Chain(ctx, e.ChainRoot())
		if err != nil {
			return err
		}
		for _, f := range chain {
			if f.ID <= e.ID {
				continue
			}
			toggles := (status == domain.StatusApproved && f.Status == domain.StatusRejected) ||
				(status == domain.StatusRejected && f.Status == domain.StatusApproved)
			if !toggles {
				continue
			}
			if err := s.setStatus(ctx, db, f, status); err != nil {
				return err
			}
			updated = append(updated, f)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update event status: %w", err)
	}
	return updated, nil
}

// setStatus writes the event status. Rejecting an event rejects its
// approved bookings and flags them as changed.
func (s *eventService) setStatus(ctx context.Context, db *repo.Client, e *domain.Event, status domain.BookingStatus) error {
	if status == domain.StatusRejected {
		for _, b := range e.Bookings {
			if b.Status != domain.StatusApproved {
				continue
			}
			if err := db.Booking.UpdateStatus(ctx, b.ID, domain.StatusRejected); err != nil {
				return err
			}
			b.Status = domain.StatusRejected
			b.ChangedStatus = true
		}
	}
	if err := db.Event.UpdateStatus(ctx, e.ID, status); err != nil {
		return err
	}
	e.Status = status
	return nil
}

// ---------------------------------------------------------------------------
// Delete
// ---------------------------------------------------------------------------

func (s *eventService) Delete(ctx context.Context, e *domain.Event, deleteFollowing bool) (bool, error) {
	err := repo.WithTx(ctx, s.db, func(ctx context.Context, tx *repo.Tx) error {
		db := tx.Client
		chain, err := db.Event.Chain(ctx, e.ChainRoot())
		if err != nil {
			return err
		}

		var (
			newOrigin   *domain.Event
			hasApproved bool
			orphans     []int64
		)
		for _, r := range chain {
			if r.ID == e.ID {
				if err := s.deleteEvent(ctx, db, r); err != nil {
					return err
				}
				continue
			}
			if r.ID < e.ID {
				continue
			}

			switch r.Status {
			case domain.StatusRejected:
				if deleteFollowing {
					if err := s.deleteEvent(ctx, db, r); err != nil {
						return err
					}
					continue
				}
				orphans = append(orphans, r.ID)
			case domain.StatusApproved:
				hasApproved = true
				if e.ParentID != nil {
					continue
				}
				var parent *int64
				if newOrigin == nil {
					newOrigin = r
				} else {
					parent = &newOrigin.ID
				}
				if err := db.Event.UpdateParent(ctx, r.ID, parent); err != nil {
					return err
				}
			}
		}

		// Surviving rejected members of a deleted origin follow the new one.
		// Those before it are detached; with no approved survivor the first
		// rejected one takes over the chain.
		if e.ParentID == nil {
			if err := s.reparentRejected(ctx, db, newOrigin, orphans); err != nil {
				return err
			}
		}

		if hasApproved || len(e.Periods) == 0 {
			return nil
		}
		for _, r := range chain {
			if r.ID >= e.ID || r.Recurring == nil {
				continue
			}
			r.Recurring.Until = e.Periods[0].PeriodStart
			if err := s.updateSingle(ctx, db, r, r, true); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete event: %w", err)
	}
	return true, nil
}

func (s *eventService) reparentRejected(ctx context.Context, db *repo.Client, newOrigin *domain.Event, orphans []int64) error {
	var origin *int64
	if newOrigin != nil {
		origin = &newOrigin.ID
	}
	for _, id := range orphans {
		var parent *int64
		switch {
		case origin != nil && id > *origin:
			parent = origin
		case origin == nil && newOrigin == nil:
			first := id
			origin = &first
		}
		if err := db.Event.UpdateParent(ctx, id, parent); err != nil {
			return err
		}
	}
	return nil
}

// deleteEvent removes an event and everything it owns, bookings first.
func (s *eventService) deleteEvent(ctx context.Context, db *repo.Client, e *domain.Event) error {
	steps := make([]func() error, 0, len(e.Bookings)*3+7)
	for _, b := range e.Bookings {
		steps = append(steps,
			func() error { return db.Booking.DeleteEventPeriodLinks(ctx, b.ID) },
			func() error { return db.Payment.DeleteByBooking(ctx, b.ID) },
			func() error { return db.Booking.Delete(ctx, b.ID) },
		)
	}
	steps = append(steps,
		func() error { return db.Event.DeletePeriodsOf(ctx, e.ID) },
		func() error { return db.Event.DeleteProviders(ctx, e.ID) },
		func() error { return db.Event.DeleteCouponLinks(ctx, e.ID) },
		func() error { return db.Event.DeleteCustomFieldLinks(ctx, e.ID) },
		func() error { return db.Event.DeleteTags(ctx, e.ID) },
		func() error { return db.Event.DeleteGallery(ctx, e.ID) },
		func() error { return db.Event.Delete(ctx, e.ID) },
	)
	for _, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("%w: event %d: %w", ErrCascadeFailed, e.ID, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Availability
// ---------------------------------------------------------------------------

func (s *eventService) RemoveSlotsFromEvents(ctx context.Context, providers []*domain.Provider, window domain.TimeInterval) (map[int64][]domain.TimeInterval, error) {
	providerIDs := lo.Map(providers, func(p *domain.Provider, _ int) int64 { return p.ID })
	events, err := s.db.Use(ctx).Event.ApprovedForProviders(ctx, providerIDs, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("load provider events: %w", err)
	}

	out := make(map[int64][]domain.TimeInterval)
	for _, e := range events {
		for _, pid := range e.Providers {
			if !slices.Contains(providerIDs, pid) {
				continue
			}
			for _, p := range e.Periods {
				out[pid] = append(out[pid], p.DailyBlocks()...)
			}
		}
	}
	return out, nil
}

func validate(e *domain.Event) error {
	if len(e.Periods) == 0 {
		return ErrInvalidEvent
	}
	for _, p := range e.Periods {
		if _, err := domain.NewTimeInterval(p.PeriodStart, p.PeriodEnd); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
		}
	}
	if e.Recurring != nil && !e.Recurring.Cycle.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownCycle, e.Recurring.Cycle)
	}
	return nil
}
