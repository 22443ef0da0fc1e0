package room

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"ensemble/pkg/types"
)

// Bounds for the fallback replacement interval used when the generator
// returns nothing usable.
const (
	minFallbackInterval = 45
	maxFallbackInterval = 300
)

func fallbackInterval() int {
	return minFallbackInterval + rand.IntN(maxFallbackInterval-minFallbackInterval+1)
}

// intervalFor asks the generator for the replacement interval of a
// directive kind. Any error or non-positive answer falls back to a bounded
// random default rather than failing the schedule.
func (r *Room) intervalFor(ctx context.Context, kind types.DirectiveKind) time.Duration {
	seconds, err := r.director.Interval(ctx, r.stateString(), kind)
	if err != nil || seconds <= 0 {
		seconds = fallbackInterval()
		log.Printf("Room %s: no usable %s interval from generator, using %ds", r.name, kind, seconds)
	}

	r.mu.Lock()
	switch kind {
	case types.DirectivePerformer:
		if seconds > r.lastPerformerInterval {
			r.lastPerformerInterval = seconds
		}
	case types.DirectiveGroup:
		r.lastGroupInterval = seconds
		if r.lastPerformerInterval > 0 && seconds < r.lastPerformerInterval {
			log.Printf("Room %s: group interval %ds below performer interval %ds, generator contract violated",
				r.name, seconds, r.lastPerformerInterval)
		}
	}
	r.mu.Unlock()

	return time.Duration(seconds) * time.Second
}

func (r *Room) scheduleGroup(interval time.Duration) {
	r.sched.Schedule(GroupKey(), interval, r.fireGroup)
}

func (r *Room) schedulePerformer(userID string, interval time.Duration) {
	r.sched.Schedule(PerformerKey(userID), interval, func(ctx context.Context) (time.Duration, bool) {
		return r.firePerformer(ctx, userID)
	})
}

// fireGroup runs when the group directive timer elapses: regenerate the
// group directive with coordinated performer directives, broadcast, and
// continue the chain unless the performance is over or the room emptied.
func (r *Room) fireGroup(ctx context.Context) (time.Duration, bool) {
	if statusRank[r.Status()] >= statusRank[types.StatusEndSong] {
		return 0, false
	}

	terminal, err := r.replaceGroupDirective(ctx)
	if err != nil {
		// A failed fire keeps the chain alive on the same cadence.
		log.Printf("Room %s: group directive replacement failed: %v", r.name, err)
		r.send(types.ErrorOutbound(r.name, "directive update unavailable"))
		return r.lastInterval(types.DirectiveGroup), true
	}

	r.send(r.StateResponse(types.ActionNewGameState))

	if terminal {
		return 0, false
	}
	if r.PerformerCount() == 0 {
		log.Printf("No active performers in room %s. Stopping directive updates.", r.name)
		return 0, false
	}
	return r.intervalFor(ctx, types.DirectiveGroup), true
}

// firePerformer runs when one performer's directive timer elapses.
func (r *Room) firePerformer(ctx context.Context, userID string) (time.Duration, bool) {
	if statusRank[r.Status()] >= statusRank[types.StatusEndSong] {
		return 0, false
	}
	if !r.HasPerformer(userID) {
		return 0, false
	}

	if err := r.replacePerformerDirective(ctx, userID); err != nil {
		log.Printf("Room %s: performer directive replacement failed for %s: %v", r.name, userID, err)
		r.send(types.ErrorOutbound(r.name, "directive update unavailable"))
		return r.lastInterval(types.DirectivePerformer), true
	}

	r.send(r.StateResponse(types.ActionNewGameState))

	if r.PerformerCount() == 0 {
		log.Printf("No active performers in room %s. Stopping directive updates.", r.name)
		return 0, false
	}
	return r.intervalFor(ctx, types.DirectivePerformer), true
}

// lastInterval returns the most recent interval for a kind, for retrying a
// failed fire on the same cadence.
func (r *Room) lastInterval(kind types.DirectiveKind) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	seconds := r.lastPerformerInterval
	if kind == types.DirectiveGroup {
		seconds = r.lastGroupInterval
	}
	if seconds <= 0 {
		seconds = fallbackInterval()
	}
	return time.Duration(seconds) * time.Second
}

// replaceGroupDirective regenerates the group directive, coordinates one
// performer directive per present performer, finalizes the directive set,
// and restarts every performer chain. Returns whether the generator
// signalled the final directive.
func (r *Room) replaceGroupDirective(ctx context.Context) (bool, error) {
	state := r.stateString()

	group, err := r.director.ReplacementDirective(ctx, state, types.DirectiveGroup)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrGeneratorUnavailable, err)
	}
	return group.Terminal(), r.applyGroupDirective(ctx, state, group)
}

// applyGroupDirective assigns a group directive plus coordinated performer
// directives to every present performer and appends the finalized set.
func (r *Room) applyGroupDirective(ctx context.Context, state string, group types.Directive) error {
	ids := r.PerformerIDs()
	perPerformer, err := r.director.PerformerDirectives(ctx, state, group, ids)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGeneratorUnavailable, err)
	}

	now := time.Now()
	set := types.DirectiveSet{Group: group, IssuedAt: now}

	r.mu.Lock()
	for _, p := range r.performers {
		p.AssignDirective(group, now)
		d, ok := perPerformer[p.ID]
		if !ok {
			// Every present performer gets exactly one directive per set;
			// fill any hole the generator left with the group text.
			d = types.Directive{
				Kind:     types.DirectivePerformer,
				Title:    group.Title,
				Text:     group.Text,
				Interval: group.Interval,
			}
		}
		p.AssignDirective(d, now)
		set.Performers = append(set.Performers, types.IssuedDirective{
			UserID: p.ID, Directive: d, IssuedAt: now,
		})
		if group.Terminal() {
			p.ClearDirective(types.DirectiveGroup)
		}
	}
	session := r.current()
	session.AppendSet(set)
	if group.Terminal() {
		session.Terminal = true
	}
	r.mu.Unlock()

	if !group.Terminal() {
		for _, id := range ids {
			r.schedulePerformer(id, r.intervalFor(ctx, types.DirectivePerformer))
		}
	}
	return nil
}

// replacePerformerDirective regenerates one performer's directive only.
func (r *Room) replacePerformerDirective(ctx context.Context, userID string) error {
	d, err := r.director.ReplacementDirective(ctx, r.stateString(), types.DirectivePerformer)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGeneratorUnavailable, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.findPerformer(userID)
	if p == nil {
		return ErrPerformerNotFound
	}
	p.AssignDirective(d, time.Now())
	return nil
}

// UseNextDirective adopts a fresh group directive for the whole room ahead
// of schedule and restarts the group chain from a new interval. The live
// group timer is cancelled before regeneration so the scheduled chain can
// never append a set concurrently with the early replacement.
func (r *Room) UseNextDirective(ctx context.Context, userID string) error {
	if r.Status() != types.StatusImprovise {
		return ErrInvalidTransition
	}
	if !r.HasPerformer(userID) {
		return ErrPerformerNotFound
	}

	r.sched.Cancel(GroupKey())

	terminal, err := r.replaceGroupDirective(ctx)
	if err != nil {
		// Revive the chain on the previous cadence so a failed early
		// replacement does not strand the room without group updates.
		r.scheduleGroup(r.lastInterval(types.DirectiveGroup))
		return err
	}
	if terminal {
		return nil
	}
	r.scheduleGroup(r.intervalFor(ctx, types.DirectiveGroup))
	return nil
}

// IgnoreDirective discards the reacting performer's current directive,
// replaces it immediately, and restarts only that performer's chain.
func (r *Room) IgnoreDirective(ctx context.Context, userID string) error {
	if r.Status() != types.StatusImprovise {
		return ErrInvalidTransition
	}
	if !r.HasPerformer(userID) {
		return ErrPerformerNotFound
	}

	if err := r.replacePerformerDirective(ctx, userID); err != nil {
		return err
	}
	r.schedulePerformer(userID, r.intervalFor(ctx, types.DirectivePerformer))
	return nil
}

// ReactToDirective logs a reaction against the performer's most recent
// directive of the given kind.
func (r *Room) ReactToDirective(userID string, kind types.DirectiveKind, reaction string) error {
	if r.Status() != types.StatusImprovise {
		return ErrInvalidTransition
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.findPerformer(userID)
	if p == nil {
		return ErrPerformerNotFound
	}
	if !p.LogReaction(kind, reaction) {
		return ErrNoCurrentDirective
	}
	return nil
}

// Rejoin restores a previously disconnected participant. Membership is
// idempotent; an active performance resumes the participant's directive
// chain with a freshly derived interval, and revives the group chain if the
// room had emptied.
func (r *Room) Rejoin(ctx context.Context, p *types.Participant) {
	if err := r.AddPerformer(p); err != nil {
		log.Printf("Room %s: rejoin for %s: already a member", r.name, p.ID)
	}

	if r.Status() != types.StatusImprovise {
		return
	}
	r.schedulePerformer(p.ID, r.intervalFor(ctx, types.DirectivePerformer))
	if !r.sched.Scheduled(GroupKey()) {
		r.scheduleGroup(r.intervalFor(ctx, types.DirectiveGroup))
	}
}
