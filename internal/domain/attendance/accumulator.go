package attendance

import (
	"sort"
	"time"
)

// Recompute derives the per-category time totals for one attendance day from
// its event log. The fold starts at clock_in with the work category active,
// classifies every inter-event interval by the category active when it began,
// and closes the still-open final interval at now. If the log already
// contains clock_out the fold closes there and now is ignored.
//
// The input is defensively re-sorted and de-duplicated by event ID, so
// running Recompute from scratch on every tick is always correct: no totals
// are carried over, nothing drifts.
func Recompute(events []ActivityEvent, now time.Time) Durations {
	if len(events) == 0 {
		return Durations{}
	}

	ordered := normalizeLog(events)

	var totals Durations
	var active *time.Duration
	var prev time.Time
	started := false

	for _, ev := range ordered {
		if !started {
			if ev.Type != EventClockIn {
				continue
			}
			started = true
			active = &totals.Work
			prev = ev.Timestamp
			continue
		}

		if d := ev.Timestamp.Sub(prev); d > 0 {
			*active += d
		}
		prev = ev.Timestamp

		switch ev.Type {
		case EventClockOut:
			return totals
		case EventBreakStart:
			active = &totals.Break
		case EventOvertimeStart:
			active = &totals.Overtime
		case EventClientVisitStart:
			active = &totals.ClientVisit
		default:
			active = &totals.Work
		}
	}

	if started {
		if d := now.Sub(prev); d > 0 {
			*active += d
		}
	}

	return totals
}

// normalizeLog de-duplicates events by ID and orders them by timestamp.
// Remote events can arrive in any order; every fold over the log runs on the
// normalized view so arrival order never changes the derived state.
func normalizeLog(events []ActivityEvent) []ActivityEvent {
	ordered := make([]ActivityEvent, 0, len(events))
	seen := make(map[string]struct{}, len(events))
	for _, ev := range events {
		if ev.ID != "" {
			if _, dup := seen[ev.ID]; dup {
				continue
			}
			seen[ev.ID] = struct{}{}
		}
		ordered = append(ordered, ev)
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			// clock_in opens the day and clock_out closes it, even on ties.
			return ordered[i].Type == EventClockIn || ordered[j].Type == EventClockOut
		}
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})
	return ordered
}
