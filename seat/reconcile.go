package seat

import "ticket-storefront/shared"

// Reconcile folds a most-recent-first change log onto a seat snapshot and
// returns the updated copy. For each seat only the newest change counts
// (its first occurrence in the log); seats without changes pass through
// untouched. Pure and idempotent: reconciling the result with the same
// log again yields an equal list.
func Reconcile(seats []shared.Seat, changes []shared.SeatStatusChangeEvent) []shared.Seat {
	out := make([]shared.Seat, len(seats))
	copy(out, seats)
	if len(changes) == 0 {
		return out
	}

	latest := make(map[int64]shared.SeatStatus, len(changes))
	for _, ch := range changes {
		if _, seen := latest[ch.SeatID]; !seen {
			latest[ch.SeatID] = ch.CurrentStatus
		}
	}

	for i := range out {
		if status, ok := latest[out[i].ID]; ok {
			out[i].Status = status
		}
	}
	return out
}
