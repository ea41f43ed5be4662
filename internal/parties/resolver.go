package parties

import (
	"sort"
	"time"

	"example.com/fossiltrack/internal/models"
)

// Applicable returns the role record in force for a voyage departing at the
// given time: the record with the greatest DateFrom not later than
// departure+buffer. A nil DateFrom means "since the beginning of the ship's
// tracked life" and is the weakest candidate. Returns nil when the history
// is empty.
func Applicable(history []models.ShipCompany, departure time.Time, buffer time.Duration) *models.ShipCompany {
	cutoff := departure.Add(buffer)

	var best *models.ShipCompany
	for idx := range history {
		rec := &history[idx]
		if rec.DateFrom != nil && rec.DateFrom.After(cutoff) {
			continue
		}
		if best == nil {
			best = rec
			continue
		}
		if after(rec.DateFrom, best.DateFrom) {
			best = rec
		}
	}
	return best
}

// ApplicableFlag is Applicable over the flag history
func ApplicableFlag(history []models.ShipFlag, departure time.Time, buffer time.Duration) *models.ShipFlag {
	cutoff := departure.Add(buffer)

	var best *models.ShipFlag
	for idx := range history {
		rec := &history[idx]
		if rec.DateFrom != nil && rec.DateFrom.After(cutoff) {
			continue
		}
		if best == nil || after(rec.DateFrom, best.DateFrom) {
			best = rec
		}
	}
	return best
}

// after orders nullable DateFrom values: nil sorts before any concrete date
func after(a, b *time.Time) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return a.After(*b)
}

// SortHistory orders role records by DateFrom ascending with nil first, so
// chains read oldest to newest
func SortHistory(history []models.ShipCompany) {
	sort.SliceStable(history, func(i, j int) bool {
		return after(history[j].DateFrom, history[i].DateFrom)
	})
}
