package voyage

import (
	"sort"
	"time"
)

// Portcall request regimes. Call-based billing charges per request, so wide
// windows are cheap; record-based billing charges per row, so narrow windows
// are cheap.
const (
	RegimeCallBased   = "call_based"
	RegimeRecordBased = "record_based"
)

// Window is a closed time interval already fetched for a ship
type Window struct {
	From time.Time
	To   time.Time
}

// Request is a planned upstream portcall fetch
type Request struct {
	ShipIMO string
	From    time.Time
	To      time.Time
	Regime  string
}

// PlanBackfill turns builder gaps into upstream requests. Windows already
// covered by earlier calls are subtracted so a re-run never pays for the
// same span twice. Remainders at least minWindow long go through the flat
// per-call regime; shorter ones are charged per record.
func PlanBackfill(gaps []Gap, covered map[string][]Window, minWindow time.Duration) []Request {
	var reqs []Request
	for _, g := range gaps {
		for _, w := range subtract(Window{From: g.From, To: g.To}, covered[g.ShipIMO]) {
			r := Request{ShipIMO: g.ShipIMO, From: w.From, To: w.To}
			if w.To.Sub(w.From) >= minWindow {
				r.Regime = RegimeCallBased
			} else {
				r.Regime = RegimeRecordBased
			}
			reqs = append(reqs, r)
		}
	}
	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].ShipIMO != reqs[j].ShipIMO {
			return reqs[i].ShipIMO < reqs[j].ShipIMO
		}
		return reqs[i].From.Before(reqs[j].From)
	})
	return reqs
}

// subtract removes every covered interval from w and returns the remainder
// in time order
func subtract(w Window, covered []Window) []Window {
	rest := []Window{w}
	for _, c := range covered {
		var next []Window
		for _, r := range rest {
			if c.To.Before(r.From) || c.From.After(r.To) {
				next = append(next, r)
				continue
			}
			if c.From.After(r.From) {
				next = append(next, Window{From: r.From, To: c.From})
			}
			if c.To.Before(r.To) {
				next = append(next, Window{From: c.To, To: r.To})
			}
		}
		rest = next
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].From.Before(rest[j].From) })
	return rest
}
