// Package voyage reconstructs business-level shipments from ordered port
// calls and ship-to-ship events. The builder is a per-ship state machine;
// persistence and cascade handling live in the service layer.
package voyage

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"example.com/fossiltrack/internal/models"
)

// Config controls the builder
type Config struct {
	// OriginISO2 restricts departures to these loading countries
	OriginISO2 map[string]bool
	// MinDWT ignores ships below this deadweight
	MinDWT float64
	// MaxGap is the forward-scan gap above which a back-fill is requested
	MaxGap time.Duration
}

// Input is everything the builder needs for one run over a fleet
type Input struct {
	Ships  map[string]models.Ship       // by IMO
	Calls  map[string][]models.PortCall // by IMO, any order
	Events []models.Event               // STS pairs; ShipIMO is the transferring hull
	Ports  map[string]models.Port       // by port id
}

// Voyage is one reconstructed shipment with its endpoints resolved in memory
type Voyage struct {
	ShipIMO    string
	Departure  models.Departure
	Arrival    *models.Arrival
	Status     models.ShipmentStatus
	IsSTS      bool
	STSEventID *uuid.UUID
	Commodity  models.Commodity
	Quantity   float64
	Unit       string
}

// Gap is a (ship, window) pair the builder wants back-filled upstream
type Gap struct {
	ShipIMO string
	From    time.Time
	To      time.Time
}

// Result is the outcome of one build pass
type Result struct {
	Voyages []Voyage
	Gaps    []Gap
}

// stsPair is a matched start/end event pair on the transferring hull
type stsPair struct {
	start models.Event
	end   models.Event
}

// Build reconstructs voyages for every ship in the input. It is pure: the
// same input yields the same voyages, so re-running is idempotent once the
// rows are upserted on their business keys.
func Build(cfg Config, in Input) Result {
	var res Result

	pairs := matchSTSPairs(in.Events)

	imos := make([]string, 0, len(in.Ships))
	for imo := range in.Ships {
		imos = append(imos, imo)
	}
	sort.Strings(imos)

	for _, imo := range imos {
		ship := in.Ships[imo]
		if ship.DWT < cfg.MinDWT {
			continue
		}
		buildShip(cfg, in, ship, pairs, &res)
	}
	return res
}

// matchSTSPairs pairs start and end events per transferring hull in time order
func matchSTSPairs(events []models.Event) []stsPair {
	byShip := make(map[string][]models.Event)
	for _, ev := range events {
		byShip[ev.ShipIMO] = append(byShip[ev.ShipIMO], ev)
	}

	var pairs []stsPair
	for _, evs := range byShip {
		sort.Slice(evs, func(i, j int) bool { return evs[i].Timestamp.Before(evs[j].Timestamp) })
		var open *models.Event
		for i := range evs {
			switch evs[i].Kind {
			case models.EventSTSStart:
				ev := evs[i]
				open = &ev
			case models.EventSTSEnd:
				if open != nil {
					pairs = append(pairs, stsPair{start: *open, end: evs[i]})
					open = nil
				}
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].end.Timestamp.Before(pairs[j].end.Timestamp) })
	return pairs
}

func buildShip(cfg Config, in Input, ship models.Ship, pairs []stsPair, res *Result) {
	calls := append([]models.PortCall(nil), in.Calls[ship.IMO]...)
	sort.Slice(calls, func(i, j int) bool { return calls[i].Timestamp.Before(calls[j].Timestamp) })

	// STS windows on this hull: a ballast departure inside one belongs to
	// the transfer, not to a voyage close
	var windows []stsPair
	for _, p := range pairs {
		if p.start.ShipIMO == ship.IMO {
			windows = append(windows, p)
		}
	}
	inSTSWindow := func(ts time.Time) bool {
		for _, w := range windows {
			if !ts.Before(w.start.Timestamp) && !ts.After(w.end.Timestamp) {
				return true
			}
		}
		return false
	}

	var lastArrival time.Time
	i := 0
	for i < len(calls) {
		open := openingIndex(cfg, in, calls, i)
		if open < 0 {
			break
		}
		dep := calls[open]

		voy := Voyage{
			ShipIMO: ship.IMO,
			Departure: models.Departure{
				ID:         uuid.New(),
				ShipIMO:    ship.IMO,
				PortID:     dep.PortID,
				PortCallID: &dep.ID,
				Timestamp:  dep.Timestamp,
			},
			Status:    models.ShipmentOngoing,
			Commodity: ship.Commodity,
			Quantity:  ship.Quantity,
			Unit:      ship.Unit,
		}

		next := forwardScan(cfg, calls, open, lastArrival, inSTSWindow, ship.IMO)

		// An STS transfer handing the cargo to another hull closes this
		// voyage with a virtual arrival and opens the receiving segment,
		// but only when the transfer begins before the earliest closing
		// portcall; close events are consumed in timestamp order.
		if p, ok := nextSTSAfter(windows, dep.Timestamp); ok && stsClosesFirst(p, next, calls) {
			for _, g := range next.gaps {
				if !g.To.After(p.start.Timestamp) {
					res.Gaps = append(res.Gaps, g)
				}
			}
			sts := closeWithSTS(in, &voy, p)
			res.Voyages = append(res.Voyages, voy)
			if sts != nil {
				res.Voyages = append(res.Voyages, *sts)
			}
			lastArrival = p.end.Timestamp
			i = indexAfter(calls, p.end.Timestamp)
			continue
		}

		res.Gaps = append(res.Gaps, next.gaps...)
		if next.undetected {
			voy.Status = models.ShipmentUndetectedArrival
			res.Voyages = append(res.Voyages, voy)
			i = next.resumeAt
			continue
		}
		if next.arrival != nil {
			arr := next.arrival
			voy.Arrival = &models.Arrival{
				ID:         uuid.New(),
				ShipIMO:    ship.IMO,
				PortID:     arr.PortID,
				PortCallID: &arr.ID,
				Timestamp:  arr.Timestamp,
			}
			voy.Status = models.ShipmentCompleted
			lastArrival = arr.Timestamp
			res.Voyages = append(res.Voyages, voy)
			i = next.resumeAt
			continue
		}

		// No arrival resolvable yet: the voyage stays ongoing
		res.Voyages = append(res.Voyages, voy)
		break
	}
}

// openingIndex finds the next loading departure from a monitored origin port
func openingIndex(cfg Config, in Input, calls []models.PortCall, from int) int {
	for i := from; i < len(calls); i++ {
		c := calls[i]
		if c.MoveType != models.MoveDeparture || c.LoadStatus != models.LoadStatusFullyLaden || c.PortOperation != models.PortOpLoad {
			continue
		}
		if c.PortID == nil {
			continue
		}
		port, ok := in.Ports[*c.PortID]
		if !ok {
			continue
		}
		if len(cfg.OriginISO2) > 0 && !cfg.OriginISO2[port.CountryISO2] {
			continue
		}
		return i
	}
	return -1
}

type scanResult struct {
	arrival    *models.PortCall
	undetected bool
	resumeAt   int
	gaps       []Gap
}

// forwardScan looks for the earliest closing call after the departure at
// index open: a non-STS ballast departure or a discharge operation. The
// immediately preceding arrival call is the canonical arrival point. A new
// laden loading departure seen first forces undetected_arrival.
func forwardScan(cfg Config, calls []models.PortCall, open int, lastArrival time.Time, inSTSWindow func(time.Time) bool, imo string) scanResult {
	var gaps []Gap
	for j := open + 1; j < len(calls); j++ {
		c := calls[j]

		// Back-fill request for suspicious silence between known calls
		if gap := c.Timestamp.Sub(calls[j-1].Timestamp); cfg.MaxGap > 0 && gap > cfg.MaxGap {
			gaps = append(gaps, Gap{ShipIMO: imo, From: calls[j-1].Timestamp, To: c.Timestamp})
		}

		// Another loading departure before any arrival closes the previous
		// shipment as undetected
		if c.MoveType == models.MoveDeparture && c.LoadStatus == models.LoadStatusFullyLaden && c.PortOperation == models.PortOpLoad {
			return scanResult{undetected: true, resumeAt: j, gaps: gaps}
		}

		closing := false
		if c.MoveType == models.MoveDeparture && c.LoadStatus == models.LoadStatusInBallast && !inSTSWindow(c.Timestamp) {
			closing = true
		}
		if c.PortOperation == models.PortOpDischarge || c.PortOperation == models.PortOpBoth {
			closing = true
		}
		if !closing {
			continue
		}

		arr := precedingArrival(calls, j, open)
		if arr == nil {
			continue
		}
		// An arrival may never precede the previous shipment's arrival
		if !lastArrival.IsZero() && !arr.Timestamp.After(lastArrival) {
			continue
		}
		return scanResult{arrival: arr, resumeAt: j + 1, gaps: gaps}
	}
	return scanResult{gaps: gaps}
}

// stsClosesFirst reports whether the STS transfer begins before the closing
// portcall the forward scan found. With no close in sight the transfer wins.
func stsClosesFirst(p stsPair, next scanResult, calls []models.PortCall) bool {
	switch {
	case next.undetected:
		return p.start.Timestamp.Before(calls[next.resumeAt].Timestamp)
	case next.arrival != nil:
		return p.start.Timestamp.Before(calls[next.resumeAt-1].Timestamp)
	default:
		return true
	}
}

// precedingArrival scans backward from index j for the nearest arrival call
// after the opening departure
func precedingArrival(calls []models.PortCall, j, open int) *models.PortCall {
	for k := j; k > open; k-- {
		if calls[k].MoveType == models.MoveArrival {
			c := calls[k]
			return &c
		}
	}
	return nil
}

// nextSTSAfter returns the first STS pair whose transfer starts after the
// departure
func nextSTSAfter(windows []stsPair, departure time.Time) (stsPair, bool) {
	for _, w := range windows {
		if w.start.Timestamp.After(departure) {
			return w, true
		}
	}
	return stsPair{}, false
}

// closeWithSTS ends the transferring voyage with a virtual arrival at the
// transfer location and returns the STS-variant voyage on the receiving
// hull, which inherits the cargo
func closeWithSTS(in Input, voy *Voyage, p stsPair) *Voyage {
	voy.Arrival = &models.Arrival{
		ID:        uuid.New(),
		ShipIMO:   voy.ShipIMO,
		EventID:   &p.end.ID,
		Timestamp: p.end.Timestamp,
	}
	voy.Status = models.ShipmentCompleted

	receiver := p.start.InteractingShipIMO
	if receiver == "" {
		return nil
	}

	sts := Voyage{
		ShipIMO: receiver,
		Departure: models.Departure{
			ID:        uuid.New(),
			ShipIMO:   receiver,
			EventID:   &p.end.ID,
			Timestamp: p.end.Timestamp,
		},
		Status:     models.ShipmentOngoing,
		IsSTS:      true,
		STSEventID: &p.end.ID,
		Commodity:  voy.Commodity,
		Quantity:   voy.Quantity,
		Unit:       voy.Unit,
	}

	// Close the receiving segment from the receiver's own calls
	calls := append([]models.PortCall(nil), in.Calls[receiver]...)
	sort.Slice(calls, func(i, j int) bool { return calls[i].Timestamp.Before(calls[j].Timestamp) })
	for j := range calls {
		c := calls[j]
		if !c.Timestamp.After(p.end.Timestamp) {
			continue
		}
		if c.PortOperation == models.PortOpDischarge || c.PortOperation == models.PortOpBoth ||
			(c.MoveType == models.MoveDeparture && c.LoadStatus == models.LoadStatusInBallast) {
			if arr := precedingArrivalAfter(calls, j, p.end.Timestamp); arr != nil {
				sts.Arrival = &models.Arrival{
					ID:         uuid.New(),
					ShipIMO:    receiver,
					PortID:     arr.PortID,
					PortCallID: &arr.ID,
					Timestamp:  arr.Timestamp,
				}
				sts.Status = models.ShipmentCompleted
			}
			break
		}
	}

	return &sts
}

// precedingArrivalAfter is precedingArrival bounded by a timestamp instead
// of an index
func precedingArrivalAfter(calls []models.PortCall, j int, after time.Time) *models.PortCall {
	for k := j; k >= 0; k-- {
		if calls[k].Timestamp.Before(after) {
			break
		}
		if calls[k].MoveType == models.MoveArrival {
			c := calls[k]
			return &c
		}
	}
	return nil
}

// indexAfter returns the first call index strictly after ts
func indexAfter(calls []models.PortCall, ts time.Time) int {
	for i := range calls {
		if calls[i].Timestamp.After(ts) {
			return i
		}
	}
	return len(calls)
}
