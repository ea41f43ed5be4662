// Package berth joins ship positions to berth polygons so each shipment
// end can be attributed to the berth it actually used.
package berth

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/planar"
	"github.com/pkg/errors"

	"example.com/fossiltrack/internal/models"
)

// Shipment ends a berth can be attached to
const (
	EndDeparture = "departure"
	EndArrival   = "arrival"
)

// maxMooredSpeedKnots filters out positions recorded while underway
const maxMooredSpeedKnots = 1.0

type indexedBerth struct {
	berth   models.Berth
	polygon orb.Polygon
	bound   orb.Bound
}

// Detector holds parsed berth polygons for repeated point lookups
type Detector struct {
	berths []indexedBerth
}

// NewDetector parses every berth polygon up front. A berth with an
// unparseable polygon fails the whole construction rather than being
// silently skipped.
func NewDetector(berths []models.Berth) (*Detector, error) {
	d := &Detector{berths: make([]indexedBerth, 0, len(berths))}
	for _, b := range berths {
		geom, err := wkt.Unmarshal(b.Polygon)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse polygon for berth %s", b.ID)
		}
		poly, ok := geom.(orb.Polygon)
		if !ok {
			return nil, errors.Errorf("berth %s geometry is %T, want polygon", b.ID, geom)
		}
		d.berths = append(d.berths, indexedBerth{berth: b, polygon: poly, bound: poly.Bound()})
	}
	return d, nil
}

// Match is a resolved berth attachment for one shipment end
type Match struct {
	Berth      models.Berth
	Position   models.Position
	Hits       int
}

// Detect resolves at most one berth from the positions recorded around a
// shipment end. Moored positions inside a polygon count as hits; the berth
// with the most hits wins and ties go to the earliest hit. A nil return
// means no berth could be attributed.
func (d *Detector) Detect(positions []models.Position) *Match {
	type tally struct {
		hits  int
		first models.Position
	}
	counts := make(map[string]*tally)

	for _, pos := range positions {
		if pos.SpeedKnots != nil && *pos.SpeedKnots > maxMooredSpeedKnots {
			continue
		}
		pt, err := parsePoint(pos.Geometry)
		if err != nil {
			continue
		}
		for _, ib := range d.berths {
			if !ib.bound.Contains(pt) {
				continue
			}
			if !planar.PolygonContains(ib.polygon, pt) {
				continue
			}
			t, ok := counts[ib.berth.ID]
			if !ok {
				counts[ib.berth.ID] = &tally{hits: 1, first: pos}
			} else {
				t.hits++
			}
		}
	}

	var best *Match
	for _, ib := range d.berths {
		t, ok := counts[ib.berth.ID]
		if !ok {
			continue
		}
		if best == nil || t.hits > best.Hits ||
			(t.hits == best.Hits && t.first.Timestamp.Before(best.Position.Timestamp)) {
			best = &Match{Berth: ib.berth, Position: t.first, Hits: t.hits}
		}
	}
	return best
}

func parsePoint(s string) (orb.Point, error) {
	geom, err := wkt.Unmarshal(s)
	if err != nil {
		return orb.Point{}, err
	}
	pt, ok := geom.(orb.Point)
	if !ok {
		return orb.Point{}, errors.Errorf("geometry is %T, want point", geom)
	}
	return pt, nil
}
