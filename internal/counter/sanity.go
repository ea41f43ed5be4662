package counter

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrSanityFailed aborts publication; the previous counter stays live
var ErrSanityFailed = errors.New("counter sanity check failed")

// SanityReport lists the groups that fell outside tolerance
type SanityReport struct {
	FailedGroups []string
}

func (r *SanityReport) Error() string {
	return fmt.Sprintf("counter sanity check failed for groups: %s", strings.Join(r.FailedGroups, ", "))
}

func (r *SanityReport) Unwrap() error { return ErrSanityFailed }

// perDestinationFallbackRatio is the stricter tolerance applied per
// destination country when a (group, region) bucket fails the default check
const perDestinationFallbackRatio = 0.05

// SanityCheck compares the candidate series against the live one, grouped
// by (commodity group, destination region). A group passes when the new
// cumulative EUR is within [lower, upper] times the old one or within the
// absolute tolerance. Groups failing the default check get a second chance
// under a stricter per-destination comparison, which tolerates a bucket
// whose member countries each moved only marginally. A nil return means
// publication may proceed.
func SanityCheck(cfg Config, fresh, live []CounterLike) error {
	if len(live) == 0 {
		return nil
	}

	newGroups := cumulativeByGroup(fresh)
	oldGroups := cumulativeByGroup(live)

	var failed []string
	for g, oldEUR := range oldGroups {
		newEUR := newGroups[g]
		if withinTolerance(cfg, newEUR, oldEUR) {
			continue
		}
		if perDestinationOK(cfg, g, fresh, live) {
			continue
		}
		failed = append(failed, fmt.Sprintf("%s/%s (old %.0f, new %.0f)", g.group, g.region, oldEUR, newEUR))
	}
	if len(failed) == 0 {
		return nil
	}
	sort.Strings(failed)
	return &SanityReport{FailedGroups: failed}
}

// CounterLike is the slice element SanityCheck accepts; it matches the
// persisted counter row shape without importing the model
type CounterLike struct {
	CommodityGroup    string
	DestinationRegion string
	DestinationISO2   string
	ValueEUR          float64
}

type groupKey struct {
	group  string
	region string
}

func cumulativeByGroup(rows []CounterLike) map[groupKey]float64 {
	out := make(map[groupKey]float64)
	for _, r := range rows {
		out[groupKey{group: r.CommodityGroup, region: r.DestinationRegion}] += r.ValueEUR
	}
	return out
}

func withinTolerance(cfg Config, newEUR, oldEUR float64) bool {
	if math.Abs(newEUR-oldEUR) <= cfg.SanityAbsEUR {
		return true
	}
	if oldEUR == 0 {
		return newEUR == 0
	}
	ratio := newEUR / oldEUR
	return ratio >= cfg.SanityLowerRatio && ratio <= cfg.SanityUpperRatio
}

// perDestinationOK re-runs the comparison per destination country with a
// tight symmetric ratio band
func perDestinationOK(cfg Config, g groupKey, fresh, live []CounterLike) bool {
	newByDest := make(map[string]float64)
	oldByDest := make(map[string]float64)
	for _, r := range fresh {
		if r.CommodityGroup == g.group && r.DestinationRegion == g.region {
			newByDest[r.DestinationISO2] += r.ValueEUR
		}
	}
	for _, r := range live {
		if r.CommodityGroup == g.group && r.DestinationRegion == g.region {
			oldByDest[r.DestinationISO2] += r.ValueEUR
		}
	}
	for dest, oldEUR := range oldByDest {
		newEUR := newByDest[dest]
		if oldEUR == 0 {
			if newEUR != 0 {
				return false
			}
			continue
		}
		ratio := newEUR / oldEUR
		if ratio < 1-perDestinationFallbackRatio || ratio > 1+perDestinationFallbackRatio {
			return false
		}
	}
	return true
}
