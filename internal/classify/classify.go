// Package classify derives a ship's commodity class and nominal cargo
// quantity from its registry type and subtype. Classification is pure and
// deterministic; it is re-run whenever type or subtype change.
package classify

import (
	"regexp"
	"strings"

	"example.com/fossiltrack/internal/models"
)

// rule matches a type/subtype pair against a commodity class. Rules are
// evaluated in order; the first match wins.
type rule struct {
	commodity models.Commodity
	typeRe    *regexp.Regexp
	subtypeRe *regexp.Regexp
}

var rules = []rule{
	{models.CommodityCrudeOil, regexp.MustCompile(`(?i)crude`), nil},
	{models.CommodityOilOrChemical, regexp.MustCompile(`(?i)oil.{0,3}(or|/).{0,3}chemical|chemical.{0,3}(or|/).{0,3}oil`), nil},
	{models.CommodityOilProducts, regexp.MustCompile(`(?i)(oil products|products? tanker|tanker)`), nil},
	{models.CommodityOilOrOre, regexp.MustCompile(`(?i)(ore.{0,3}(or|/).{0,3}oil|oil.{0,3}(or|/).{0,3}ore|obo)`), nil},
	{models.CommodityLNG, nil, regexp.MustCompile(`(?i)\blng\b|liquefied natural gas`)},
	{models.CommodityLPG, regexp.MustCompile(`(?i)\blpg\b|liquefied petroleum gas|gas carrier`), nil},
	{models.CommodityGeneralCargo, regexp.MustCompile(`(?i)general cargo`), nil},
	{models.CommodityBulk, regexp.MustCompile(`(?i)bulk`), nil},
}

// Result is the derived (commodity, quantity, unit) triple
type Result struct {
	Commodity models.Commodity
	Quantity  float64
	Unit      string
}

// Ship classifies a ship from its registry attributes. The quantity is the
// liquid-gas capacity in m3 for LNG carriers and deadweight tonnes otherwise.
func Ship(shipType, subtype string, dwt float64, liquidGasCapacityM3 *float64) Result {
	commodity := models.CommodityUnknown

	full := strings.TrimSpace(shipType + " " + subtype)
	for _, r := range rules {
		if r.typeRe != nil && r.typeRe.MatchString(full) {
			commodity = r.commodity
			break
		}
		if r.subtypeRe != nil && r.subtypeRe.MatchString(subtype) {
			commodity = r.commodity
			break
		}
	}

	if commodity == models.CommodityLNG && liquidGasCapacityM3 != nil {
		return Result{Commodity: commodity, Quantity: *liquidGasCapacityM3, Unit: "m3"}
	}
	return Result{Commodity: commodity, Quantity: dwt, Unit: "tonne"}
}

// Apply writes the derived classification onto a ship record
func Apply(ship *models.Ship) {
	res := Ship(ship.Type, ship.Subtype, ship.DWT, ship.LiquidGasCapacityM3)
	ship.Commodity = res.Commodity
	ship.Quantity = res.Quantity
	ship.Unit = res.Unit
}
