package pricing

import (
	"regexp"
	"strings"

	"example.com/fossiltrack/internal/models"
)

// easternPortRe splits sanctioned-origin crude into its two priced grades:
// departures from the Pacific ports carry ESPO, everything else Urals.
var easternPortRe = regexp.MustCompile(`(?i)^(Kozmino|Prigorod|Nakhodka|De Kast|Vanino|Vostochn)`)

// nonSanctionedGrades are cargo grades that only transit the sanctioned
// origin and keep their own pricing
var nonSanctionedGrades = map[string]bool{
	"KEBCO": true,
	"CPC":   true,
}

// PricingCommodity derives the commodity a trade is priced under. Crude oil
// originating in the sanctioned country is split into ESPO and Urals by the
// departure port name; non-sanctioned grades are excluded from the override.
func PricingCommodity(commodity models.Commodity, originISO2, departurePortName, grade, sanctionedOrigin string) models.Commodity {
	if commodity != models.CommodityCrudeOil || originISO2 != sanctionedOrigin {
		return commodity
	}
	if nonSanctionedGrades[strings.ToUpper(strings.TrimSpace(grade))] {
		return commodity
	}
	if easternPortRe.MatchString(departurePortName) {
		return models.CommodityCrudeOilESPO
	}
	return models.CommodityCrudeOilUrals
}
