package parties

import "regexp"

// addressRule maps a trailing-address pattern to a country
type addressRule struct {
	re   *regexp.Regexp
	iso2 string
}

var addressRules = []addressRule{
	{regexp.MustCompile(`(?i)\bU\.?S\.?A\.?$`), "US"},
	{regexp.MustCompile(`(?i)\bUnited States$`), "US"},
	{regexp.MustCompile(`(?i)\bUnited Kingdom$`), "GB"},
	{regexp.MustCompile(`(?i)\bSingapore\s*\d*$`), "SG"},
	{regexp.MustCompile(`(?i)\(Taiwan\)`), "TW"},
	{regexp.MustCompile(`(?i)\bHong Kong$`), "HK"},
	{regexp.MustCompile(`(?i)\bJapan$`), "JP"},
	{regexp.MustCompile(`(?i)\bGermany$`), "DE"},
	{regexp.MustCompile(`(?i)\bGreece$`), "GR"},
	{regexp.MustCompile(`(?i)\bNorway$`), "NO"},
	{regexp.MustCompile(`(?i)\bDenmark$`), "DK"},
	{regexp.MustCompile(`(?i)\bSweden$`), "SE"},
	{regexp.MustCompile(`(?i)\bSwitzerland$`), "CH"},
	{regexp.MustCompile(`(?i)\bNetherlands$`), "NL"},
	{regexp.MustCompile(`(?i)\bLuxembourg$`), "LU"},
	{regexp.MustCompile(`(?i)\bChina$`), "CN"},
	{regexp.MustCompile(`(?i)\bIndia$`), "IN"},
	{regexp.MustCompile(`(?i)\bTurkey$`), "TR"},
	{regexp.MustCompile(`(?i)\bUnited Arab Emirates$`), "AE"},
	{regexp.MustCompile(`(?i)\bRussia(n Federation)?$`), "RU"},
	{regexp.MustCompile(`(?i)\bCyprus$`), "CY"},
	{regexp.MustCompile(`(?i)\bMonaco$`), "MC"},
	{regexp.MustCompile(`(?i)\bBermuda$`), "BM"},
	{regexp.MustCompile(`(?i)\bSouth Korea$|\bRepublic of Korea$`), "KR"},
}

// nameRules covers the P&I clubs whose addresses are unreliable upstream
var nameRules = []addressRule{
	{regexp.MustCompile(`(?i)North of England P&I`), "GB"},
	{regexp.MustCompile(`(?i)^NorthStandard`), "GB"},
	{regexp.MustCompile(`(?i)UK P&I`), "GB"},
	{regexp.MustCompile(`(?i)Britannia Steam`), "GB"},
	{regexp.MustCompile(`(?i)London P&I|London Steam`), "GB"},
	{regexp.MustCompile(`(?i)Standard Club`), "GB"},
	{regexp.MustCompile(`(?i)Steamship Mutual`), "GB"},
	{regexp.MustCompile(`(?i)West of England`), "LU"},
	{regexp.MustCompile(`(?i)Shipowners.{0,3}(Mutual|Club)`), "LU"},
	{regexp.MustCompile(`(?i)^Gard\b`), "NO"},
	{regexp.MustCompile(`(?i)^Skuld\b|Assuranceforeningen Skuld`), "NO"},
	{regexp.MustCompile(`(?i)^Hydor\b`), "NO"},
	{regexp.MustCompile(`(?i)Norwegian Hull Club`), "NO"},
	{regexp.MustCompile(`(?i)Swedish Club`), "SE"},
	{regexp.MustCompile(`(?i)American (Club|Steamship Owners)`), "US"},
	{regexp.MustCompile(`(?i)Japan Ship Owners|Japan P&I`), "JP"},
	{regexp.MustCompile(`(?i)Korea P&I`), "KR"},
	{regexp.MustCompile(`(?i)China P&I|China Shipowners Mutual`), "CN"},
	{regexp.MustCompile(`(?i)Ingosstrakh`), "RU"},
}

// Imputer derives a company's country from its addresses and name. The
// manual map (provider company id to ISO-2) is the curated last resort.
type Imputer struct {
	manual map[string]string
}

// NewImputer creates an imputer with the curated provider-id overrides
func NewImputer(manual map[string]string) *Imputer {
	if manual == nil {
		manual = map[string]string{}
	}
	return &Imputer{manual: manual}
}

// Country imputes the ISO-2 country for a company. Fallback order: address
// patterns, then company-name patterns, then the curated provider-id map.
// Returns "" when nothing matches.
func (i *Imputer) Country(providerID string, name string, addresses []string) string {
	for _, addr := range addresses {
		for _, r := range addressRules {
			if r.re.MatchString(addr) {
				return r.iso2
			}
		}
	}
	for _, r := range nameRules {
		if r.re.MatchString(name) {
			return r.iso2
		}
	}
	if iso2, ok := i.manual[providerID]; ok {
		return iso2
	}
	return ""
}
