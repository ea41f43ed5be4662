// Package countries holds the static country reference data used across the
// pipeline: ISO-2 names, destination regions, and price-cap coalition
// membership. The table is small and changes rarely, so it lives in code
// rather than in a database table.
package countries

// Country is one reference row
type Country struct {
	ISO2   string
	Name   string
	Region string
}

var euMembers = map[string]bool{
	"AT": true, "BE": true, "BG": true, "HR": true, "CY": true, "CZ": true,
	"DK": true, "EE": true, "FI": true, "FR": true, "DE": true, "GR": true,
	"HU": true, "IE": true, "IT": true, "LV": true, "LT": true, "LU": true,
	"MT": true, "NL": true, "PL": true, "PT": true, "RO": true, "SK": true,
	"SI": true, "ES": true, "SE": true,
}

// g7NonEU lists the G7 members outside the EU
var g7NonEU = map[string]bool{
	"US": true, "GB": true, "JP": true, "CA": true,
}

var regions = map[string]string{
	"CN": "China", "IN": "India", "TR": "Turkey",
	"US": "United States", "GB": "United Kingdom", "JP": "Japan",
	"CA": "Canada", "NO": "Norway", "CH": "Switzerland",
	"KR": "Other Asia", "TW": "Other Asia", "SG": "Other Asia",
	"MY": "Other Asia", "ID": "Other Asia", "TH": "Other Asia",
	"VN": "Other Asia", "PK": "Other Asia", "BD": "Other Asia",
	"AE": "Middle East", "SA": "Middle East", "OM": "Middle East",
	"QA": "Middle East", "KW": "Middle East", "IL": "Middle East",
	"EG": "Africa", "MA": "Africa", "TN": "Africa", "ZA": "Africa",
	"SN": "Africa", "GH": "Africa", "NG": "Africa",
	"BR": "Latin America", "MX": "Latin America", "AR": "Latin America",
	"CL": "Latin America", "PE": "Latin America", "CU": "Latin America",
	"RU": "Russia", "BY": "Other", "KZ": "Other", "GE": "Other",
	"UA": "Other", "RS": "Other", "MK": "Other", "AL": "Other",
	"AU": "Other", "NZ": "Other",
}

var names = map[string]string{
	"AT": "Austria", "BE": "Belgium", "BG": "Bulgaria", "HR": "Croatia",
	"CY": "Cyprus", "CZ": "Czechia", "DK": "Denmark", "EE": "Estonia",
	"FI": "Finland", "FR": "France", "DE": "Germany", "GR": "Greece",
	"HU": "Hungary", "IE": "Ireland", "IT": "Italy", "LV": "Latvia",
	"LT": "Lithuania", "LU": "Luxembourg", "MT": "Malta",
	"NL": "Netherlands", "PL": "Poland", "PT": "Portugal", "RO": "Romania",
	"SK": "Slovakia", "SI": "Slovenia", "ES": "Spain", "SE": "Sweden",
	"US": "United States", "GB": "United Kingdom", "JP": "Japan",
	"CA": "Canada", "NO": "Norway", "CH": "Switzerland", "CN": "China",
	"IN": "India", "TR": "Turkey", "KR": "South Korea", "TW": "Taiwan",
	"SG": "Singapore", "MY": "Malaysia", "ID": "Indonesia",
	"TH": "Thailand", "VN": "Vietnam", "PK": "Pakistan",
	"BD": "Bangladesh", "AE": "United Arab Emirates", "SA": "Saudi Arabia",
	"OM": "Oman", "QA": "Qatar", "KW": "Kuwait", "IL": "Israel",
	"EG": "Egypt", "MA": "Morocco", "TN": "Tunisia", "ZA": "South Africa",
	"SN": "Senegal", "GH": "Ghana", "NG": "Nigeria", "BR": "Brazil",
	"MX": "Mexico", "AR": "Argentina", "CL": "Chile", "PE": "Peru",
	"CU": "Cuba", "RU": "Russia", "BY": "Belarus", "KZ": "Kazakhstan",
	"GE": "Georgia", "UA": "Ukraine", "RS": "Serbia",
	"MK": "North Macedonia", "AL": "Albania", "AU": "Australia",
	"NZ": "New Zealand",
}

// IsEU reports whether iso2 is an EU member state
func IsEU(iso2 string) bool {
	return euMembers[iso2]
}

// IsPriceCapCoalition reports whether iso2 belongs to the EU & G7 set whose
// insurers and owners trigger the price cap
func IsPriceCapCoalition(iso2 string) bool {
	return euMembers[iso2] || g7NonEU[iso2]
}

// Name returns the country name for iso2, or iso2 itself when unknown
func Name(iso2 string) string {
	if n, ok := names[iso2]; ok {
		return n
	}
	return iso2
}

// Region returns the destination region for iso2. EU members share one
// region; unknown countries fall into "Other".
func Region(iso2 string) string {
	if euMembers[iso2] {
		return "EU"
	}
	if r, ok := regions[iso2]; ok {
		return r
	}
	if iso2 == "" {
		return "Unknown"
	}
	return "Other"
}
