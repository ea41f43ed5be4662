package models

// MoveType is the direction of a port call
type MoveType string

// Move types reported by the portcall provider
const (
	MoveArrival   MoveType = "arrival"
	MoveDeparture MoveType = "departure"
)

// LoadStatus is the cargo state of a ship at a port call
type LoadStatus string

// Load statuses reported by the portcall provider
const (
	LoadStatusNA             LoadStatus = "na"
	LoadStatusInBallast      LoadStatus = "in_ballast"
	LoadStatusPartiallyLaden LoadStatus = "partially_laden"
	LoadStatusFullyLaden     LoadStatus = "fully_laden"
)

// PortOperation is the cargo operation performed during a port call
type PortOperation string

// Port operations reported by the portcall provider
const (
	PortOpNA        PortOperation = "na"
	PortOpLoad      PortOperation = "load"
	PortOpDischarge PortOperation = "discharge"
	PortOpBoth      PortOperation = "both"
	PortOpNone      PortOperation = "none"
)

// ShipmentStatus is the lifecycle state of a shipment
type ShipmentStatus string

// Shipment statuses
const (
	ShipmentOngoing           ShipmentStatus = "ongoing"
	ShipmentCompleted         ShipmentStatus = "completed"
	ShipmentUndetectedArrival ShipmentStatus = "undetected_arrival"
)

// Commodity is a cargo commodity class
type Commodity string

// Commodity classes derived from ship type/subtype, plus the pricing-only
// crude grades and the pipeline commodities
const (
	CommodityCrudeOil      Commodity = "crude_oil"
	CommodityOilOrChemical Commodity = "oil_or_chemical"
	CommodityOilProducts   Commodity = "oil_products"
	CommodityOilOrOre      Commodity = "oil_or_ore"
	CommodityLNG           Commodity = "lng"
	CommodityLPG           Commodity = "lpg"
	CommodityGeneralCargo  Commodity = "general_cargo"
	CommodityBulk          Commodity = "bulk"
	CommodityCoal          Commodity = "coal"
	CommodityUnknown       Commodity = "unknown"

	CommodityCrudeOilESPO  Commodity = "crude_oil_espo"
	CommodityCrudeOilUrals Commodity = "crude_oil_urals"

	CommodityNaturalGas  Commodity = "natural_gas"
	CommodityPipelineOil Commodity = "pipeline_oil"
	CommodityPipelineLNG Commodity = "lng_pipeline"
)

// Group returns the commodity group used by the counter and the sanity check
func (c Commodity) Group() string {
	switch c {
	case CommodityCrudeOil, CommodityCrudeOilESPO, CommodityCrudeOilUrals,
		CommodityOilOrChemical, CommodityOilProducts, CommodityOilOrOre,
		CommodityPipelineOil:
		return "oil"
	case CommodityLNG, CommodityLPG, CommodityNaturalGas, CommodityPipelineLNG:
		return "gas"
	case CommodityCoal, CommodityBulk:
		return "coal"
	default:
		return "other"
	}
}

// CompanyRole is the function a company performs for a ship
type CompanyRole string

// Company roles tracked against ships
const (
	RoleInsurer CompanyRole = "insurer"
	RoleOwner   CompanyRole = "owner"
	RoleManager CompanyRole = "manager"
)

// PricingScenario selects which price set values a trade
type PricingScenario string

// Pricing scenarios; both must be computable for every trade
const (
	ScenarioDefault  PricingScenario = "default"
	ScenarioPriceCap PricingScenario = "pricecap"
)

// AllScenarios lists the scenarios materialized for every trade
var AllScenarios = []PricingScenario{ScenarioDefault, ScenarioPriceCap}

// EventKind is the kind of non-portcall ship event
type EventKind string

// Event kinds
const (
	EventSTSStart EventKind = "sts_start"
	EventSTSEnd   EventKind = "sts_end"
)

// CounterVersion selects the assembler variant
type CounterVersion string

// Counter versions; v1 uses aggregate third-party flows, v2 per-trade records
const (
	CounterV1 CounterVersion = "v1"
	CounterV2 CounterVersion = "v2"
)

// SanctionCoverage tags a computed trade by the carrier's exposure to the
// price-cap coalition
type SanctionCoverage string

// Sanction coverage buckets
const (
	CoverageEUG7    SanctionCoverage = "Owned and / or insured in EU & G7"
	CoverageNorway  SanctionCoverage = "Insured in Norway"
	CoverageOthers  SanctionCoverage = "Others"
	CoverageUnknown SanctionCoverage = "Unknown"
)
