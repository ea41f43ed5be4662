package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// StringArray is a JSONB-backed string slice. A nil StringArray is the
// null-sentinel meaning "matches any value" in price dimensions.
type StringArray []string

// Value implements driver.Valuer
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return errors.Errorf("unsupported type for StringArray: %T", value)
	}
}

// GormDataType implements the gorm data type interface
func (StringArray) GormDataType() string {
	return "jsonb"
}

// Contains reports whether the array contains v
func (a StringArray) Contains(v string) bool {
	for _, s := range a {
		if s == v {
			return true
		}
	}
	return false
}

// Port is a monitored port. Immutable after initial load.
type Port struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	Unlocode    *string   `gorm:"index" json:"unlocode"`
	Name        string    `gorm:"not null" json:"name"`
	CountryISO2 string    `gorm:"size:2;index;not null" json:"country_iso2"`
	Geometry    string    `gorm:"type:geometry(Point,4326)" json:"-"`
	Area        string    `json:"area"`
}

// Ship is a vessel identified by IMO. A synthetic NOTFOUND_<mmsi> IMO is
// used when the registry does not know the hull.
type Ship struct {
	IMO                 string    `gorm:"primaryKey" json:"imo"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	MMSI                string    `gorm:"index" json:"mmsi"`
	Name                string    `json:"name"`
	Type                string    `json:"type"`
	Subtype             string    `json:"subtype"`
	DWT                 float64   `json:"dwt"`
	CountryISO2         string    `gorm:"size:2" json:"country_iso2"`
	LiquidGasCapacityM3 *float64  `json:"liquid_gas_capacity_m3"`
	LiquidOilCapacityM3 *float64  `json:"liquid_oil_capacity_m3"`
	YearBuilt           *int      `json:"year_built"`
	Commodity           Commodity `gorm:"index" json:"commodity"`
	Quantity            float64   `json:"quantity"`
	Unit                string    `json:"unit"`
}

// PortCall is one provider observation of a ship at a port
type PortCall struct {
	ID            uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt     time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
	ShipIMO       string        `gorm:"not null;uniqueIndex:idx_portcall_key,priority:1" json:"ship_imo"`
	Timestamp     time.Time     `gorm:"not null;uniqueIndex:idx_portcall_key,priority:2" json:"timestamp"`
	MoveType      MoveType      `gorm:"not null;uniqueIndex:idx_portcall_key,priority:3" json:"move_type"`
	PortID        *string       `gorm:"index" json:"port_id"`
	Unlocode      *string       `json:"unlocode"`
	LoadStatus    LoadStatus    `gorm:"not null;default:na" json:"load_status"`
	PortOperation PortOperation `gorm:"not null;default:na" json:"port_operation"`
	DraughtM      *float64      `json:"draught_m"`
	RawPayload    []byte        `gorm:"type:jsonb" json:"-"`
	Ship          Ship          `gorm:"foreignKey:ShipIMO" json:"-"`
}

// Event is a non-portcall ship interaction, primarily ship-to-ship.
// STS events come in matched start/end pairs per primary ship.
type Event struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	ShipIMO            string    `gorm:"not null;index" json:"ship_imo"`
	InteractingShipIMO string    `gorm:"index" json:"interacting_ship_imo"`
	Timestamp          time.Time `gorm:"not null" json:"timestamp"`
	Kind               EventKind `gorm:"not null" json:"kind"`
	ClosestPosition    string    `gorm:"type:geometry(Point,4326)" json:"-"`
	Source             string    `json:"source"`
}

// Departure is a normalized voyage start, backed by a port call or an STS event
type Departure struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	ShipIMO    string     `gorm:"not null;index" json:"ship_imo"`
	PortID     *string    `gorm:"index" json:"port_id"`
	PortCallID *uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"port_call_id"`
	EventID    *uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"event_id"`
	Timestamp  time.Time  `gorm:"not null" json:"timestamp"`
}

// Arrival is a normalized voyage end, backed by a port call or an STS event
type Arrival struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	ShipIMO    string     `gorm:"not null;index" json:"ship_imo"`
	PortID     *string    `gorm:"index" json:"port_id"`
	PortCallID *uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"port_call_id"`
	EventID    *uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"event_id"`
	Timestamp  time.Time  `gorm:"not null" json:"timestamp"`
}

// Shipment is the business-level voyage: a departure and, once resolved, an
// arrival. STS segments are a distinct variant flagged by IsSTS and carry the
// transfer event; they never share endpoints with regular shipments.
type Shipment struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	ShipIMO     string         `gorm:"not null;index" json:"ship_imo"`
	DepartureID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"departure_id"`
	ArrivalID   *uuid.UUID     `gorm:"type:uuid;uniqueIndex" json:"arrival_id"`
	Status      ShipmentStatus `gorm:"not null" json:"status"`
	IsSTS       bool           `gorm:"not null;default:false" json:"is_sts"`
	STSEventID  *uuid.UUID     `gorm:"type:uuid" json:"sts_event_id"`
	Commodity   Commodity      `gorm:"index" json:"commodity"`
	Quantity    float64        `json:"quantity"`
	Unit        string         `json:"unit"`
	Departure   Departure      `gorm:"foreignKey:DepartureID" json:"-"`
	Arrival     *Arrival       `gorm:"foreignKey:ArrivalID" json:"-"`
}

// Position is a timestamped point observation of a ship, used for berth
// detection and map rendering only
type Position struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	ShipIMO          string    `gorm:"not null;index:idx_position_ship_time,priority:1" json:"ship_imo"`
	Timestamp        time.Time `gorm:"not null;index:idx_position_ship_time,priority:2" json:"timestamp"`
	Geometry         string    `gorm:"type:geometry(Point,4326)" json:"-"`
	SpeedKnots       *float64  `json:"speed_knots"`
	NavigationStatus string    `json:"navigation_status"`
	DestinationName  string    `json:"destination_name"`
}

// Berth is a named polygon inside a port tagged with its expected commodity
type Berth struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	PortID    string    `gorm:"not null;index" json:"port_id"`
	Name      string    `gorm:"not null" json:"name"`
	Commodity Commodity `json:"commodity"`
	Polygon   string    `gorm:"type:geometry(Polygon,4326)" json:"-"`
}

// ShipmentBerth links a shipment endpoint to the berth detected from positions
type ShipmentBerth struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	ShipmentID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_shipment_berth,priority:1" json:"shipment_id"`
	End        string     `gorm:"not null;uniqueIndex:idx_shipment_berth,priority:2" json:"end"`
	BerthID    string     `gorm:"not null" json:"berth_id"`
	PositionID *uuid.UUID `gorm:"type:uuid" json:"position_id"`
}

// Company is a legal entity from the vessel registry
type Company struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
	ProviderID  *string     `gorm:"uniqueIndex" json:"provider_id"`
	Name        string      `gorm:"not null;index" json:"name"`
	AltNames    StringArray `gorm:"type:jsonb" json:"alt_names"`
	Addresses   StringArray `gorm:"type:jsonb" json:"addresses"`
	CountryISO2 *string     `gorm:"size:2" json:"country_iso2"`
}

// ShipCompany is a bitemporal record of a company acting for a ship in a role.
// DateFrom is as reported upstream; nil means "in force since the beginning of
// the ship's tracked life". UpdatedOn is when we last confirmed the record.
type ShipCompany struct {
	ID           uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt    time.Time   `gorm:"autoCreateTime" json:"created_at"`
	ShipIMO      string      `gorm:"not null;index:idx_ship_company,priority:1" json:"ship_imo"`
	Role         CompanyRole `gorm:"not null;index:idx_ship_company,priority:2" json:"role"`
	CompanyID    *uuid.UUID  `gorm:"type:uuid" json:"company_id"`
	DateFrom     *time.Time  `json:"date_from"`
	UpdatedOn    time.Time   `gorm:"not null" json:"updated_on"`
	FailureCount int         `gorm:"not null;default:0" json:"failure_count"`
	Company      *Company    `gorm:"foreignKey:CompanyID" json:"-"`
}

// ShipFlag is a bitemporal record of a ship's flag state
type ShipFlag struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	ShipIMO   string     `gorm:"not null;index" json:"ship_imo"`
	FlagISO2  string     `gorm:"size:2;not null" json:"flag_iso2"`
	DateFrom  *time.Time `json:"date_from"`
	UpdatedOn time.Time  `gorm:"not null" json:"updated_on"`
}

// Price is a per-tonne price valid for one commodity, day, and scenario.
// Nil dimension arrays are the null-sentinel matching any value.
type Price struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	Commodity        Commodity       `gorm:"not null;index:idx_price_day,priority:1" json:"commodity"`
	Date             time.Time       `gorm:"not null;index:idx_price_day,priority:2" json:"date"`
	Scenario         PricingScenario `gorm:"not null;index:idx_price_day,priority:3" json:"scenario"`
	EURPerTonne      float64         `gorm:"not null" json:"eur_per_tonne"`
	DestinationISO2s StringArray     `gorm:"type:jsonb" json:"destination_iso2s"`
	InsurerISO2s     StringArray     `gorm:"type:jsonb" json:"insurer_iso2s"`
	OwnerISO2s       StringArray     `gorm:"type:jsonb" json:"owner_iso2s"`
	DeparturePortIDs StringArray     `gorm:"type:jsonb" json:"departure_port_ids"`
}

// PipelineFlow is an aggregated daily overland volume
type PipelineFlow struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	Date            time.Time `gorm:"not null;uniqueIndex:idx_flow_key,priority:1" json:"date"`
	Commodity       Commodity `gorm:"not null;uniqueIndex:idx_flow_key,priority:2" json:"commodity"`
	OriginISO2      string    `gorm:"size:2;not null;uniqueIndex:idx_flow_key,priority:3" json:"origin_iso2"`
	DestinationISO2 string    `gorm:"size:2;not null;uniqueIndex:idx_flow_key,priority:4" json:"destination_iso2"`
	Tonnes          float64   `gorm:"not null" json:"tonnes"`
}

// ComputedTrade is the frozen join of a trade with its parties and price,
// one row per (trade, product, scenario). Re-materialized per monthly
// partition after upstream changes.
type ComputedTrade struct {
	ID                uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt         time.Time        `gorm:"autoCreateTime" json:"created_at"`
	TradeID           string           `gorm:"not null;uniqueIndex:idx_computed_trade,priority:1" json:"trade_id"`
	FlowID            string           `gorm:"uniqueIndex:idx_computed_trade,priority:2" json:"flow_id"`
	ProductID         string           `gorm:"uniqueIndex:idx_computed_trade,priority:3" json:"product_id"`
	Scenario          PricingScenario  `gorm:"not null;uniqueIndex:idx_computed_trade,priority:4" json:"scenario"`
	ShipmentID        *uuid.UUID       `gorm:"type:uuid;index" json:"shipment_id"`
	Month             string           `gorm:"size:7;not null;index" json:"month"`
	Status            ShipmentStatus   `json:"status"`
	DepartureDate     time.Time        `json:"departure_date"`
	ArrivalDate       *time.Time       `json:"arrival_date"`
	DeparturePortID   *string          `json:"departure_port_id"`
	DestinationPortID *string          `json:"destination_port_id"`
	OriginISO2        string           `gorm:"size:2;index" json:"origin_iso2"`
	DestinationISO2   string           `gorm:"size:2;index" json:"destination_iso2"`
	DestinationRegion string           `json:"destination_region"`
	PricingCommodity  Commodity        `gorm:"not null" json:"pricing_commodity"`
	Commodity         Commodity        `gorm:"index" json:"commodity"`
	EURPerTonne       *float64         `json:"eur_per_tonne"`
	Tonnes            float64          `json:"tonnes"`
	ValueEUR          *float64         `json:"value_eur"`
	InsurerNames      StringArray      `gorm:"type:jsonb" json:"insurer_names"`
	InsurerISO2s      StringArray      `gorm:"type:jsonb" json:"insurer_iso2s"`
	OwnerNames        StringArray      `gorm:"type:jsonb" json:"owner_names"`
	OwnerISO2s        StringArray      `gorm:"type:jsonb" json:"owner_iso2s"`
	ManagerISO2s      StringArray      `gorm:"type:jsonb" json:"manager_iso2s"`
	FlagISO2s         StringArray      `gorm:"type:jsonb" json:"flag_iso2s"`
	StepZoneIDs       StringArray      `gorm:"type:jsonb" json:"step_zone_ids"`
	StepZoneNames     StringArray      `gorm:"type:jsonb" json:"step_zone_names"`
	StepZoneISO2s     StringArray      `gorm:"type:jsonb" json:"step_zone_iso2s"`
	StepZoneRegions   StringArray      `gorm:"type:jsonb" json:"step_zone_regions"`
	LargestVesselType string           `json:"largest_vessel_type"`
	LargestVesselCap  float64          `json:"largest_vessel_capacity"`
	AvgVesselAge      *float64         `json:"avg_vessel_age"`
	SanctionCoverage  SanctionCoverage `json:"ownership_sanction_coverage"`
}

// CounterRow is the published time series
type CounterRow struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	Date              time.Time       `gorm:"not null;uniqueIndex:idx_counter_key,priority:1" json:"date"`
	Commodity         Commodity       `gorm:"not null;uniqueIndex:idx_counter_key,priority:2" json:"commodity"`
	DestinationISO2   string          `gorm:"size:2;not null;uniqueIndex:idx_counter_key,priority:3" json:"destination_iso2"`
	Scenario          PricingScenario `gorm:"not null;uniqueIndex:idx_counter_key,priority:4" json:"scenario"`
	Version           CounterVersion  `gorm:"not null;uniqueIndex:idx_counter_key,priority:5" json:"version"`
	CommodityGroup    string          `gorm:"index" json:"commodity_group"`
	DestinationRegion string          `gorm:"index" json:"destination_region"`
	ValueEUR          float64         `gorm:"not null" json:"value_eur"`
	ValueTonnes       float64         `gorm:"not null" json:"value_tonnes"`
}

// ProviderCall logs a completed upstream call; it is the oracle for the
// already-queried-windows call economy
type ProviderCall struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	Provider    string    `gorm:"not null;index:idx_provider_call,priority:1" json:"provider"`
	Subject     string    `gorm:"not null;index:idx_provider_call,priority:2" json:"subject"`
	WindowFrom  time.Time `gorm:"not null" json:"window_from"`
	WindowTo    time.Time `gorm:"not null" json:"window_to"`
	Regime      string    `json:"regime"`
	RecordCount int       `json:"record_count"`
	CompletedAt time.Time `gorm:"not null" json:"completed_at"`
}

// CurrencyRate is a daily EUR-based exchange rate
type CurrencyRate struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	Date      time.Time `gorm:"not null;uniqueIndex:idx_currency_day,priority:1" json:"date"`
	Currency  string    `gorm:"size:3;not null;uniqueIndex:idx_currency_day,priority:2" json:"currency"`
	PerEUR    float64   `gorm:"not null" json:"per_eur"`
}

// Zone is a third-party provider zone (port, country, or region level)
type Zone struct {
	ID     string `gorm:"primaryKey" json:"id"`
	Name   string `gorm:"not null" json:"name"`
	ISO2   string `gorm:"size:2" json:"iso2"`
	Region string `json:"region"`
}

// KplerTrade is a per-trade record from the third-party trade provider,
// used by the newer counter versions
type KplerTrade struct {
	ID                string      `gorm:"primaryKey" json:"id"`
	CreatedAt         time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
	FlowID            string      `gorm:"index" json:"flow_id"`
	ProductID         string      `gorm:"index" json:"product_id"`
	Commodity         Commodity   `gorm:"index" json:"commodity"`
	OriginZoneID      string      `json:"origin_zone_id"`
	DestinationZoneID string      `json:"destination_zone_id"`
	DepartureUTC      time.Time   `json:"departure_utc"`
	ArrivalUTC        *time.Time  `json:"arrival_utc"`
	VesselIMOs        StringArray `gorm:"type:jsonb" json:"vessel_imos"`
	BuyerID           *string     `json:"buyer_id"`
	SellerID          *string     `json:"seller_id"`
	ValueTonne        *float64    `json:"value_tonne"`
	ValueM3           *float64    `json:"value_m3"`
	ValueEnergyMWh    *float64    `json:"value_energy_mwh"`
}

// SetupModels configures GORM models and runs migrations
func SetupModels(db *gorm.DB) error {
	// Apply all migrations
	err := db.AutoMigrate(
		&Port{},
		&Ship{},
		&PortCall{},
		&Event{},
		&Departure{},
		&Arrival{},
		&Shipment{},
		&Position{},
		&Berth{},
		&ShipmentBerth{},
		&Company{},
		&ShipCompany{},
		&ShipFlag{},
		&Price{},
		&PipelineFlow{},
		&ComputedTrade{},
		&CounterRow{},
		&ProviderCall{},
		&CurrencyRate{},
		&Zone{},
		&KplerTrade{},
	)

	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}

	return nil
}
