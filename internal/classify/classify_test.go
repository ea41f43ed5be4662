package classify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/fossiltrack/internal/models"
)

func TestShipCrudeOilPriority(t *testing.T) {
	// "crude" wins over the generic tanker match
	res := Ship("Crude Oil Tanker", "", 150000, nil)
	require.Equal(t, models.CommodityCrudeOil, res.Commodity)
	require.Equal(t, 150000.0, res.Quantity)
	require.Equal(t, "tonne", res.Unit)
}

func TestShipOilOrChemical(t *testing.T) {
	res := Ship("Oil/Chemical Tanker", "", 45000, nil)
	require.Equal(t, models.CommodityOilOrChemical, res.Commodity)
}

func TestShipLNGUsesGasCapacity(t *testing.T) {
	capM3 := 174000.0
	res := Ship("Gas Carrier", "LNG Carrier", 90000, &capM3)
	require.Equal(t, models.CommodityLNG, res.Commodity)
	require.Equal(t, capM3, res.Quantity)
	require.Equal(t, "m3", res.Unit)
}

func TestShipLNGWithoutCapacityFallsBackToDWT(t *testing.T) {
	res := Ship("Gas Carrier", "LNG Carrier", 90000, nil)
	require.Equal(t, models.CommodityLNG, res.Commodity)
	require.Equal(t, 90000.0, res.Quantity)
	require.Equal(t, "tonne", res.Unit)
}

func TestShipBulkAndUnknown(t *testing.T) {
	res := Ship("Bulk Carrier", "", 80000, nil)
	require.Equal(t, models.CommodityBulk, res.Commodity)

	res = Ship("Passenger Ship", "", 5000, nil)
	require.Equal(t, models.CommodityUnknown, res.Commodity)
}

func TestApplyIsDeterministic(t *testing.T) {
	ship := &models.Ship{IMO: "9000001", Type: "Crude Oil Tanker", DWT: 120000}
	Apply(ship)
	first := ship.Commodity

	Apply(ship)
	require.Equal(t, first, ship.Commodity)
	require.Equal(t, models.CommodityCrudeOil, ship.Commodity)
	require.Equal(t, 120000.0, ship.Quantity)
}
