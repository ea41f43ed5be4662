package berth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"example.com/fossiltrack/internal/models"
)

var testBerths = []models.Berth{
	{ID: "RUNVS-OIL-1", PortID: "RUNVS", Name: "Sheskharis 1", Commodity: models.CommodityCrudeOil,
		Polygon: "POLYGON((37.78 44.70,37.80 44.70,37.80 44.72,37.78 44.72,37.78 44.70))"},
	{ID: "RUNVS-COAL-1", PortID: "RUNVS", Name: "Coal pier", Commodity: models.CommodityCoal,
		Polygon: "POLYGON((37.82 44.70,37.84 44.70,37.84 44.72,37.82 44.72,37.82 44.70))"},
}

func pos(at string, wktPoint string, speed float64) models.Position {
	t, _ := time.Parse("2006-01-02T15:04", at)
	return models.Position{
		ID:         uuid.New(),
		ShipIMO:    "9000001",
		Timestamp:  t,
		Geometry:   wktPoint,
		SpeedKnots: &speed,
	}
}

func TestDetectPicksContainingBerth(t *testing.T) {
	d, err := NewDetector(testBerths)
	require.NoError(t, err)

	m := d.Detect([]models.Position{
		pos("2023-01-02T00:00", "POINT(37.79 44.71)", 0.2),
		pos("2023-01-02T01:00", "POINT(37.79 44.71)", 0.1),
		pos("2023-01-02T02:00", "POINT(37.83 44.71)", 0.3),
	})
	require.NotNil(t, m)
	require.Equal(t, "RUNVS-OIL-1", m.Berth.ID)
	require.Equal(t, 2, m.Hits)
}

func TestDetectIgnoresUnderwayPositions(t *testing.T) {
	d, err := NewDetector(testBerths)
	require.NoError(t, err)

	m := d.Detect([]models.Position{
		pos("2023-01-02T00:00", "POINT(37.79 44.71)", 12.0),
	})
	require.Nil(t, m)
}

func TestDetectNoBerthOutsidePolygons(t *testing.T) {
	d, err := NewDetector(testBerths)
	require.NoError(t, err)

	m := d.Detect([]models.Position{
		pos("2023-01-02T00:00", "POINT(30.0 60.0)", 0.1),
	})
	require.Nil(t, m)
}

func TestNewDetectorRejectsBadPolygon(t *testing.T) {
	_, err := NewDetector([]models.Berth{{ID: "bad", Polygon: "POINT(1 2)"}})
	require.Error(t, err)
}
