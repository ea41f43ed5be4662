package parties

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"example.com/fossiltrack/internal/models"
)

const bufferDays = 14 * 24 * time.Hour

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func datePtr(s string) *time.Time {
	t := date(s)
	return &t
}

func TestApplicablePicksLatestBeforeCutoff(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	history := []models.ShipCompany{
		{CompanyID: &a, DateFrom: datePtr("2022-01-01")},
		{CompanyID: &b, DateFrom: datePtr("2022-06-01")},
	}

	got := Applicable(history, date("2022-07-15"), bufferDays)
	require.NotNil(t, got)
	require.Equal(t, b, *got.CompanyID)

	got = Applicable(history, date("2022-03-01"), bufferDays)
	require.NotNil(t, got)
	require.Equal(t, a, *got.CompanyID)
}

func TestApplicableBufferAbsorbsReportingLag(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	history := []models.ShipCompany{
		{CompanyID: &a, DateFrom: nil},
		{CompanyID: &b, DateFrom: datePtr("2022-06-01")},
	}

	// Departure 2022-05-20: 2022-06-01 is within the 14-day buffer
	got := Applicable(history, date("2022-05-20"), bufferDays)
	require.NotNil(t, got)
	require.Equal(t, b, *got.CompanyID)

	// Departure 2022-05-01: 2022-06-01 is past the buffer, nil record applies
	got = Applicable(history, date("2022-05-01"), bufferDays)
	require.NotNil(t, got)
	require.Equal(t, a, *got.CompanyID)
	require.Nil(t, got.DateFrom)
}

func TestApplicableNilDateFromCoversTrackedLife(t *testing.T) {
	c := uuid.New()
	history := []models.ShipCompany{
		{CompanyID: &c, DateFrom: nil},
		{CompanyID: &c, DateFrom: datePtr("2022-05-01")},
	}

	// A shipment departing well before the reported start still resolves
	got := Applicable(history, date("2022-04-01"), bufferDays)
	require.NotNil(t, got)
	require.Equal(t, c, *got.CompanyID)
}

func TestApplicableEmptyHistory(t *testing.T) {
	require.Nil(t, Applicable(nil, date("2022-04-01"), bufferDays))
}

func TestApplicableFlag(t *testing.T) {
	history := []models.ShipFlag{
		{FlagISO2: "PA", DateFrom: nil},
		{FlagISO2: "GA", DateFrom: datePtr("2022-09-01")},
	}

	got := ApplicableFlag(history, date("2022-10-01"), bufferDays)
	require.NotNil(t, got)
	require.Equal(t, "GA", got.FlagISO2)

	got = ApplicableFlag(history, date("2022-01-01"), bufferDays)
	require.NotNil(t, got)
	require.Equal(t, "PA", got.FlagISO2)
}

func TestSortHistoryNilFirst(t *testing.T) {
	history := []models.ShipCompany{
		{DateFrom: datePtr("2022-06-01")},
		{DateFrom: nil},
		{DateFrom: datePtr("2022-01-01")},
	}
	SortHistory(history)

	require.Nil(t, history[0].DateFrom)
	require.Equal(t, date("2022-01-01"), *history[1].DateFrom)
	require.Equal(t, date("2022-06-01"), *history[2].DateFrom)
}
