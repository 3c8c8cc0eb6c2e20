package reports_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"storepulse/internal/dashboard"
	"storepulse/internal/reports"
	"storepulse/internal/settings"
	"storepulse/internal/testsupport"
	"storepulse/internal/visits"
)

type staticFetcher struct {
	records []visits.VisitRecord
}

func (f *staticFetcher) FetchVisitors(ctx context.Context, scope visits.QueryScope) ([]visits.VisitRecord, error) {
	// Honor the device filter so per-store rows differ.
	if len(scope.DeviceIDs) == 0 {
		return f.records, nil
	}
	var filtered []visits.VisitRecord
	for _, r := range f.records {
		for _, d := range r.Devices {
			for _, want := range scope.DeviceIDs {
				if d == want {
					filtered = append(filtered, r)
				}
			}
		}
	}
	return filtered, nil
}

func staticFactory(f *staticFetcher) dashboard.FetcherFactory {
	return func(cfg settings.APIConfig) dashboard.VisitorFetcher { return f }
}

func recordsOnDevices(day time.Time, perDevice map[int64]int) []visits.VisitRecord {
	var records []visits.VisitRecord
	for device, count := range perDevice {
		for i := 0; i < count; i++ {
			start := time.Date(day.Year(), day.Month(), day.Day(), 10, i, 0, 0, time.UTC)
			end := start.Add(3 * time.Minute)
			sex := visits.SexMale
			age := 30.0
			records = append(records, visits.VisitRecord{
				Start:   start.Format(time.RFC3339),
				End:     end.Format(time.RFC3339),
				Age:     &age,
				Sex:     &sex,
				Devices: []int64{device},
			})
		}
	}
	return records
}

func TestGenerateGeneralCSV(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	client := testsupport.CreateTestClient(db, "Acme Retail")
	require.NoError(t, settings.SaveAPIConfig(db, client.ID, settings.APIConfig{
		BaseURL: "https://api.example.com", APIToken: "token",
	}))

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	fetcher := &staticFetcher{records: testsupport.SampleVisitRecords(day, 8)}
	gen := reports.NewGenerator(testsupport.GetLogger(), staticFactory(fetcher))

	export, err := gen.Generate(context.Background(), db, reports.Request{
		ClientID: client.ID,
		Type:     reports.TypeGeneral,
		Format:   reports.FormatCSV,
		From:     "2025-03-10",
		To:       "2025-03-10",
		Timezone: "UTC",
	})
	require.NoError(t, err)

	assert.Equal(t, "text/csv", export.ContentType)
	assert.Contains(t, export.Filename, "general-")

	rows, err := csv.NewReader(bytes.NewReader(export.Data)).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, []string{"Metric", "Value"}, rows[0])
	assert.Equal(t, []string{"Total visitors", "8"}, rows[1])
}

func TestGenerateStoresXLSXAggregatesPerStore(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	client := testsupport.CreateTestClient(db, "Acme Retail")
	downtown := testsupport.CreateTestStore(db, client.ID, "Downtown", "folder-1")
	mall := testsupport.CreateTestStore(db, client.ID, "Mall", "folder-2")
	testsupport.CreateTestDevice(db, downtown.ID, "Entrance", 101)
	testsupport.CreateTestDevice(db, mall.ID, "Entrance", 202)
	require.NoError(t, settings.SaveAPIConfig(db, client.ID, settings.APIConfig{
		BaseURL: "https://api.example.com", APIToken: "token",
	}))

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	fetcher := &staticFetcher{records: recordsOnDevices(day, map[int64]int{101: 5, 202: 2})}
	gen := reports.NewGenerator(testsupport.GetLogger(), staticFactory(fetcher))

	export, err := gen.Generate(context.Background(), db, reports.Request{
		ClientID: client.ID,
		Type:     reports.TypeStores,
		Format:   reports.FormatXLSX,
		From:     "2025-03-10",
		To:       "2025-03-10",
		Timezone: "UTC",
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(export.Data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Stores")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	counts := map[string]string{}
	for _, row := range rows[1:] {
		counts[row[0]] = row[1]
	}
	assert.Equal(t, "5", counts["Downtown"])
	assert.Equal(t, "2", counts["Mall"])
}

func TestGenerateClientsReportListsStats(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	client := testsupport.CreateTestClient(db, "Acme Retail")
	store := testsupport.CreateTestStore(db, client.ID, "Downtown", "folder-1")
	testsupport.CreateTestDevice(db, store.ID, "Entrance", 101)

	gen := reports.NewGenerator(testsupport.GetLogger(), nil)
	export, err := gen.Generate(context.Background(), db, reports.Request{
		Type:   reports.TypeClients,
		Format: reports.FormatCSV,
	})
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(export.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Acme Retail", rows[1][0])
	assert.Equal(t, "1", rows[1][5]) // stores
	assert.Equal(t, "1", rows[1][6]) // devices
}

func TestGenerateDevicesReportScopedToStore(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	client := testsupport.CreateTestClient(db, "Acme Retail")
	downtown := testsupport.CreateTestStore(db, client.ID, "Downtown", "folder-1")
	mall := testsupport.CreateTestStore(db, client.ID, "Mall", "folder-2")
	testsupport.CreateTestDevice(db, downtown.ID, "Entrance", 101)
	testsupport.CreateTestDevice(db, mall.ID, "Entrance", 202)

	gen := reports.NewGenerator(testsupport.GetLogger(), nil)
	export, err := gen.Generate(context.Background(), db, reports.Request{
		ClientID: client.ID,
		StoreID:  &downtown.ID,
		Type:     reports.TypeDevices,
		Format:   reports.FormatCSV,
	})
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(export.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "101", rows[1][1])
}

func TestGenerateRejectsUnknownType(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	gen := reports.NewGenerator(testsupport.GetLogger(), nil)

	_, err := gen.Generate(context.Background(), db, reports.Request{Type: "weekly"})
	assert.Error(t, err)
}
