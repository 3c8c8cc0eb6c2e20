// Package reports generates downloadable exports: network or store level,
// as spreadsheets or CSV. Visitor-backed reports run one aggregation per
// store through a worker pool so a large network doesn't serialize its
// provider fetches.
package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"log/slog"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"storepulse/internal/clients"
	"storepulse/internal/dashboard"
	"storepulse/internal/pkg/async"
	"storepulse/internal/settings"
	"storepulse/internal/stores"
	"storepulse/internal/visits"
)

// Export formats.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

// Report types.
const (
	TypeGeneral = "general"
	TypeClients = "clients"
	TypeStores  = "stores"
	TypeDevices = "devices"
)

// Request describes one export.
type Request struct {
	ClientID uint
	StoreID  *uint
	Type     string
	Format   string
	From     string
	To       string
	Timezone string
}

// Export is a generated file ready for download.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Generator builds exports. The fetcher factory is the same provider-client
// seam the dashboard uses, swappable in tests.
type Generator struct {
	logger  *slog.Logger
	factory dashboard.FetcherFactory
	pool    *async.Pool
}

// NewGenerator creates a generator. A nil factory means the real provider
// client.
func NewGenerator(logger *slog.Logger, factory dashboard.FetcherFactory) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if factory == nil {
		factory = dashboard.DefaultFactory
	}
	return &Generator{
		logger:  logger,
		factory: factory,
		pool:    async.NewPool(4),
	}
}

// table is the intermediate form every report reduces to.
type table struct {
	title  string
	header []string
	rows   [][]string
}

// Generate builds the requested export.
func (g *Generator) Generate(ctx context.Context, db *gorm.DB, req Request) (*Export, error) {
	var (
		tbl table
		err error
	)

	switch req.Type {
	case TypeGeneral:
		tbl, err = g.generalTable(ctx, db, req)
	case TypeClients:
		tbl, err = g.clientsTable(db)
	case TypeStores:
		tbl, err = g.storesTable(ctx, db, req)
	case TypeDevices:
		tbl, err = g.devicesTable(db, req)
	default:
		return nil, fmt.Errorf("unknown report type: %s", req.Type)
	}
	if err != nil {
		return nil, err
	}

	stamp := time.Now().UTC().Format("2006-01-02")
	switch req.Format {
	case FormatCSV:
		data, err := renderCSV(tbl)
		if err != nil {
			return nil, err
		}
		return &Export{
			Filename:    fmt.Sprintf("%s-%s.csv", req.Type, stamp),
			ContentType: "text/csv",
			Data:        data,
		}, nil
	case FormatXLSX, "":
		data, err := renderXLSX(tbl)
		if err != nil {
			return nil, err
		}
		return &Export{
			Filename:    fmt.Sprintf("%s-%s.xlsx", req.Type, stamp),
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        data,
		}, nil
	default:
		return nil, fmt.Errorf("unknown report format: %s", req.Format)
	}
}

// aggregateScope fetches and aggregates visitors for a single scope. Missing
// provider config degrades to a zero aggregate, same as the dashboard.
func (g *Generator) aggregateScope(ctx context.Context, db *gorm.DB, req Request, storeID *uint) (visits.AggregateResult, error) {
	cfg, err := settings.GetAPIConfig(db, req.ClientID)
	if err != nil {
		return visits.EmptyResult(), err
	}
	sel := dashboard.Selection{StoreID: storeID, From: req.From, To: req.To, Timezone: req.Timezone}
	scope, err := dashboard.BuildScope(db, cfg, sel, time.Now())
	if err != nil {
		return visits.EmptyResult(), err
	}
	if cfg == nil {
		return visits.EmptyResult(), nil
	}

	records, fetchErr := g.factory(*cfg).FetchVisitors(ctx, scope)
	if fetchErr != nil {
		g.logger.Warn("report fetch degraded",
			slog.Uint64("client_id", uint64(req.ClientID)),
			slog.Any("error", fetchErr))
	}

	loc := time.Local
	if req.Timezone != "" {
		if parsed, err := time.LoadLocation(req.Timezone); err == nil {
			loc = parsed
		}
	}
	return visits.Aggregate(records, scope, visits.NewNormalizer(loc)), nil
}

func (g *Generator) generalTable(ctx context.Context, db *gorm.DB, req Request) (table, error) {
	agg, err := g.aggregateScope(ctx, db, req, req.StoreID)
	if err != nil {
		return table{}, err
	}

	rows := [][]string{
		{"Total visitors", strconv.Itoa(agg.TotalVisitors)},
		{"Average visitors per day", strconv.Itoa(agg.AvgVisitorsPerDay)},
		{"Average visit duration", visits.FormatDuration(agg.AvgVisitSeconds)},
		{"Male visitors", strconv.Itoa(agg.GenderStats.Male)},
		{"Female visitors", strconv.Itoa(agg.GenderStats.Female)},
	}
	for i, label := range []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"} {
		rows = append(rows, []string{"Visits on " + label, strconv.Itoa(agg.DailyStats[i])})
	}

	return table{title: "General", header: []string{"Metric", "Value"}, rows: rows}, nil
}

func (g *Generator) clientsTable(db *gorm.DB) (table, error) {
	withStats, err := clients.GetClientsWithStats(db)
	if err != nil {
		return table{}, err
	}

	rows := make([][]string, len(withStats))
	for i, c := range withStats {
		rows[i] = []string{
			c.Name, c.Company, c.CountryName, c.Status, c.Plan,
			strconv.FormatInt(c.StoreCount, 10),
			strconv.FormatInt(c.DeviceCount, 10),
			strconv.FormatInt(c.UserCount, 10),
		}
	}
	return table{
		title:  "Clients",
		header: []string{"Name", "Company", "Country", "Status", "Plan", "Stores", "Devices", "Users"},
		rows:   rows,
	}, nil
}

// storesTable aggregates every store of the client in parallel through the
// worker pool; each task is an independent provider fetch.
func (g *Generator) storesTable(ctx context.Context, db *gorm.DB, req Request) (table, error) {
	clientStores, err := stores.GetStoresByClient(db, req.ClientID)
	if err != nil {
		return table{}, err
	}

	tasks := make([]async.Task, len(clientStores))
	for i, store := range clientStores {
		storeID := store.ID
		tasks[i] = async.Task{
			Name: strconv.FormatUint(uint64(storeID), 10),
			Execute: func() (interface{}, error) {
				return g.aggregateScope(ctx, db, req, &storeID)
			},
		}
	}
	results := g.pool.Execute(ctx, tasks)

	rows := make([][]string, 0, len(clientStores))
	for _, store := range clientStores {
		key := strconv.FormatUint(uint64(store.ID), 10)
		result, ok := results[key]
		if !ok || result.Err != nil {
			rows = append(rows, []string{store.Name, "-", "-", "-", "-", "-"})
			continue
		}
		agg := result.Data.(visits.AggregateResult)
		rows = append(rows, []string{
			store.Name,
			strconv.Itoa(agg.TotalVisitors),
			strconv.Itoa(agg.AvgVisitorsPerDay),
			visits.FormatDuration(agg.AvgVisitSeconds),
			strconv.Itoa(agg.GenderStats.Male),
			strconv.Itoa(agg.GenderStats.Female),
		})
	}

	return table{
		title:  "Stores",
		header: []string{"Store", "Visitors", "Avg/Day", "Avg Duration", "Male", "Female"},
		rows:   rows,
	}, nil
}

func (g *Generator) devicesTable(db *gorm.DB, req Request) (table, error) {
	var devices []stores.Device
	var err error
	if req.StoreID != nil {
		devices, err = stores.GetDevicesByStore(db, *req.StoreID)
	} else {
		devices, err = stores.GetDevicesByClient(db, req.ClientID)
	}
	if err != nil {
		return table{}, err
	}

	rows := make([][]string, len(devices))
	for i, d := range devices {
		lastSync := ""
		if !d.LastSyncAt.IsZero() {
			lastSync = d.LastSyncAt.Format(time.RFC3339)
		}
		rows[i] = []string{
			d.Name,
			strconv.FormatInt(d.ProviderDeviceID, 10),
			d.ConnectionState,
			lastSync,
		}
	}
	return table{
		title:  "Devices",
		header: []string{"Device", "Provider ID", "Connection", "Last Sync"},
		rows:   rows,
	}, nil
}

func renderCSV(tbl table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(tbl.header); err != nil {
		return nil, err
	}
	for _, row := range tbl.rows {
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderXLSX(tbl table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := tbl.title
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	for col, value := range tbl.header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			return nil, err
		}
	}
	for r, row := range tbl.rows {
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, r+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
