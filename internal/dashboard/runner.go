package dashboard

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"gorm.io/gorm"

	"storepulse/internal/config"
	"storepulse/internal/displayforce"
	"storepulse/internal/settings"
	"storepulse/internal/visits"
)

// VisitorFetcher is the slice of the provider client the runner needs.
type VisitorFetcher interface {
	FetchVisitors(ctx context.Context, scope visits.QueryScope) ([]visits.VisitRecord, error)
}

// FetcherFactory builds a provider client from a stored config. Swappable in
// tests.
type FetcherFactory func(cfg settings.APIConfig) VisitorFetcher

// Result is one completed fetch-aggregate cycle.
type Result struct {
	Version       uint64                 `json:"version"`
	Scope         visits.QueryScope      `json:"scope"`
	Aggregate     visits.AggregateResult `json:"aggregate"`
	Widgets       []string               `json:"widgets"`
	ConfigMissing bool                   `json:"config_missing"`
	FetchError    bool                   `json:"fetch_error"`
	Stale         bool                   `json:"stale"`
}

type viewerState struct {
	version uint64
	cancel  context.CancelFunc
}

// Runner executes fetch-aggregate cycles. Each viewer key (user + client)
// carries a version counter: starting a new cycle bumps the counter and
// cancels the previous in-flight fetch, and a cycle whose version has been
// overtaken by the time it resolves discards its result. Last writer wins by
// version, not by arrival time.
type Runner struct {
	logger  *slog.Logger
	factory FetcherFactory

	mu      sync.Mutex
	viewers map[string]*viewerState
}

// NewRunner creates a runner with the real provider client factory.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		logger:  logger,
		factory: DefaultFactory,
		viewers: make(map[string]*viewerState),
	}
}

// NewRunnerWithFactory creates a runner with a custom fetcher factory.
func NewRunnerWithFactory(logger *slog.Logger, factory FetcherFactory) *Runner {
	r := NewRunner(logger)
	r.factory = factory
	return r
}

// DefaultFactory builds the real provider client from a stored config.
func DefaultFactory(cfg settings.APIConfig) VisitorFetcher {
	appCfg := config.GetConfig()
	return displayforce.NewClient(displayforce.Config{
		BaseURL:           cfg.BaseURL,
		AnalyticsPath:     cfg.AnalyticsPath,
		APIToken:          cfg.APIToken,
		CustomHeaderName:  cfg.CustomHeaderName,
		CustomHeaderValue: cfg.CustomHeaderValue,
		ProxyPrefix:       appCfg.ProviderProxyPrefix,
		Timeout:           time.Duration(appCfg.ProviderTimeoutSeconds) * time.Second,
	}, slog.Default())
}

// begin registers a new cycle for the viewer, cancelling any in-flight one.
func (r *Runner) begin(ctx context.Context, viewerKey string) (context.Context, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.viewers[viewerKey]
	if !ok {
		state = &viewerState{}
		r.viewers[viewerKey] = state
	}
	if state.cancel != nil {
		state.cancel()
	}

	state.version++
	cycleCtx, cancel := context.WithCancel(ctx)
	state.cancel = cancel
	return cycleCtx, state.version
}

// current returns the viewer's latest version.
func (r *Runner) current(viewerKey string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.viewers[viewerKey]; ok {
		return state.version
	}
	return 0
}

// Run executes one full cycle for a viewer. A missing provider config skips
// the fetch entirely and yields zeroed aggregates; a fetch failure degrades
// to whatever was accumulated, flagged via FetchError.
func (r *Runner) Run(ctx context.Context, db *gorm.DB, viewerKey string, clientID uint, sel Selection) (Result, error) {
	cycleCtx, version := r.begin(ctx, viewerKey)

	result := Result{
		Version: version,
		Widgets: settings.GetWidgets(db, clientID),
	}

	cfg, err := settings.GetAPIConfig(db, clientID)
	if err != nil {
		return result, err
	}

	loc := resolveLocation(sel.Timezone)
	normalizer := visits.NewNormalizer(loc)

	scope, err := BuildScope(db, cfg, sel, time.Now())
	if err != nil {
		return result, err
	}
	result.Scope = scope

	if cfg == nil {
		result.ConfigMissing = true
		result.Aggregate = visits.EmptyResult()
		r.logger.Debug("no provider config, skipping fetch",
			slog.Uint64("client_id", uint64(clientID)))
		return r.finish(viewerKey, result), nil
	}

	records, fetchErr := r.factory(*cfg).FetchVisitors(cycleCtx, scope)
	if fetchErr != nil {
		// Degrade, never fail the dashboard: partial or empty data renders as
		// zeros, with the flag letting the UI annotate the ambiguity.
		result.FetchError = true
		r.logger.Warn("visitor fetch degraded",
			slog.Uint64("client_id", uint64(clientID)),
			slog.Int("partial_records", len(records)),
			slog.Any("error", fetchErr))
	}

	result.Aggregate = visits.Aggregate(records, scope, normalizer)
	return r.finish(viewerKey, result), nil
}

// finish applies the check-and-discard rule: a result whose version has been
// overtaken is marked stale and its aggregate dropped.
func (r *Runner) finish(viewerKey string, result Result) Result {
	if r.current(viewerKey) != result.Version {
		result.Stale = true
		result.Aggregate = visits.EmptyResult()
		r.logger.Debug("discarding stale cycle",
			slog.String("viewer", viewerKey),
			slog.Uint64("version", result.Version))
	}
	return result
}
