package service

import (
	"context"
	"log/slog"
	"sync"

	"water-monitoring/internal/apperr"
	"water-monitoring/internal/observability"
)

// ReportView is one session's report screen. Each kind keeps its last
// successful report; a failed fetch leaves it untouched and a fetch that
// was superseded, or finished after the view closed, is discarded.
type ReportView struct {
	mu         sync.Mutex
	closed     bool
	generation map[Kind]uint64
	loading    map[Kind]bool
	last       map[Kind]*HourlyReport
}

// NewReportView creates an open, empty view
func NewReportView() *ReportView {
	return &ReportView{
		generation: map[Kind]uint64{},
		loading:    map[Kind]bool{},
		last:       map[Kind]*HourlyReport{},
	}
}

// Refresh runs fetch and, if it is still the newest request for the kind,
// stores its result.
func (v *ReportView) Refresh(ctx context.Context, kind Kind, fetch func(context.Context) (*HourlyReport, error)) (*HourlyReport, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil, apperr.NewConflictError("report view is closed", ErrReportDiscarded)
	}
	v.generation[kind]++
	gen := v.generation[kind]
	v.loading[kind] = true
	v.mu.Unlock()

	report, err := fetch(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || v.generation[kind] != gen {
		return nil, apperr.NewConflictError("report request was superseded", ErrReportDiscarded)
	}
	v.loading[kind] = false
	if err != nil {
		return nil, err
	}
	v.last[kind] = report
	return report, nil
}

// Last returns the most recent successful report of the kind
func (v *ReportView) Last(kind Kind) (*HourlyReport, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	r, ok := v.last[kind]
	return r, ok
}

// Loading reports whether a fetch of the kind is in flight
func (v *ReportView) Loading(kind Kind) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loading[kind]
}

// Close discards pending results and forgets stored reports
func (v *ReportView) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	v.loading = map[Kind]bool{}
	v.last = map[Kind]*HourlyReport{}
}

// ReportViews holds the report view of every live session
type ReportViews struct {
	service ReportService
	metrics *observability.Metrics
	logger  *slog.Logger
	active  func(sessionID string) bool

	mu    sync.Mutex
	views map[string]*ReportView
}

// NewReportViews creates an empty view registry. active tells whether a
// session is still open; views are only created for open sessions. A nil
// active treats every session as open.
func NewReportViews(service ReportService, metrics *observability.Metrics, logger *slog.Logger, active func(sessionID string) bool) *ReportViews {
	if active == nil {
		active = func(string) bool { return true }
	}
	return &ReportViews{
		service: service,
		metrics: metrics,
		logger:  logger,
		active:  active,
		views:   map[string]*ReportView{},
	}
}

// View returns the session's view, creating it on first use. It fails for a
// session that has ended, so a request racing logout cannot leave a view
// behind that Drop already missed.
func (r *ReportViews) View(sessionID string) (*ReportView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[sessionID]
	if ok {
		return v, nil
	}
	// Checked under mu: Drop takes mu after the session is removed
	if !r.active(sessionID) {
		return nil, apperr.NewAuthError("session has ended", nil)
	}
	v = NewReportView()
	r.views[sessionID] = v
	return v, nil
}

// Fetch assembles a report through the session's view
func (r *ReportViews) Fetch(ctx context.Context, sessionID string, q ReportQuery) (*HourlyReport, error) {
	view, err := r.View(sessionID)
	if err != nil {
		return nil, err
	}
	report, err := view.Refresh(ctx, q.Kind, func(ctx context.Context) (*HourlyReport, error) {
		return r.service.FetchHourlyReport(ctx, q)
	})
	if appErr, ok := apperr.As(err); ok && appErr.Type == apperr.ErrorTypeConflict {
		r.metrics.ReportFetches.WithLabelValues(string(q.Kind), "discarded").Inc()
		r.logger.Info("discarded stale report result",
			"session_id", sessionID,
			"kind", string(q.Kind),
		)
	}
	return report, err
}

// Last returns the session's last successful report of the kind
func (r *ReportViews) Last(sessionID string, kind Kind) (*HourlyReport, bool) {
	r.mu.Lock()
	v, ok := r.views[sessionID]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	return v.Last(kind)
}

// Loading reports whether the session has a fetch of the kind in flight
func (r *ReportViews) Loading(sessionID string, kind Kind) bool {
	r.mu.Lock()
	v, ok := r.views[sessionID]
	r.mu.Unlock()
	return ok && v.Loading(kind)
}

// Drop closes and forgets the session's view; it is registered as a logout hook
func (r *ReportViews) Drop(sessionID string) {
	r.mu.Lock()
	v, ok := r.views[sessionID]
	delete(r.views, sessionID)
	r.mu.Unlock()
	if ok {
		v.Close()
	}
}

// Len returns the number of live views
func (r *ReportViews) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}
