// Package health serves the liveness (/healthz) and readiness (/readyz)
// probes.
//
// Both answer with a JSON [Report]. /healthz is always "ok". /readyz runs
// every [Checker] in parallel and answers 503 when a required one fails;
// optional checks only add a "warn: ..." entry.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// CheckTimeout bounds a single check.
const CheckTimeout = 5 * time.Second

// Report statuses.
const (
	StatusOK   = "ok"
	StatusFail = "fail"
)

// Checker probes one dependency. Check must honour ctx.
type Checker struct {
	Name     string
	Check    func(ctx context.Context) error
	Optional bool
}

// Report is the probe response body.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// OK reports whether every required check passed.
func (r Report) OK() bool { return r.Status == StatusOK }

// Handler holds a fixed set of checks.
type Handler struct {
	checkers []Checker
}

// New returns a handler for checkers.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Run evaluates every check concurrently.
func (h *Handler) Run(ctx context.Context) Report {
	errs := make([]error, len(h.checkers))
	var g errgroup.Group
	for i, c := range h.checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, CheckTimeout)
			defer cancel()
			errs[i] = c.Check(cctx)
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{Status: StatusOK, Checks: make(map[string]string, len(h.checkers))}
	for i, c := range h.checkers {
		switch err := errs[i]; {
		case err == nil:
			rep.Checks[c.Name] = "ok"
		case c.Optional:
			rep.Checks[c.Name] = "warn: " + err.Error()
		default:
			rep.Checks[c.Name] = "fail: " + err.Error()
			rep.Status = StatusFail
		}
	}
	return rep
}

// Healthz answers 200 while the process can serve HTTP.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, http.StatusOK, Report{Status: StatusOK})
}

// Readyz answers 200 when [Handler.Run] is OK and 503 otherwise.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	rep := h.Run(r.Context())
	code := http.StatusOK
	if !rep.OK() {
		code = http.StatusServiceUnavailable
	}
	writeReport(w, code, rep)
}

// Register mounts both probes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeReport(w http.ResponseWriter, code int, rep Report) {
	body, err := json.Marshal(rep)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(append(body, '\n'))
}
