package restserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/chrissnell/wellrecharge/internal/storage"
	"github.com/chrissnell/wellrecharge/pkg/responseformat"
)

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

func (h *Handlers) write(w http.ResponseWriter, req *http.Request, data any) {
	if err := h.formatter.WriteResponse(w, req, http.StatusOK, data); err != nil {
		h.controller.logger.Errorf("error writing response: %v", err)
	}
}

func (h *Handlers) fail(w http.ResponseWriter, req *http.Request, status int, message string) {
	if err := h.formatter.WriteError(w, req, status, message); err != nil {
		h.controller.logger.Errorf("error writing error response: %v", err)
	}
}

// loadRun resolves the {id} route variable. It writes the error response itself
// and returns nil when the run cannot be served.
func (h *Handlers) loadRun(w http.ResponseWriter, req *http.Request) *storage.Run {
	id, err := uuid.Parse(mux.Vars(req)["id"])
	if err != nil {
		h.fail(w, req, http.StatusBadRequest, "malformed run id")
		return nil
	}

	run, err := h.controller.store.LoadRun(req.Context(), id)
	if errors.Is(err, storage.ErrRunNotFound) {
		h.fail(w, req, http.StatusNotFound, "run not found")
		return nil
	}
	if err != nil {
		h.controller.logger.Errorf("error loading run %s: %v", id, err)
		h.fail(w, req, http.StatusInternalServerError, "could not load run")
		return nil
	}
	return run
}

// GetRuns lists the stored runs, newest first
func (h *Handlers) GetRuns(w http.ResponseWriter, req *http.Request) {
	runs, err := h.controller.store.ListRuns(req.Context())
	if err != nil {
		h.controller.logger.Errorf("error listing runs: %v", err)
		h.fail(w, req, http.StatusInternalServerError, "could not list runs")
		return
	}
	if runs == nil {
		runs = []storage.Summary{}
	}
	h.write(w, req, runs)
}

// GetRun returns the detail view of one run
func (h *Handlers) GetRun(w http.ResponseWriter, req *http.Request) {
	if run := h.loadRun(w, req); run != nil {
		h.write(w, req, transformRun(run))
	}
}

// GetRecharge returns the daily recharge bands of a run. The optional from and to
// query parameters (YYYY-MM-DD, to exclusive) limit the dates returned.
func (h *Handlers) GetRecharge(w http.ResponseWriter, req *http.Request) {
	h.getSeries(w, req, "recharge")
}

// GetLevel returns the daily simulated water-level bands of a run
func (h *Handlers) GetLevel(w http.ResponseWriter, req *http.Request) {
	h.getSeries(w, req, "level")
}

func (h *Handlers) getSeries(w http.ResponseWriter, req *http.Request, variable string) {
	run := h.loadRun(w, req)
	if run == nil {
		return
	}
	if run.Estimate == nil {
		h.fail(w, req, http.StatusNotFound, "run has no estimate")
		return
	}

	bands := run.Estimate.Recharge
	if variable == "level" {
		bands = run.Estimate.Level
	}

	from, to, ok := h.window(w, req, run, len(bands))
	if !ok {
		return
	}
	h.write(w, req, transformSeries(run, variable, bands, from, to))
}

// window converts the from/to query parameters into band indices within [0, n].
func (h *Handlers) window(w http.ResponseWriter, req *http.Request, run *storage.Run, n int) (from, to int, ok bool) {
	q := req.URL.Query()
	day := func(key string, fallback int) (int, bool) {
		v := q.Get(key)
		if v == "" {
			return fallback, true
		}
		t, err := parseDate(v)
		if err != nil {
			h.fail(w, req, http.StatusBadRequest, "bad "+key+" date, expected YYYY-MM-DD")
			return 0, false
		}
		i := int(t.Sub(run.Estimate.Start).Hours() / 24)
		return min(max(i, 0), n), true
	}

	if from, ok = day("from", 0); !ok {
		return 0, 0, false
	}
	if to, ok = day("to", n); !ok {
		return 0, 0, false
	}
	return from, to, true
}

// GetMembers returns the ensemble members of a run. behavioral=true or false limits
// the list to behavioral or non-behavioral members.
func (h *Handlers) GetMembers(w http.ResponseWriter, req *http.Request) {
	run := h.loadRun(w, req)
	if run == nil {
		return
	}
	if run.Ensemble == nil {
		h.fail(w, req, http.StatusNotFound, "run has no ensemble")
		return
	}

	var behavioral *bool
	if v := req.URL.Query().Get("behavioral"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.fail(w, req, http.StatusBadRequest, "behavioral must be true or false")
			return
		}
		behavioral = &b
	}
	h.write(w, req, transformMembers(run.Ensemble, behavioral))
}
