package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"ipo-window-lab/internal/config"
	"ipo-window-lab/internal/observability"
	"ipo-window-lab/internal/pipeline"
	"ipo-window-lab/internal/reporting"
	"ipo-window-lab/internal/storage"
)

// Job states.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Job is one asynchronous backtest started through the API.
type Job struct {
	ID         string             `json:"id"`
	Status     string             `json:"status"`
	Progress   float64            `json:"progress"`
	Message    string             `json:"message,omitempty"`
	Error      string             `json:"error,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
	OutputDir  string             `json:"output_dir,omitempty"`
	Result     *reporting.Results `json:"result,omitempty"`
}

// RunRequest overrides configuration values for one run. Zero values keep the server configuration.
type RunRequest struct {
	SplitRatio       float64 `json:"split_ratio"`
	InitialCapital   float64 `json:"initial_capital"`
	PositionSize     float64 `json:"position_size"`
	MinSamples       int     `json:"min_samples"`
	MaxTickers       int     `json:"max_tickers"`
	DataMode         string  `json:"data_mode"`
	FromListingStore bool    `json:"from_listing_store"`
}

// ProgressEvent is pushed to /ws/progress subscribers.
type ProgressEvent struct {
	JobID    string  `json:"job_id"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
}

// Server exposes backtest runs over HTTP.
type Server struct {
	cfg            *config.Config
	stack          *pipeline.Stack
	metrics        *observability.Metrics
	metricsHandler http.Handler
	logger         *log.Entry

	mu   sync.Mutex
	jobs map[string]*Job

	hub      *progressHub
	upgrader websocket.Upgrader

	baseCtx context.Context
	wg      sync.WaitGroup
	runSem  chan struct{} // one run at a time
}

// NewServer creates a server. ctx bounds all background runs.
func NewServer(ctx context.Context, cfg *config.Config, stack *pipeline.Stack, m *observability.Metrics, metricsHandler http.Handler) *Server {
	return &Server{
		cfg:            cfg,
		stack:          stack,
		metrics:        m,
		metricsHandler: metricsHandler,
		logger:         log.WithField("component", "server"),
		jobs:           make(map[string]*Job),
		hub:            newProgressHub(),
		upgrader:       websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		baseCtx:        ctx,
		runSem:         make(chan struct{}, 1),
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	if s.metricsHandler != nil {
		r.Handle("/metrics", s.metricsHandler).Methods(http.MethodGet)
	}

	r.HandleFunc("/runs", s.handleCreateRun).Methods(http.MethodPost)
	r.HandleFunc("/runs", s.handleListRuns).Methods(http.MethodGet)
	r.HandleFunc("/runs/{id}", s.handleGetRun).Methods(http.MethodGet)
	r.HandleFunc("/runs/{id}/windows", s.handleRunWindows).Methods(http.MethodGet)
	r.HandleFunc("/ws/progress", s.handleProgress)

	return r
}

// Wait blocks until all background runs have returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
			return
		}
	}

	cfg := *s.cfg
	applyRequest(&cfg, req)
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	job := &Job{
		ID:        uuid.New().String(),
		Status:    StatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	snapshot := *job
	s.mu.Unlock()

	s.wg.Add(1)
	go s.execute(job.ID, &cfg, req.FromListingStore)

	writeJSON(w, http.StatusAccepted, snapshot)
}

func applyRequest(cfg *config.Config, req RunRequest) {
	if req.SplitRatio != 0 {
		cfg.Backtest.TrainTestSplit = req.SplitRatio
	}
	if req.InitialCapital != 0 {
		cfg.Backtest.InitialCapital = req.InitialCapital
	}
	if req.PositionSize != 0 {
		cfg.Backtest.PositionSize = req.PositionSize
	}
	if req.MinSamples != 0 {
		cfg.Backtest.MinSamples = req.MinSamples
	}
	if req.MaxTickers != 0 {
		cfg.Backtest.MaxTickers = req.MaxTickers
	}
	if req.DataMode != "" {
		cfg.Data.Mode = req.DataMode
	}
}

// execute runs one job in the background.
func (s *Server) execute(id string, cfg *config.Config, fromStore bool) {
	defer s.wg.Done()
	logger := s.logger.WithField("job_id", id)

	select {
	case s.runSem <- struct{}{}:
	case <-s.baseCtx.Done():
		s.finish(id, nil, s.baseCtx.Err())
		return
	}
	defer func() { <-s.runSem }()

	s.update(id, func(j *Job) {
		j.Status = StatusRunning
	})

	p := pipeline.New(cfg, s.stack).WithLogger(logger).WithMetrics(s.metrics)
	if fromStore {
		p = p.WithListingStore()
	}

	out, err := p.Run(s.baseCtx, func(fraction float64, message string) {
		s.update(id, func(j *Job) {
			j.Progress = fraction
			j.Message = message
		})
	})
	s.finish(id, out, err)
	if err != nil {
		logger.WithError(err).Error("Run failed")
	}
}

func (s *Server) finish(id string, out *pipeline.Output, err error) {
	s.update(id, func(j *Job) {
		now := time.Now().UTC()
		j.FinishedAt = &now
		if err != nil {
			j.Status = StatusFailed
			j.Error = err.Error()
			return
		}
		j.Status = StatusSucceeded
		j.Progress = 1
		j.OutputDir = out.Dir
		j.Result = reporting.NewResults(out.Result)
		j.Result.OutputDir = out.Dir
	})
}

// update mutates a job under the lock and broadcasts its new state.
func (s *Server) update(id string, fn func(*Job)) {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	fn(j)
	ev := ProgressEvent{JobID: j.ID, Status: j.Status, Progress: j.Progress, Message: j.Message}
	if j.Error != "" {
		ev.Message = j.Error
	}
	s.mu.Unlock()

	s.hub.broadcast(ev)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	jobs := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		c := *j
		c.Result = nil
		jobs = append(jobs, c)
	}
	s.mu.Unlock()

	sort.Slice(jobs, func(a, b int) bool {
		return jobs[a].CreatedAt.After(jobs[b].CreatedAt)
	})
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	job, ok := s.job(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("run not found"))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// WindowResponse is one ranked window of a finished run.
type WindowResponse struct {
	Rank        int     `json:"rank"`
	Window      string  `json:"window"`
	SampleCount int     `json:"n_tickers"`
	MeanReturn  float64 `json:"avg_return"`
	StdReturn   float64 `json:"std_return"`
	WinRate     float64 `json:"win_rate"`
	Sharpe      float64 `json:"sharpe"`
}

func (s *Server) handleRunWindows(w http.ResponseWriter, r *http.Request) {
	job, ok := s.job(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("run not found"))
		return
	}
	if job.Status != StatusSucceeded || job.Result == nil {
		writeError(w, http.StatusConflict, fmt.Errorf("run is %s", job.Status))
		return
	}

	stats, err := s.stack.Stats.GetByRunID(r.Context(), job.Result.RunID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusOK, []WindowResponse{})
		return
	case err != nil:
		s.logger.WithError(err).WithField("run_id", job.Result.RunID).Error("load window statistics")
		writeError(w, http.StatusInternalServerError, fmt.Errorf("load window statistics: %w", err))
		return
	}
	out := make([]WindowResponse, len(stats))
	for i, st := range stats {
		out[i] = WindowResponse{
			Rank:        i + 1,
			Window:      st.Window.Label(),
			SampleCount: st.SampleCount,
			MeanReturn:  st.MeanReturn,
			StdReturn:   st.StdReturn,
			WinRate:     st.WinRate,
			Sharpe:      st.Sharpe,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) job(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// handleProgress streams ProgressEvents. ?job=<id> filters to one job.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	filter := r.URL.Query().Get("job")
	events := s.hub.subscribe()
	defer s.hub.unsubscribe(events)

	// Reader detects client close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-s.baseCtx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case ev := <-events:
			if filter != "" && ev.JobID != filter {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

// progressHub fans progress events out to websocket subscribers.
// Slow subscribers drop events rather than block runs.
type progressHub struct {
	mu      sync.Mutex
	clients map[chan ProgressEvent]struct{}
}

func newProgressHub() *progressHub {
	return &progressHub{clients: make(map[chan ProgressEvent]struct{})}
}

func (h *progressHub) subscribe() chan ProgressEvent {
	ch := make(chan ProgressEvent, 256)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *progressHub) unsubscribe(ch chan ProgressEvent) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

func (h *progressHub) broadcast(ev ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
