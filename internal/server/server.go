// Package server hosts the dashboard: it owns the process-wide state store
// and the realtime poller, serves the page shell and a JSON API for the UI
// collaborators, and pushes url, state and reload events to browsers.
package server

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Zachdehooge/lsr-dashboard/internal/feed"
	"github.com/Zachdehooge/lsr-dashboard/internal/logging"
	"github.com/Zachdehooge/lsr-dashboard/internal/persist"
	"github.com/Zachdehooge/lsr-dashboard/internal/push"
	"github.com/Zachdehooge/lsr-dashboard/internal/realtime"
	"github.com/Zachdehooge/lsr-dashboard/internal/state"
	"github.com/Zachdehooge/lsr-dashboard/internal/urlcodec"
)

// Views stores named dashboard links.
type Views interface {
	Save(ctx context.Context, name, query string, at time.Time) (persist.View, error)
	Load(ctx context.Context, name string) (persist.View, error)
	List(ctx context.Context) ([]persist.View, error)
	Delete(ctx context.Context, name string) error
}

// Options configures a Server. Only Store is required.
type Options struct {
	Store     *state.Store
	Push      push.Manager
	Views     Views
	Logger    zerolog.Logger
	Now       func() time.Time
	Interval  time.Duration
	NewTicker func(time.Duration) realtime.Ticker
}

// Server is the dashboard HTTP server.
type Server struct {
	store  *state.Store
	poller *realtime.Poller
	push   push.Manager
	views  Views
	logger zerolog.Logger
	now    func() time.Time
	page   *template.Template
	mux    *http.ServeMux

	reloads atomic.Int64
}

// New wires a server around opts.Store.
func New(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("server needs a state store")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	pushLogger := logging.Component(opts.Logger, "push")
	if opts.Push == nil {
		opts.Push = push.NewManager(pushLogger)
	}

	page, err := parsePage()
	if err != nil {
		return nil, err
	}

	s := &Server{
		store:  opts.Store,
		push:   opts.Push,
		views:  opts.Views,
		logger: logging.Component(opts.Logger, "server"),
		now:    opts.Now,
		page:   page,
	}

	pollerOpts := []realtime.Option{
		realtime.WithClock(opts.Now),
		realtime.WithInterval(opts.Interval),
		realtime.WithLogger(logging.Component(opts.Logger, "poller")),
	}
	if opts.NewTicker != nil {
		pollerOpts = append(pollerOpts, realtime.WithTicker(opts.NewTicker))
	}
	s.poller = realtime.New(s.store, s.reload, pollerOpts...)

	s.store.Subscribe(state.KeyRealtime, s.onRealtime)
	s.mux = s.routes(pushLogger)
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start starts the realtime poller until ctx is cancelled or Stop is called.
func (s *Server) Start(ctx context.Context) {
	s.poller.Start(ctx)
}

// Stop stops the realtime poller.
func (s *Server) Stop() {
	s.poller.Stop()
}

// Reloads returns how many reloads have been signalled.
func (s *Server) Reloads() int64 {
	return s.reloads.Load()
}

func (s *Server) routes(pushLogger zerolog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/state", s.handleGetState)
	mux.HandleFunc("POST /api/state", s.handlePatchState)
	mux.HandleFunc("POST /api/migrate", s.handleMigrate)
	mux.HandleFunc("GET /api/request", s.handleRequest)
	mux.HandleFunc("GET /api/export/{kind}", s.handleExport)
	if s.views != nil {
		mux.HandleFunc("GET /api/views", s.handleListViews)
		mux.HandleFunc("GET /api/views/{name}", s.handleGetView)
		mux.HandleFunc("PUT /api/views/{name}", s.handleSaveView)
		mux.HandleFunc("DELETE /api/views/{name}", s.handleDeleteView)
		mux.HandleFunc("POST /api/views/{name}/load", s.handleLoadView)
	}
	push.RegisterHandlers(mux, s.push, pushLogger)
	return mux
}

// onRealtime reloads as soon as realtime mode is switched on instead of
// waiting for the next tick.
func (s *Server) onRealtime(value any) {
	if on, _ := value.(bool); !on {
		return
	}
	if err := s.poller.Tick(); err != nil {
		s.logger.Warn().Err(err).Msg("realtime enabled with an invalid window length")
	}
}

// reload is the poller's reload signal. It only tells browsers; fetching the
// feeds is theirs to do.
func (s *Server) reload(snap state.Snapshot) {
	n := s.reloads.Add(1)
	s.logger.Info().
		Int64("reload", n).
		Time("sts", snap.STS).
		Time("ets", snap.ETS).
		Msg("reload due")

	s.broadcast(push.EventReload, newRequestResponse(snap))
	s.publish(snap)
}

// publish pushes the state and its canonical link after every change.
func (s *Server) publish(snap state.Snapshot) {
	resp := newStateResponse(snap)
	s.broadcast(push.EventState, resp)
	s.broadcast(push.EventURL, map[string]string{"query": resp.Query})
}

func (s *Server) broadcast(event string, data any) {
	if !s.push.HasClients() {
		return
	}
	s.push.Broadcast(push.Message{Type: event, Data: data, Timestamp: s.now()})
}

// applyPartial writes a decoded link into the store.
func (s *Server) applyPartial(p urlcodec.Partial, source string) error {
	for _, problem := range p.Problems {
		s.logger.Warn().Str("source", source).Str("problem", problem).Msg("malformed link parameter replaced by default")
	}
	return p.Apply(s.store)
}

type stateResponse struct {
	State  state.Snapshot  `json:"state"`
	Query  string          `json:"query"`
	Layers map[string]bool `json:"layers"`
}

func newStateResponse(snap state.Snapshot) stateResponse {
	return stateResponse{
		State:  snap,
		Query:  urlcodec.EncodeQuery(snap),
		Layers: layerMap(snap.LayerSettings),
	}
}

type requestResponse struct {
	Params      map[string]string `json:"params"`
	LSRURL      string            `json:"lsrUrl"`
	SBWURL      string            `json:"sbwUrl"`
	LSRTypes    []string          `json:"lsrTypes"`
	SBWTypes    []string          `json:"sbwTypes"`
	MaxFeatures int               `json:"maxFeatures"`
}

func newRequestResponse(snap state.Snapshot) requestResponse {
	params := make(map[string]string)
	for k, v := range feed.RequestOptions(snap) {
		params[k] = v[0]
	}
	return requestResponse{
		Params:      params,
		LSRURL:      feed.GeoJSONURL(feed.KindLSR, snap),
		SBWURL:      feed.GeoJSONURL(feed.KindWatchWarn, snap),
		LSRTypes:    snap.LSRTypes,
		SBWTypes:    snap.SBWTypes,
		MaxFeatures: feed.MaxLSRFeatures,
	}
}
