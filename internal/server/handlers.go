package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/Zachdehooge/lsr-dashboard/internal/feed"
	"github.com/Zachdehooge/lsr-dashboard/internal/legacy"
	"github.com/Zachdehooge/lsr-dashboard/internal/persist"
	"github.com/Zachdehooge/lsr-dashboard/internal/settings"
	"github.com/Zachdehooge/lsr-dashboard/internal/state"
	"github.com/Zachdehooge/lsr-dashboard/internal/urlcodec"
)

// hashParam carries a legacy fragment for clients that cannot run the page
// script, since browsers never send fragments.
const hashParam = "_hash"

const maxBodyBytes = 1 << 16

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	params := urlcodec.ParseParams(r.URL.RawQuery)
	if params.Has(hashParam) {
		hash := params.Get(hashParam)
		params.Del(hashParam)
		if migrated, ok := legacy.FromFragment(params.Encode(), hash); ok {
			params = migrated
		}
		target := "/"
		if q := params.Encode(); q != "" {
			target += "?" + q
		}
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	if err := s.applyPartial(urlcodec.Decode(r.URL.Query(), s.now()), "page"); err != nil {
		s.logger.Error().Err(err).Msg("failed to apply link")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	snap := s.store.Snapshot()
	s.publish(snap)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderPage(w, snap); err != nil {
		s.logger.Error().Err(err).Msg("failed to render page")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"clients":  s.push.ClientCount(),
		"realtime": s.store.Realtime(),
		"polling":  s.poller.Running(),
		"reloads":  s.Reloads(),
	})
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newStateResponse(s.store.Snapshot()))
}

func (s *Server) handlePatchState(w http.ResponseWriter, r *http.Request) {
	var patch state.Patch
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&patch); err != nil {
		http.Error(w, "Invalid state patch: "+err.Error(), http.StatusBadRequest)
		return
	}
	if patch.Empty() {
		http.Error(w, "Empty state patch", http.StatusBadRequest)
		return
	}

	wasRealtime := s.store.Realtime()
	realtimeOn := wasRealtime
	if patch.Realtime != nil {
		realtimeOn = *patch.Realtime
	}
	if realtimeOn && patch.TouchesWindow() {
		http.Error(w, "The time window is managed by realtime mode", http.StatusConflict)
		return
	}

	normalizePatch(&patch)
	if err := s.store.ApplyPatch(patch); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, state.ErrInvalidValue) || errors.Is(err, state.ErrInvalidWindow) || errors.Is(err, state.ErrInvalidSeconds) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	// Switching realtime on already ticked; a new length on a running
	// window has to move it now.
	if wasRealtime && realtimeOn && patch.Seconds != nil {
		if err := s.poller.Tick(); err != nil {
			s.logger.Warn().Err(err).Msg("realtime window not resized")
		}
	}

	snap := s.store.Snapshot()
	s.logger.Debug().Str("query", urlcodec.EncodeQuery(snap)).Msg("state patched")
	s.publish(snap)
	writeJSON(w, http.StatusOK, newStateResponse(snap))
}

type migrateRequest struct {
	Href string `json:"href"`
}

type migrateResponse struct {
	Href     string `json:"href"`
	Migrated bool   `json:"migrated"`
	stateResponse
}

// handleMigrate is called by the page before it reads any state. A migrated
// link is decoded into the store like any shared link.
func (s *Server) handleMigrate(w http.ResponseWriter, r *http.Request) {
	var req migrateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "Invalid migrate request: "+err.Error(), http.StatusBadRequest)
		return
	}
	href, migrated, err := legacy.MigrateHref(req.Href)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if migrated {
		u, err := url.Parse(href)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.applyPartial(urlcodec.DecodeQuery(u.RawQuery, s.now()), "legacy"); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.logger.Info().Str("from", req.Href).Str("to", href).Msg("legacy link migrated")
		s.publish(s.store.Snapshot())
	}

	writeJSON(w, http.StatusOK, migrateResponse{
		Href:          href,
		Migrated:      migrated,
		stateResponse: newStateResponse(s.store.Snapshot()),
	})
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newRequestResponse(s.store.Snapshot()))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	kind, err := feed.ParseKind(r.PathValue("kind"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	link, err := feed.ExportLink(kind, feed.Format(r.URL.Query().Get("format")), s.store.Snapshot())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": feed.ExportHost + link})
}

func (s *Server) handleListViews(w http.ResponseWriter, r *http.Request) {
	views, err := s.views.List(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list views")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	view, err := s.views.Load(r.Context(), r.PathValue("name"))
	if err != nil {
		s.viewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleSaveView stores the current canonical link under name.
func (s *Server) handleSaveView(w http.ResponseWriter, r *http.Request) {
	query := urlcodec.EncodeQuery(s.store.Snapshot())
	view, err := s.views.Save(r.Context(), r.PathValue("name"), query, s.now())
	if err != nil {
		s.viewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteView(w http.ResponseWriter, r *http.Request) {
	if err := s.views.Delete(r.Context(), r.PathValue("name")); err != nil {
		s.viewError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLoadView decodes a saved link into the store.
func (s *Server) handleLoadView(w http.ResponseWriter, r *http.Request) {
	view, err := s.views.Load(r.Context(), r.PathValue("name"))
	if err != nil {
		s.viewError(w, err)
		return
	}
	if err := s.applyPartial(urlcodec.DecodeQuery(view.Query, s.now()), "view"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	snap := s.store.Snapshot()
	s.publish(snap)
	writeJSON(w, http.StatusOK, newStateResponse(snap))
}

func (s *Server) viewError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, persist.ErrNotFound):
		http.Error(w, "View not found", http.StatusNotFound)
	case errors.Is(err, persist.ErrEmptyName):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error().Err(err).Msg("view storage failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// normalizePatch upper-cases and dedupes the code lists a client sends.
func normalizePatch(p *state.Patch) {
	if p.WFOFilter != nil {
		p.WFOFilter = feed.NormalizeTypes(p.WFOFilter)
	}
	if p.StateFilter != nil {
		p.StateFilter = feed.NormalizeTypes(p.StateFilter)
	}
	if p.LSRTypes != nil {
		p.LSRTypes = feed.NormalizeTypes(p.LSRTypes)
	}
	if p.SBWTypes != nil {
		p.SBWTypes = feed.NormalizeTypes(p.SBWTypes)
	}
}

func layerMap(raw string) map[string]bool {
	layers := settings.Decode(raw, settings.Vector{})
	out := make(map[string]bool, settings.Count)
	for f := settings.Flag(0); int(f) < settings.Count; f++ {
		out[f.String()] = layers[f]
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
