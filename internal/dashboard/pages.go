package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/lufespi/gestor-academico/internal/apperr"
	"github.com/lufespi/gestor-academico/internal/gate"
	"github.com/lufespi/gestor-academico/internal/metrics"
	"github.com/lufespi/gestor-academico/internal/session"
	"github.com/lufespi/gestor-academico/internal/views"
)

const (
	panelOK     = "ok"
	panelNoData = "no_data"

	maxParallelPanels = 4
)

type panel struct {
	Name    string          `json:"name"`
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

type pageResponse struct {
	navigation
	Panels []panel `json:"panels,omitempty"`
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	store := s.sessions.Acquire(w, r)
	st := store.State()
	if r.URL.Query().Get("wait") == "1" {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.BackendTimeout)
		st, _ = store.WaitResolved(ctx)
		cancel()
	}
	s.syncRefreshCookie(w, store)
	writeJSON(w, http.StatusOK, s.navigate(st, r.URL.Query().Get("path")))
}

// handlePage waits for the session to resolve, decides, and loads every panel
// of the resolved view. A panel that fails reports no data without failing
// the page.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	store := s.sessions.Acquire(w, r)
	path := "/" + chi.URLParam(r, "*")

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.BackendTimeout)
	defer cancel()
	st, _ := store.WaitResolved(ctx)

	resp := pageResponse{navigation: s.navigate(st, path)}
	if resp.Decision.Outcome == gate.Allow && resp.View != nil {
		panels, sessionLost := s.loadPanels(ctx, store, *resp.View)
		if sessionLost {
			resp = pageResponse{navigation: s.navigate(store.State(), path)}
		} else {
			resp.Panels = panels
		}
	}
	s.syncRefreshCookie(w, store)

	switch resp.Decision.Outcome {
	case gate.NotFound:
		writeJSON(w, http.StatusNotFound, resp)
	case gate.Loading:
		writeJSON(w, http.StatusAccepted, resp)
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

// loadPanels fetches the view's panels in parallel. Panels rejected for an
// expired token are retried once after reauthenticating; sessionLost reports
// that the refresh was refused and the store has signed out.
func (s *Server) loadPanels(ctx context.Context, store *session.Store, view views.View) ([]panel, bool) {
	panels := make([]panel, len(view.Panels))
	all := make([]int, len(view.Panels))
	for i := range all {
		all[i] = i
	}

	expired := s.fetchPanels(ctx, store.AccessToken(), view.Panels, panels, all)
	if len(expired) > 0 {
		if err := store.Reauthenticate(ctx); err != nil {
			s.logger.Info("reauthenticate failed", "err", err)
			for _, i := range expired {
				panels[i] = noData(view.Panels[i], err)
			}
			return panels, apperr.IsAuth(err)
		}
		for _, i := range s.fetchPanels(ctx, store.AccessToken(), view.Panels, panels, expired) {
			panels[i] = noData(view.Panels[i], apperr.Auth(apperr.CodeSessionExpired))
		}
	}

	for _, p := range panels {
		metrics.PanelLoads.WithLabelValues(p.Name, p.Status).Inc()
	}
	return panels, false
}

// fetchPanels fills out[i] for every index in idx and returns the indexes
// whose query was rejected for an expired session.
func (s *Server) fetchPanels(ctx context.Context, accessToken string, names []string, out []panel, idx []int) []int {
	var (
		mu      sync.Mutex
		expired []int
	)
	var g errgroup.Group
	g.SetLimit(maxParallelPanels)
	for _, i := range idx {
		g.Go(func() error {
			name := names[i]
			data, err := s.querier.Query(ctx, accessToken, name, nil)
			switch {
			case err != nil && apperr.Code(err) == apperr.CodeSessionExpired:
				mu.Lock()
				expired = append(expired, i)
				mu.Unlock()
				out[i] = noData(name, err)
			case err != nil:
				s.logger.Warn("panel load failed", "panel", name, "err", err)
				out[i] = noData(name, err)
			case len(data) == 0 || string(data) == "null":
				out[i] = panel{Name: name, Status: panelNoData, Message: (&apperr.DataError{Query: name}).Message()}
			default:
				out[i] = panel{Name: name, Status: panelOK, Data: data}
			}
			return nil
		})
	}
	_ = g.Wait()
	return expired
}

func noData(name string, err error) panel {
	msg := apperr.UserMessage(err)
	if apperr.IsData(err) {
		msg = (&apperr.DataError{Query: name}).Message()
	}
	return panel{Name: name, Status: panelNoData, Message: msg}
}
