package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dgallion1/structlay/internal/a11y"
	"github.com/dgallion1/structlay/internal/loader"
	"github.com/dgallion1/structlay/internal/session"
	"github.com/go-chi/chi/v5"
)

type createSessionRequest struct {
	DocID         string  `json:"doc_id"`
	Page          int     `json:"page"`
	DisplayWidth  float64 `json:"display_width"`
	DisplayHeight float64 `json:"display_height"`
	URL           string  `json:"url"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.DocID == "" {
		jsonError(w, "doc_id is required", http.StatusBadRequest)
		return
	}
	if req.DisplayWidth <= 0 || req.DisplayHeight <= 0 {
		jsonError(w, "display_width and display_height must be positive", http.StatusBadRequest)
		return
	}
	if req.Page <= 0 {
		req.Page = 1
	}

	sess, err := session.New(req.DocID, s.sessionConfig(), session.Deps{
		Cache:   s.cache,
		Fetcher: s.structs,
		Chunks:  s.structs,
		Log:     s.log,
	})
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	view, err := sess.Mount(r.Context(), req.Page, req.DisplayWidth, req.DisplayHeight, req.URL)
	if err != nil {
		sess.Close()
		jsonError(w, "mount failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	s.registry.Put(sess)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(view)
}

func (s *Server) handleSessionView(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sess.View())
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if !s.registry.Delete(chi.URLParam(r, "sessionID")) {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sessionEvent is one interaction forwarded by the host page. Type picks
// which fields matter; the rest are ignored.
type sessionEvent struct {
	Type          string  `json:"type"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	ChunkID       string  `json:"chunk_id"`
	Key           string  `json:"key"`
	Shift         bool    `json:"shift"`
	Page          int     `json:"page"`
	DisplayWidth  float64 `json:"display_width"`
	DisplayHeight float64 `json:"display_height"`
}

func (s *Server) handleSessionEvent(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)
	var ev sessionEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	switch ev.Type {
	case "hover":
		sess.HoverAt(ev.X, ev.Y)
	case "unhover":
		sess.Leave()
	case "activate":
		sess.ActivateAt(ev.X, ev.Y)
	case "clear":
		sess.ClearSelection()
	case "hover_chunk":
		if ev.ChunkID == "" {
			jsonError(w, "chunk_id is required", http.StatusBadRequest)
			return
		}
		sess.HoverChunk(ev.ChunkID)
	case "unhover_chunk":
		if ev.ChunkID == "" {
			jsonError(w, "chunk_id is required", http.StatusBadRequest)
			return
		}
		sess.UnhoverChunk(ev.ChunkID)
	case "activate_chunk":
		if ev.ChunkID == "" {
			jsonError(w, "chunk_id is required", http.StatusBadRequest)
			return
		}
		sess.ActivateChunk(ev.ChunkID)
	case "navigate":
		if ev.ChunkID == "" {
			jsonError(w, "chunk_id is required", http.StatusBadRequest)
			return
		}
		sess.Navigate(ev.ChunkID)
	case "key":
		if ev.Key == "" {
			jsonError(w, "key is required", http.StatusBadRequest)
			return
		}
		handled := sess.Key(a11y.Key(ev.Key), ev.Shift)
		s.writeEventAck(w, sess, map[string]any{"handled": handled})
		return
	case "resize":
		if ev.DisplayWidth <= 0 || ev.DisplayHeight <= 0 {
			jsonError(w, "display_width and display_height must be positive", http.StatusBadRequest)
			return
		}
		sess.Resize(ev.DisplayWidth, ev.DisplayHeight)
	case "goto_page":
		if ev.Page <= 0 {
			jsonError(w, "page must be positive", http.StatusBadRequest)
			return
		}
		view, err := sess.GoToPage(r.Context(), ev.Page)
		switch {
		case err == nil:
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(view)
		case errors.Is(err, loader.ErrStale):
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, session.ErrClosed):
			jsonError(w, "session closed", http.StatusGone)
		case errors.Is(err, session.ErrNotMounted):
			jsonError(w, "session not mounted", http.StatusConflict)
		default:
			jsonError(w, "page load failed: "+err.Error(), http.StatusBadGateway)
		}
		return
	default:
		jsonError(w, "unknown event type: "+ev.Type, http.StatusBadRequest)
		return
	}

	s.writeEventAck(w, sess, nil)
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	state, seq := sess.State()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"state": state,
		"seq":   seq,
		"url":   sess.URL(),
	})
}

// handleAnnouncements drains committed live-region updates. Polling hosts
// feed these to their own live regions; each message is delivered once.
func (s *Server) handleAnnouncements(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"announcements": sess.Announcements()})
}

func (s *Server) handleSessionText(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	html, segments := sess.Text()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"text_html": html,
		"segments":  segments,
	})
}

func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := s.registry.Get(chi.URLParam(r, "sessionID"))
	if !ok {
		jsonError(w, "session not found", http.StatusNotFound)
	}
	return sess, ok
}

func (s *Server) writeEventAck(w http.ResponseWriter, sess *session.Session, extra map[string]any) {
	state, seq := sess.State()
	body := map[string]any{"state": state, "seq": seq}
	for k, v := range extra {
		body[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
