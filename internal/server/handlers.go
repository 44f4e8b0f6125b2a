package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// keep-alive comment interval for idle status streams
const heartbeatInterval = 15 * time.Second

// EnableResponse represents the response for /enable
type EnableResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// DisableResponse represents the response for /disable
type DisableResponse struct {
	Restored int    `json:"restored"`
	Status   string `json:"status"`
}

// StatusResponse represents the response for /status
type StatusResponse struct {
	Enabled    bool     `json:"enabled"`
	RunID      string   `json:"run_id,omitempty"`
	Categories []string `json:"categories"`
}

// handleEnable activates remediation. The run proceeds in the background;
// enabling while already active returns the current run's identifier.
func (s *Server) handleEnable(w http.ResponseWriter, _ *http.Request) {
	runID, err := s.controller.Enable()
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Enable failed: "+err.Error())
		return
	}
	s.logger.Info("remediation enabled", zap.String("run_id", runID))
	s.jsonResponse(w, http.StatusAccepted, EnableResponse{
		RunID:  runID,
		Status: "enabled",
	})
}

// handleDisable deactivates remediation: cancels any in-flight run and
// restores every pipeline-authored mutation.
func (s *Server) handleDisable(w http.ResponseWriter, r *http.Request) {
	restored, err := s.controller.Disable(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Disable failed: "+err.Error())
		return
	}
	s.logger.Info("remediation disabled", zap.Int("restored", restored))
	s.jsonResponse(w, http.StatusOK, DisableResponse{
		Restored: restored,
		Status:   "disabled",
	})
}

// handleStatus returns the controller's current state
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.controller.State()
	s.jsonResponse(w, http.StatusOK, StatusResponse{
		Enabled:    st.Enabled,
		RunID:      st.RunID,
		Categories: st.Categories,
	})
}

// handleStatusStream streams per-node lifecycle events over SSE until the
// client disconnects or the daemon shuts down.
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	if s.broadcaster == nil {
		s.errorResponse(w, http.StatusNotFound, "Event streaming is not configured")
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	events, cancel := s.broadcaster.Subscribe()
	defer cancel()

	// Open with a state snapshot so subscribers joining mid-run know what
	// they attached to.
	if err := sse.WriteEvent("state", s.controller.State()); err != nil {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if err := sse.WriteHeartbeat(); err != nil {
				return
			}
		case e, ok := <-events:
			if !ok {
				sse.WriteComplete(s.controller.State().RunID, "closed")
				return
			}
			if err := sse.WriteEvent(string(e.Type), e); err != nil {
				s.logger.Debug("status stream write failed", zap.Error(err))
				return
			}
		}
	}
}
