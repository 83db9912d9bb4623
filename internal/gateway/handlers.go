package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/soyeahso/quotemill/internal/domain"
)

// HealthResponse is returned by health endpoints. The public HTTP endpoint
// only populates Status; the authenticated RPC handler populates all fields.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Clients  int    `json:"clients,omitempty"`
	Sessions int    `json:"sessions,omitempty"`
}

// SessionStatus is the non-blocking status snapshot of a session. It is
// always readable, even while enrichment or a pipeline run is in flight.
type SessionStatus struct {
	ID            string                 `json:"id"`
	State         domain.DiscoveryState  `json:"state"`
	Done          bool                   `json:"done"`
	TurnCount     int                    `json:"turnCount"`
	Items         []domain.InventoryItem `json:"items"`
	TaskStatus    domain.TaskStatus      `json:"taskStatus"`
	TaskError     string                 `json:"taskError,omitempty"`
	LastUpdateAt  *time.Time             `json:"lastUpdateAt,omitempty"`
	Total         *float64               `json:"total,omitempty"`
	Currency      string                 `json:"currency,omitempty"`
	Document      string                 `json:"document,omitempty"`
	DocumentReady bool                   `json:"documentReady"`
}

func sessionStatusOf(sess *domain.Session) SessionStatus {
	st := SessionStatus{
		ID:            sess.ID,
		State:         sess.State,
		Done:          sess.Done,
		TurnCount:     sess.TurnCount,
		Items:         sess.Items,
		TaskStatus:    sess.TaskStatus,
		TaskError:     sess.TaskError,
		LastUpdateAt:  sess.LastUpdateAt,
		Document:      sess.Document,
		DocumentReady: sess.Document != "",
	}
	if st.Items == nil {
		st.Items = []domain.InventoryItem{}
	}
	if st.TaskStatus == "" {
		st.TaskStatus = domain.TaskIdle
	}
	if sess.Pricing != nil {
		total := sess.Pricing.Total
		st.Total = &total
		st.Currency = sess.Pricing.Currency
	}
	return st
}

// handleHealth returns the server health status. Only status is exposed
// publicly; detailed info is available via the authenticated RPC health method.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

// handleSessionStatus serves the polling view of a session's state.
func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.sessions == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "no session store configured"})
		return
	}

	sess := s.sessions.Get(r.PathValue("id"))
	if sess == nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "session not found"})
		return
	}

	json.NewEncoder(w).Encode(sessionStatusOf(sess))
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

// RequestHandler processes an incoming RPC request frame from a client.
type RequestHandler func(ctx *RequestContext)

// RequestContext carries everything a handler needs.
type RequestContext struct {
	Client *Client
	Frame  Frame
	Server *Server
}

// Respond sends a success response.
func (rc *RequestContext) Respond(payload any) {
	if err := rc.Client.Respond(rc.Frame.ID, payload); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send response")
	}
}

// RespondError sends an error response.
func (rc *RequestContext) RespondError(code, message string) {
	rc.Client.RespondError(rc.Frame.ID, ErrorShape{
		Code:    code,
		Message: message,
	})
}

// Params unmarshals the request params into the given target.
func (rc *RequestContext) Params(target any) error {
	if rc.Frame.Params == nil {
		return nil
	}
	return json.Unmarshal(rc.Frame.Params, target)
}
