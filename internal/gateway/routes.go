package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/soyeahso/quotemill/internal/discovery"
	"github.com/soyeahso/quotemill/internal/pipeline"
)

// safeConfigPrefixes lists config path prefixes that can be read and
// written via RPC. All other paths are denied by default (allowlist).
var safeConfigPrefixes = []string{
	"gateway.port",
	"gateway.bind",
	"gateway.customBindHost",
	"discovery",
	"enrichment",
	"pricing",
	"session",
	"logging",
}

func isAllowedConfigPath(key string) bool {
	for _, prefix := range safeConfigPrefixes {
		if key == prefix || strings.HasPrefix(key, prefix+".") {
			return true
		}
	}
	return false
}

// turnTimeout bounds a single reasoning call.
const turnTimeout = 5 * time.Minute

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /sessions/{id}/status", s.handleSessionStatus)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

// registerRPCHandlers sets up all JSON-RPC method handlers.
func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("config.get", s.rpcConfigGet)
	s.Handle("config.set", s.rpcConfigSet)
	s.Handle("session.turn", s.rpcSessionTurn)
	s.Handle("session.status", s.rpcSessionStatus)
	s.Handle("session.reset", s.rpcSessionReset)
	s.Handle("session.list", s.rpcSessionList)
	s.Handle("pipeline.start", s.rpcPipelineStart)
}

// Built-in RPC handlers

func (s *Server) rpcHealth(rc *RequestContext) {
	resp := HealthResponse{
		Status:  "ok",
		Version: s.version,
		Clients: s.clients.Count(),
	}
	if s.sessions != nil {
		resp.Sessions = len(s.sessions.List())
	}
	rc.Respond(resp)
}

type configGetParams struct {
	Key string `json:"key"`
}

func (s *Server) rpcConfigGet(rc *RequestContext) {
	var p configGetParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if p.Key == "" {
		rc.RespondError("invalid_params", "key is required")
		return
	}
	if !isAllowedConfigPath(p.Key) {
		rc.RespondError("forbidden", "access denied for config path: "+p.Key)
		return
	}

	s.mu.RLock()
	raw := s.configRaw
	s.mu.RUnlock()

	path, err := parseConfigPathForRPC(p.Key)
	if err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}

	val, ok := getValueAtPathRPC(raw, path)
	if !ok {
		rc.RespondError("not_found", "key not found: "+p.Key)
		return
	}
	rc.Respond(map[string]any{"key": p.Key, "value": val})
}

type configSetParams struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func (s *Server) rpcConfigSet(rc *RequestContext) {
	var p configSetParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if p.Key == "" {
		rc.RespondError("invalid_params", "key is required")
		return
	}
	if !isAllowedConfigPath(p.Key) {
		rc.RespondError("forbidden", "cannot modify config path: "+p.Key)
		return
	}

	path, err := parseConfigPathForRPC(p.Key)
	if err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}

	s.mu.Lock()
	setValueAtPathRPC(s.configRaw, path, p.Value)
	s.mu.Unlock()

	rc.Respond(map[string]any{"key": p.Key, "value": p.Value})
}

type sessionTurnParams struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

func (s *Server) rpcSessionTurn(rc *RequestContext) {
	if s.loop == nil {
		rc.RespondError("unavailable", "no reasoning provider configured")
		return
	}

	var p sessionTurnParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if p.SessionID == "" {
		rc.RespondError("invalid_params", "sessionId is required")
		return
	}
	if p.Message == "" {
		rc.RespondError("invalid_params", "message is required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
	defer cancel()

	res, err := s.loop.Turn(ctx, p.SessionID, p.Message)
	if err != nil {
		switch {
		case errors.Is(err, discovery.ErrTurnLimitExceeded):
			rc.RespondError("turn_limit", err.Error())
		case errors.Is(err, discovery.ErrSessionCompleted):
			rc.RespondError("session_completed", err.Error())
		default:
			rc.RespondError("reasoner_error", err.Error())
		}
		return
	}

	payload := map[string]any{
		"reply":     res.Reply,
		"turnCount": res.TurnCount,
		"state":     res.State,
		"done":      res.Done,
	}
	// Turn responses carry the live enrichment state so pollers do not
	// need a second round trip.
	if s.sessions != nil {
		if sess := s.sessions.Get(p.SessionID); sess != nil {
			payload["taskStatus"] = sessionStatusOf(sess).TaskStatus
			payload["itemCount"] = len(sess.Items)
		}
	}
	rc.Respond(payload)
}

type sessionIDParams struct {
	SessionID string `json:"sessionId"`
}

func (s *Server) rpcSessionStatus(rc *RequestContext) {
	if s.sessions == nil {
		rc.RespondError("unavailable", "no session store configured")
		return
	}

	var p sessionIDParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if p.SessionID == "" {
		rc.RespondError("invalid_params", "sessionId is required")
		return
	}

	sess := s.sessions.Get(p.SessionID)
	if sess == nil {
		rc.RespondError("not_found", "session not found: "+p.SessionID)
		return
	}
	rc.Respond(sessionStatusOf(sess))
}

func (s *Server) rpcSessionReset(rc *RequestContext) {
	if s.sessions == nil {
		rc.RespondError("unavailable", "no session store configured")
		return
	}

	var p sessionIDParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if p.SessionID == "" {
		rc.RespondError("invalid_params", "sessionId is required")
		return
	}

	if s.sup != nil {
		s.sup.Cancel(p.SessionID)
	}
	s.sessions.Delete(p.SessionID)
	rc.Respond(map[string]any{"sessionId": p.SessionID, "reset": true})
}

func (s *Server) rpcSessionList(rc *RequestContext) {
	if s.sessions == nil {
		rc.Respond(map[string]any{"sessions": []any{}})
		return
	}
	ids := s.sessions.List()
	if ids == nil {
		ids = []string{}
	}
	rc.Respond(map[string]any{"sessions": ids})
}

func (s *Server) rpcPipelineStart(rc *RequestContext) {
	if s.pipe == nil {
		rc.RespondError("unavailable", "no pipeline configured")
		return
	}

	var p sessionIDParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if p.SessionID == "" {
		rc.RespondError("invalid_params", "sessionId is required")
		return
	}

	events, err := s.pipe.Run(context.Background(), p.SessionID)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrSessionNotFound):
			rc.RespondError("not_found", err.Error())
		case errors.Is(err, pipeline.ErrNotCompleted):
			rc.RespondError("not_completed", err.Error())
		case errors.Is(err, pipeline.ErrPipelineRunning):
			rc.RespondError("pipeline_running", err.Error())
		default:
			rc.RespondError("pipeline_failed", err.Error())
		}
		return
	}

	rc.Respond(map[string]any{"sessionId": p.SessionID, "started": true})

	// Forward the run's progress stream to this client. The stream is
	// single-consumer and closes after its terminal event.
	go func() {
		for ev := range events {
			payload := map[string]any{
				"sessionId": p.SessionID,
				"progress":  ev,
			}
			if err := rc.Client.SendEvent("pipeline.progress", payload, s.eventSeq.Add(1)); err != nil {
				// Client is gone; drain the rest so the run can finish.
				for range events {
				}
				return
			}
		}
	}()
}

// Helpers that mirror config.ParseConfigPath / GetValueAtPath without importing config
// to avoid circular dependencies — they operate on raw maps only.

func parseConfigPathForRPC(raw string) ([]string, error) {
	if raw == "" {
		return nil, ErrEmptyConfigPath
	}
	var parts []string
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == '.' {
			if i == start {
				return nil, ErrEmptyConfigPath
			}
			parts = append(parts, raw[start:i])
			start = i + 1
		}
	}
	return parts, nil
}

func getValueAtPathRPC(root map[string]any, path []string) (any, bool) {
	current := any(root)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func setValueAtPathRPC(root map[string]any, path []string, value any) {
	current := root
	for _, key := range path[:len(path)-1] {
		next, ok := current[key]
		if !ok {
			next = map[string]any{}
			current[key] = next
		}
		m, ok := next.(map[string]any)
		if !ok {
			m = map[string]any{}
			current[key] = m
		}
		current = m
	}
	current[path[len(path)-1]] = value
}
