package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/classpilot/tool-runtime/internal/config"
	"github.com/classpilot/tool-runtime/internal/gate"
	"github.com/classpilot/tool-runtime/internal/store"
	"github.com/classpilot/tool-runtime/internal/toolerr"
	"github.com/classpilot/tool-runtime/internal/tools"
)

type Dependencies struct {
	Config   config.Config
	Store    *store.Store
	Registry *tools.Registry
	Gate     *gate.Gate
	Logger   *slog.Logger
}

type router struct {
	deps Dependencies
}

func NewRouter(deps Dependencies) http.Handler {
	rt := &router{deps: deps}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.handleHealth)
	mux.HandleFunc("/readyz", rt.handleReady)
	mux.HandleFunc("/api/v1/info", rt.handleInfo)
	mux.HandleFunc("/api/v1/tools", rt.handleTools)
	mux.HandleFunc("/api/v1/toolcalls", rt.handleToolCalls)
	mux.HandleFunc("/api/v1/confirmations", rt.handleConfirmations)
	mux.HandleFunc("/api/v1/confirmations/approve", rt.handleApprove)
	mux.HandleFunc("/api/v1/confirmations/deny", rt.handleDeny)
	mux.HandleFunc("/api/v1/tasks", rt.handleTasks)
	return mux
}

type toolCallRequest struct {
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
}

func (r *router) handleToolCalls(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var payload toolCallRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if strings.TrimSpace(payload.Tool) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tool is required"})
		return
	}

	outcome, err := r.deps.Gate.Dispatch(req.Context(), payload.Tool, payload.Arguments)
	if err != nil {
		writeJSON(w, dispatchStatus(err), map[string]string{"error": err.Error()})
		return
	}

	if outcome.Deferred() {
		writeJSON(w, http.StatusAccepted, map[string]any{
			"pending_id":      outcome.Pending.ID,
			"tool":            outcome.Pending.ToolName,
			"expires_at_unix": outcome.Pending.ExpiresAt.Unix(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": outcome.Result})
}

func dispatchStatus(err error) int {
	switch {
	case errors.Is(err, toolerr.ErrUnknownTool):
		return http.StatusNotFound
	case errors.Is(err, toolerr.ErrInvalidArgs), errors.Is(err, toolerr.ErrInvalidSchedule):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (r *router) handleConfirmations(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	open := r.deps.Gate.Open()
	items := make([]map[string]any, 0, len(open))
	for _, pending := range open {
		items = append(items, map[string]any{
			"pending_id":      pending.ID,
			"tool":            pending.ToolName,
			"arguments":       json.RawMessage(pending.Args),
			"created_at_unix": pending.CreatedAt.Unix(),
			"expires_at_unix": pending.ExpiresAt.Unix(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

type resolveRequest struct {
	PendingID string `json:"pending_id"`
}

func (r *router) handleApprove(w http.ResponseWriter, req *http.Request) {
	r.handleResolve(w, req, gate.DecisionApprove)
}

func (r *router) handleDeny(w http.ResponseWriter, req *http.Request) {
	r.handleResolve(w, req, gate.DecisionDeny)
}

func (r *router) handleResolve(w http.ResponseWriter, req *http.Request, decision gate.Decision) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var payload resolveRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if strings.TrimSpace(payload.PendingID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "pending_id is required"})
		return
	}

	result, err := r.deps.Gate.Resolve(req.Context(), payload.PendingID, decision)
	if err != nil {
		writeJSON(w, resolveStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": result})
}

func resolveStatus(err error) int {
	switch {
	case errors.Is(err, toolerr.ErrPendingNotFound):
		return http.StatusNotFound
	case errors.Is(err, toolerr.ErrAlreadyResolved), errors.Is(err, toolerr.ErrPendingExpired):
		return http.StatusConflict
	default:
		// Includes ErrMissingExecutor: a registry/executor-table mismatch is a
		// configuration defect, not a client mistake.
		return http.StatusInternalServerError
	}
}

func (r *router) handleTools(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	list := r.deps.Registry.List()
	items := make([]map[string]any, 0, len(list))
	for _, tool := range list {
		items = append(items, map[string]any{
			"name":                  tool.Name(),
			"description":           tool.Description(),
			"parameters_schema":     tool.ParametersSchema(),
			"requires_confirmation": tools.RequiresConfirmation(tool),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (r *router) handleTasks(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	tasks, err := r.deps.Store.ListScheduledTasks(req.Context(), store.ListScheduledTasksInput{Limit: 100})
	if err != nil {
		r.deps.Logger.Error("list scheduled tasks failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	items := make([]map[string]any, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, scheduledTaskToMap(task))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func scheduledTaskToMap(task store.ScheduledTask) map[string]any {
	payload := map[string]any{
		"id":            task.ID,
		"trigger_type":  task.TriggerType,
		"trigger_value": task.TriggerValue,
		"action":        task.ActionName,
		"payload":       task.Payload,
		"status":        task.Status,
		"last_error":    task.LastError,
	}
	if !task.NextRunAt.IsZero() {
		payload["next_run_unix"] = task.NextRunAt.Unix()
	}
	if !task.LastRunAt.IsZero() {
		payload["last_run_unix"] = task.LastRunAt.Unix()
	}
	return payload
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
