package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sentineld/avengine/internal/api/utils"
	"github.com/sentineld/avengine/internal/monitor"
)

// MonitorService fronts the File Monitor's watch management.
type MonitorService struct {
	monitor *monitor.Monitor
}

// NewMonitorService builds a MonitorService.
func NewMonitorService(m *monitor.Monitor) *MonitorService {
	return &MonitorService{monitor: m}
}

type watchRequest struct {
	Path string `json:"path"`
}

// AddWatchHandler starts watching a directory tree.
func (svc *MonitorService) AddWatchHandler(w http.ResponseWriter, r *http.Request) {
	var req watchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		utils.SendError(w, utils.NewAPIError("path is required", http.StatusBadRequest))
		return
	}
	svc.monitor.AddWatch(req.Path)
	utils.SendSuccessWithMessage(w, "watch added", nil)
}

// RemoveWatchHandler stops watching a directory tree.
func (svc *MonitorService) RemoveWatchHandler(w http.ResponseWriter, r *http.Request) {
	var req watchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		utils.SendError(w, utils.NewAPIError("path is required", http.StatusBadRequest))
		return
	}
	svc.monitor.RemoveWatch(req.Path)
	utils.SendSuccessWithMessage(w, "watch removed", nil)
}

// StatusHandler reports the monitor's running state and queue depth.
func (svc *MonitorService) StatusHandler(w http.ResponseWriter, r *http.Request) {
	utils.SendSuccess(w, map[string]any{
		"running":     svc.monitor.IsRunning(),
		"watches":     svc.monitor.WatchedRoots(),
		"queued":      svc.monitor.QueueLength(),
		"enqueued":    svc.monitor.EnqueuedCount(),
		"quarantined": svc.monitor.QuarantinedCount(),
	})
}
