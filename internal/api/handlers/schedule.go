package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sentineld/avengine/internal/api/utils"
	"github.com/sentineld/avengine/internal/scanner"
	"github.com/sentineld/avengine/internal/scheduledscan"
)

// ScheduleService fronts the Scheduled Scanner's configuration and
// manual trigger.
type ScheduleService struct {
	scheduler *scheduledscan.Scheduler
}

// NewScheduleService builds a ScheduleService.
func NewScheduleService(s *scheduledscan.Scheduler) *ScheduleService {
	return &ScheduleService{scheduler: s}
}

// GetHandler returns the currently installed schedule.
func (svc *ScheduleService) GetHandler(w http.ResponseWriter, r *http.Request) {
	utils.SendSuccess(w, svc.scheduler.Schedule())
}

type scheduleRequest struct {
	Kind       string `json:"kind"`
	Hour       int    `json:"hour"`
	DayOfWeek  int    `json:"day_of_week"`
	DayOfMonth int    `json:"day_of_month"`
	Enabled    bool   `json:"enabled"`
	ScanKind   string `json:"scan_kind"`
}

func parseScheduleKind(s string) (scheduledscan.Kind, bool) {
	switch s {
	case "daily":
		return scheduledscan.Daily, true
	case "weekly":
		return scheduledscan.Weekly, true
	case "monthly":
		return scheduledscan.Monthly, true
	case "disabled", "":
		return scheduledscan.Disabled, true
	default:
		return scheduledscan.Disabled, false
	}
}

func parseScanKind(s string) scanner.Kind {
	switch s {
	case "full":
		return scanner.KindFull
	default:
		return scanner.KindQuick
	}
}

// PutHandler validates and installs a new schedule.
func (svc *ScheduleService) PutHandler(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendError(w, utils.NewAPIError("invalid request body", http.StatusBadRequest))
		return
	}
	kind, ok := parseScheduleKind(req.Kind)
	if !ok {
		utils.SendError(w, utils.NewAPIError("unknown schedule kind", http.StatusBadRequest))
		return
	}
	cfg := scheduledscan.Config{
		Kind:       kind,
		Hour:       req.Hour,
		DayOfWeek:  time.Weekday(req.DayOfWeek),
		DayOfMonth: req.DayOfMonth,
		Enabled:    req.Enabled,
		ScanKind:   parseScanKind(req.ScanKind),
	}
	if err := svc.scheduler.SetSchedule(cfg); err != nil {
		utils.SendError(w, utils.NewAPIError(err.Error(), http.StatusBadRequest))
		return
	}
	utils.SendSuccessWithMessage(w, "schedule updated", cfg)
}

// TriggerHandler immediately starts the configured scan kind.
func (svc *ScheduleService) TriggerHandler(w http.ResponseWriter, r *http.Request) {
	cfg := svc.scheduler.Schedule()
	if !svc.scheduler.TriggerNow(cfg.ScanKind) {
		utils.SendError(w, utils.NewAPIError("a scan is already in progress", http.StatusConflict))
		return
	}
	utils.SendSuccessWithMessage(w, "scan triggered", nil)
}
