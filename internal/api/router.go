// Package api wires the Admin API's HTTP surface: gorilla/mux
// subrouters split public from authenticated routes, each layered
// with security and rate-limit middleware.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/sentineld/avengine/internal/api/handlers"
	"github.com/sentineld/avengine/internal/api/utils"
	"github.com/sentineld/avengine/internal/audit"
	"github.com/sentineld/avengine/internal/auth"
	"github.com/sentineld/avengine/internal/monitor"
	"github.com/sentineld/avengine/internal/scanner"
	"github.com/sentineld/avengine/internal/scheduledscan"
	"github.com/sentineld/avengine/internal/threatengine"
)

// Deps collects the core components the Admin API fronts.
type Deps struct {
	Engine     *threatengine.Engine
	Scanner    *scanner.Scanner
	Monitor    *monitor.Monitor
	Scheduler  *scheduledscan.Scheduler
	AuthSvc    *auth.Service
	AuditStore *audit.Store
}

// Router builds the Admin API's mux.Router.
func Router(deps Deps) *mux.Router {
	router := mux.NewRouter()
	router.Use(utils.InputValidationMiddleware)
	router.Use(utils.RateLimitMiddleware(rate.Limit(10), 20, 10))

	scanSvc := handlers.NewScanService(deps.Scanner, deps.AuditStore)
	quarantineSvc := handlers.NewQuarantineService(deps.Engine)
	signatureSvc := handlers.NewSignatureService(deps.Engine)
	scheduleSvc := handlers.NewScheduleService(deps.Scheduler)
	monitorSvc := handlers.NewMonitorService(deps.Monitor)
	authSvc := handlers.NewAuthService(deps.AuthSvc)

	public := router.PathPrefix("/api").Subrouter()
	public.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	public.HandleFunc("/login", authSvc.LoginHandler).Methods(http.MethodPost)

	protected := router.PathPrefix("/api").Subrouter()
	protected.Use(deps.AuthSvc.AuthMiddleware)
	protected.Use(utils.RateLimitMiddleware(rate.Limit(20), 40, 20))

	protected.HandleFunc("/scans/file", scanSvc.ScanFileHandler).Methods(http.MethodPost)
	protected.HandleFunc("/scans/folder", scanSvc.ScanFolderHandler).Methods(http.MethodPost)
	protected.HandleFunc("/scans/quick", scanSvc.StartQuickScanHandler).Methods(http.MethodPost)
	protected.HandleFunc("/scans/full", scanSvc.StartFullScanHandler).Methods(http.MethodPost)
	protected.HandleFunc("/scans/cancel", scanSvc.CancelScanHandler).Methods(http.MethodPost)
	protected.HandleFunc("/scans/status", scanSvc.ScanStatusHandler).Methods(http.MethodGet)
	protected.HandleFunc("/scans/last", scanSvc.LastResultHandler).Methods(http.MethodGet)

	protected.HandleFunc("/quarantine", quarantineSvc.ListHandler).Methods(http.MethodGet)
	protected.HandleFunc("/quarantine/{id}", quarantineSvc.GetHandler).Methods(http.MethodGet)
	protected.HandleFunc("/quarantine/{id}/restore", quarantineSvc.RestoreHandler).Methods(http.MethodPost)
	protected.HandleFunc("/quarantine/{id}", quarantineSvc.DeleteHandler).Methods(http.MethodDelete)

	protected.HandleFunc("/signatures", signatureSvc.VersionHandler).Methods(http.MethodGet)
	protected.HandleFunc("/signatures/reload", signatureSvc.ReloadHandler).Methods(http.MethodPost)

	protected.HandleFunc("/schedule", scheduleSvc.GetHandler).Methods(http.MethodGet)
	protected.HandleFunc("/schedule", scheduleSvc.PutHandler).Methods(http.MethodPut)
	protected.HandleFunc("/schedule/trigger", scheduleSvc.TriggerHandler).Methods(http.MethodPost)

	protected.HandleFunc("/monitor/watch", monitorSvc.AddWatchHandler).Methods(http.MethodPost)
	protected.HandleFunc("/monitor/watch", monitorSvc.RemoveWatchHandler).Methods(http.MethodDelete)
	protected.HandleFunc("/monitor/status", monitorSvc.StatusHandler).Methods(http.MethodGet)

	protected.Handle("/users", auth.RequireRoleMiddleware("admin", http.HandlerFunc(authSvc.CreateUserHandler))).Methods(http.MethodPost)

	return router
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	utils.SendSuccess(w, map[string]string{"status": "ok"})
}
