// Package handlers implements the Admin API's HTTP handlers, fronting
// the in-process Scanner, Monitor, and Scheduler.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sentineld/avengine/internal/api/utils"
	"github.com/sentineld/avengine/internal/audit"
	"github.com/sentineld/avengine/internal/scanner"
)

// ScanService fronts the core Scanner for the Admin API.
type ScanService struct {
	scanner *scanner.Scanner
	audit   *audit.Store
}

// NewScanService builds a ScanService. auditStore may be nil, in
// which case scan runs are simply not recorded.
func NewScanService(sc *scanner.Scanner, auditStore *audit.Store) *ScanService {
	return &ScanService{scanner: sc, audit: auditStore}
}

type scanRequest struct {
	Path string `json:"path"`
}

func (svc *ScanService) recordRun(kind scanner.Kind, result scanner.Result) {
	if svc.audit == nil {
		return
	}
	stats := svc.scanner.Statistics()
	run := audit.ScanRun{
		Kind:         kindName(kind),
		Outcome:      result.Outcome.String(),
		ScannedFiles: stats.ScannedFiles,
		SkippedFiles: stats.SkippedFiles,
		ThreatCount:  int64(len(result.Findings)),
	}
	runID := svc.audit.RecordScanRun(run)
	for _, f := range result.Findings {
		svc.audit.RecordThreat(audit.ThreatRecord{
			ScanRunID:  &runID,
			Path:       f.Path,
			RuleName:   f.RuleName,
			Severity:   f.Severity,
			FileSize:   f.FileSize,
			DetectedAt: f.DetectedAt,
		})
	}
}

func kindName(k scanner.Kind) string {
	switch k {
	case scanner.KindFile:
		return "file"
	case scanner.KindFolder:
		return "folder"
	case scanner.KindDrive:
		return "drive"
	case scanner.KindSystem:
		return "system"
	case scanner.KindQuick:
		return "quick"
	case scanner.KindFull:
		return "full"
	default:
		return "custom"
	}
}

// ScanFileHandler scans a single file, synchronously, and reports its
// findings.
func (svc *ScanService) ScanFileHandler(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		utils.SendError(w, utils.NewAPIError("path is required", http.StatusBadRequest))
		return
	}
	result := svc.scanner.ScanFile(req.Path)
	svc.recordRun(scanner.KindFile, result)
	utils.SendSuccess(w, result)
}

// ScanFolderHandler scans a folder tree, synchronously.
func (svc *ScanService) ScanFolderHandler(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		utils.SendError(w, utils.NewAPIError("path is required", http.StatusBadRequest))
		return
	}
	result := svc.scanner.ScanFolder(req.Path)
	svc.recordRun(scanner.KindFolder, result)
	utils.SendSuccess(w, result)
}

// StartQuickScanHandler launches an asynchronous quick scan.
func (svc *ScanService) StartQuickScanHandler(w http.ResponseWriter, r *http.Request) {
	svc.startAsync(w, scanner.KindQuick, nil)
}

// StartFullScanHandler launches an asynchronous full scan.
func (svc *ScanService) StartFullScanHandler(w http.ResponseWriter, r *http.Request) {
	svc.startAsync(w, scanner.KindFull, nil)
}

func (svc *ScanService) startAsync(w http.ResponseWriter, kind scanner.Kind, targets []string) {
	if !svc.scanner.StartAsync(kind, targets) {
		utils.SendError(w, utils.NewAPIError("a scan is already in progress", http.StatusConflict))
		return
	}
	utils.SendSuccessWithMessage(w, "scan started", nil)
}

// CancelScanHandler requests cooperative cancellation of the
// in-progress scan.
func (svc *ScanService) CancelScanHandler(w http.ResponseWriter, r *http.Request) {
	svc.scanner.Cancel()
	utils.SendSuccessWithMessage(w, "cancellation requested", nil)
}

// ScanStatusHandler reports whether a scan is running and its current
// progress statistics.
func (svc *ScanService) ScanStatusHandler(w http.ResponseWriter, r *http.Request) {
	utils.SendSuccess(w, map[string]any{
		"scanning":   svc.scanner.IsScanning(),
		"statistics": svc.scanner.Statistics(),
	})
}

// LastResultHandler returns the result of the most recently completed
// asynchronous scan.
func (svc *ScanService) LastResultHandler(w http.ResponseWriter, r *http.Request) {
	result, ok := svc.scanner.LastAsyncResult()
	if !ok {
		utils.SendError(w, utils.NewAPIError("no scan has completed yet", http.StatusNotFound))
		return
	}
	utils.SendSuccess(w, result)
}
