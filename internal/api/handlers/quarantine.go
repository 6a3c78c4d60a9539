package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sentineld/avengine/internal/api/utils"
	"github.com/sentineld/avengine/internal/threatengine"
)

// QuarantineService fronts the Threat Engine's quarantine operations.
type QuarantineService struct {
	engine *threatengine.Engine
}

// NewQuarantineService builds a QuarantineService.
func NewQuarantineService(engine *threatengine.Engine) *QuarantineService {
	return &QuarantineService{engine: engine}
}

// ListHandler returns every currently quarantined entry.
func (svc *QuarantineService) ListHandler(w http.ResponseWriter, r *http.Request) {
	utils.SendSuccess(w, svc.engine.QuarantinedFiles())
}

// GetHandler returns a single quarantine entry by id.
func (svc *QuarantineService) GetHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	entry, ok := svc.engine.QuarantinedFile(id)
	if !ok {
		utils.SendError(w, utils.NewAPIError("quarantine entry not found", http.StatusNotFound))
		return
	}
	utils.SendSuccess(w, entry)
}

type restoreRequest struct {
	Destination string `json:"destination"`
}

// RestoreHandler writes a quarantined payload back to its original
// location, or to an explicit destination in the request body.
func (svc *QuarantineService) RestoreHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	entry, ok := svc.engine.QuarantinedFile(id)
	if !ok {
		utils.SendError(w, utils.NewAPIError("quarantine entry not found", http.StatusNotFound))
		return
	}

	var req restoreRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	dest := req.Destination
	if dest == "" {
		dest = entry.OriginalPath
	}

	if err := svc.engine.Restore(id, dest); err != nil {
		utils.SendError(w, utils.APIErrorFromErr(err))
		return
	}
	utils.SendSuccessWithMessage(w, "restored", nil)
}

// DeleteHandler permanently deletes a quarantined payload.
func (svc *QuarantineService) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := svc.engine.PurgeQuarantine(id); err != nil {
		utils.SendError(w, utils.APIErrorFromErr(err))
		return
	}
	utils.SendSuccessWithMessage(w, "deleted", nil)
}
