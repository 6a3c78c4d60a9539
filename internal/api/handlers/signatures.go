package handlers

import (
	"net/http"

	"github.com/sentineld/avengine/internal/api/utils"
	"github.com/sentineld/avengine/internal/threatengine"
)

// SignatureService fronts signature database introspection and reload.
type SignatureService struct {
	engine *threatengine.Engine
}

// NewSignatureService builds a SignatureService.
func NewSignatureService(engine *threatengine.Engine) *SignatureService {
	return &SignatureService{engine: engine}
}

// VersionHandler reports the currently active signature database
// version.
func (svc *SignatureService) VersionHandler(w http.ResponseWriter, r *http.Request) {
	utils.SendSuccess(w, map[string]uint32{"version": svc.engine.ActiveSignatureVersion()})
}

// ReloadHandler re-reads the signature database from disk and
// publishes it as the new active snapshot.
func (svc *SignatureService) ReloadHandler(w http.ResponseWriter, r *http.Request) {
	version, err := svc.engine.UpdateDatabase()
	if err != nil {
		utils.SendError(w, utils.APIErrorFromErr(err))
		return
	}
	utils.SendSuccessWithMessage(w, "signature database reloaded", map[string]uint32{"version": version})
}
