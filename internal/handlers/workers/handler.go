package workers

import (
	"net/http"

	"github.com/gorilla/mux"

	"gitlab.com/judgeflow.net/internal/core/ports/primary"
	"gitlab.com/judgeflow.net/internal/core/services/worker"
	"gitlab.com/judgeflow.net/internal/handlers"
)

type ApiHandler struct {
	WorkerService worker.IWorkerRegistrationService
	logger        primary.Logger
}

func NewHandler(WorkerService worker.IWorkerRegistrationService, logger primary.Logger) *ApiHandler {
	return &ApiHandler{
		WorkerService: WorkerService,
		logger:        logger,
	}
}

func (api *ApiHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/workers", api.GetWorkers).Methods("GET")
}

func (api *ApiHandler) GetWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := api.WorkerService.GetAllWorkers(r.Context())
	if err != nil {
		api.logger.Error("Failed to get workers", "error", err)
		handlers.ResponseError(w, "Failed to get workers", http.StatusInternalServerError)
		return
	}

	handlers.ResponseWithJson(w, http.StatusOK, map[string]interface{}{"workers": workers})
}
