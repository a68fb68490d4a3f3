package controllers

import (
	"net/http"

	"go.uber.org/zap"
)

type Pinger interface {
	Ping() error
}

type HealthController struct {
	DB     Pinger
	Logger *zap.Logger
}

func (healthController *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	setJSONHeaders(w)

	if err := healthController.DB.Ping(); err != nil {
		if healthController.Logger != nil {
			healthController.Logger.Warn("database ping failed", zap.Error(err))
		}
		respondError(w, http.StatusServiceUnavailable, errorCodePersistence, "Database unavailable")
		return
	}

	respondSuccess(w, http.StatusOK, map[string]string{"database": "ok"})
}
