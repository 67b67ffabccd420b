package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/pipeflowhq/pipeflow-backend/api/responses"
	"github.com/pipeflowhq/pipeflow-backend/pkg/config"
	pkgerrors "github.com/pipeflowhq/pipeflow-backend/pkg/errors"
	"github.com/pipeflowhq/pipeflow-backend/pkg/logger"
)

const healthCheckTimeout = 2 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Pipeflow-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady verifies the database and redis are reachable before
// reporting ready.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, redisP pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Pipeflow-Env", cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		checks := map[string]string{}
		healthy := true

		if dbP != nil {
			if err := dbP.Ping(ctx); err != nil {
				checks["database"] = "unavailable"
				healthy = false
				if logg != nil {
					logg.Error(ctx, "database health check failed", err)
				}
			} else {
				checks["database"] = "ok"
			}
		}
		if redisP != nil {
			if err := redisP.Ping(ctx); err != nil {
				checks["redis"] = "unavailable"
				healthy = false
				if logg != nil {
					logg.Error(ctx, "redis health check failed", err)
				}
			} else {
				checks["redis"] = "ok"
			}
		}

		if !healthy {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
