package controllers

import (
	"context"
	"net/http"

	"github.com/partsdepot/partsdepot-backend/api/responses"
	"github.com/partsdepot/partsdepot-backend/pkg/config"
	pkgerrors "github.com/partsdepot/partsdepot-backend/pkg/errors"
	"github.com/partsdepot/partsdepot-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PartsDepot-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, redisP pinger) http.HandlerFunc {
	probes := []struct {
		name string
		ping pinger
	}{
		{name: "database", ping: dbP},
		{name: "redis", ping: redisP},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PartsDepot-Env", cfg.App.Env)
		for _, probe := range probes {
			if probe.ping == nil {
				continue
			}
			if err := probe.ping.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, probe.name+" unavailable").
						WithDetails(map[string]any{"dependency": probe.name}))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
