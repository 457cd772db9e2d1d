package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/anucarts/marketplace-backend/api/responses"
	"github.com/anucarts/marketplace-backend/pkg/config"
	pkgerrors "github.com/anucarts/marketplace-backend/pkg/errors"
	"github.com/anucarts/marketplace-backend/pkg/logger"
)

const (
	envHeader         = "X-Anucarts-Env"
	readyCheckTimeout = 2 * time.Second
)

// Pinger is a dependency probed by the readiness endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every named dependency and answers 503 when any fails.
func HealthReady(cfg *config.Config, checks map[string]Pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		defer cancel()

		results := make(map[string]string, len(checks))
		ready := true
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check.Ping(ctx); err != nil {
				results[name] = err.Error()
				ready = false
				continue
			}
			results[name] = "ok"
		}

		if !ready {
			err := pkgerrors.New(pkgerrors.CodeUnavailable, "dependencies unavailable").WithDetails(results)
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": results})
	}
}
