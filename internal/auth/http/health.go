package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/projectx/pkg/authsdk"
	"github.com/aussiebroadwan/projectx/pkg/httpx"
)

// readyTimeout bounds each dependency ping.
const readyTimeout = 2 * time.Second

// Pinger is implemented by backends that can report their own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LivezHandler godoc
//
//	@Summary		Liveness probe
//	@Description	Always 200 while the process is serving. Touches no backend.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version"
//	@Router			/livez [get].
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.NoCache(w)
		httpx.WriteJSON(w, http.StatusOK, authsdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Version: version,
		})
	}
}

// ReadyzHandler godoc
//
//	@Summary		Readiness probe
//	@Description	Pings the credential store and, when it is remote, the 2FA challenge store.
//	@Description	Any failing dependency turns the response into 503 "degraded".
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	authsdk.HealthResponse	"one or more dependencies unreachable"
//	@Router			/readyz [get].
func ReadyzHandler(startTime time.Time, version string, db, challenges Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		checks := &authsdk.HealthChecks{
			Database:   probe(ctx, db),
			Challenges: "ok (in-process)",
		}
		if challenges != nil {
			checks.Challenges = probe(ctx, challenges)
		}

		resp := authsdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Version: version,
			Checks:  checks,
		}
		code := http.StatusOK
		if checks.Database != "ok" || (challenges != nil && checks.Challenges != "ok") {
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		}

		httpx.NoCache(w)
		httpx.WriteJSON(w, code, resp)
	}
}

func probe(ctx context.Context, p Pinger) string {
	if err := p.Ping(ctx); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}
