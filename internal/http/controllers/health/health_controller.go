// Package health expone healthz/readyz.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/centavo/internal/cache"
	"github.com/dropDatabas3/centavo/internal/http/helpers"
	"github.com/dropDatabas3/centavo/internal/store/core"
)

type Controller struct {
	repo  core.Repository
	cache cache.Client
}

func NewController(repo core.Repository, c cache.Client) *Controller {
	return &Controller{repo: repo, cache: c}
}

// Healthz maneja GET /healthz: el proceso está vivo.
func (c *Controller) Healthz(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz maneja GET /readyz: storage y cache responden.
func (c *Controller) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := map[string]string{"storage": "ok", "cache": "ok"}
	status := http.StatusOK

	if err := c.repo.Ping(ctx); err != nil {
		deps["storage"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if err := c.cache.Ping(ctx); err != nil {
		deps["cache"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	helpers.WriteJSON(w, status, deps)
}
