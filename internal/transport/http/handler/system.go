package handler

import (
	"net/http"

	_ "treasury-reconciler/docs"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

// NewSystem registers health, metrics and API docs.
func NewSystem(mux *http.ServeMux, gatherer prometheus.Gatherer) {
	mux.HandleFunc("GET /health", health)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/swagger/", httpSwagger.WrapHandler)
}

// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
