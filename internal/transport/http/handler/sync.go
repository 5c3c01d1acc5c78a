package handler

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"treasury-reconciler/internal/logging"
	"treasury-reconciler/internal/services"

	"github.com/go-playground/validator"
)

type SyncRunner interface {
	RunScheduledSync(ctx context.Context, provider string) (services.Report, error)
}

type Sync struct {
	runner   SyncRunner
	token    string
	timeout  time.Duration
	logger   logging.Logger
	validate *validator.Validate
}

func NewSync(mux *http.ServeMux, runner SyncRunner, token string, timeout time.Duration, logger logging.Logger) *Sync {
	h := &Sync{
		runner:   runner,
		token:    token,
		timeout:  timeout,
		logger:   logger,
		validate: validator.New(),
	}

	mux.HandleFunc("POST /api/v1/sync/{provider}", h.triggerSync)

	return h
}

// @Summary Trigger a scheduled sync
// @Description Runs the reconciliation of every treasury bound to the provider
// @Tags sync
// @Produce json
// @Security BearerAuth
// @Param provider path string true "Sync provider" Enums(ponto)
// @Success 200 {object} services.Report
// @Failure 401 {object} map[string]interface{}
// @Failure 502 {object} services.Report
// @Router /sync/{provider} [post]
func (h *Sync) triggerSync(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "Invalid or missing bearer token")
		return
	}

	provider := r.PathValue("provider")
	if err := h.validate.Var(provider, "required,alphanum"); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid provider")
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	report, err := h.runner.RunScheduledSync(ctx, provider)
	if err != nil {
		h.logger.WithError(err).WithField("provider", provider).Error("Sync run failed")
		writeError(w, http.StatusBadGateway, fmt.Sprintf("Sync run failed: %v", err))
		return
	}

	if report.HasFailures() {
		writeJSON(w, http.StatusBadGateway, report)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Sync) authorized(r *http.Request) bool {
	if h.token == "" {
		return false
	}
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) == 1
}
