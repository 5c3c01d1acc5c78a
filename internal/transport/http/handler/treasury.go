package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"treasury-reconciler/internal/logging"
	"treasury-reconciler/internal/models"
	"treasury-reconciler/internal/repositories/postgresrepo"
	"treasury-reconciler/internal/services"
	"treasury-reconciler/internal/structured"

	"github.com/go-playground/validator"
)

type OperationManager interface {
	ListOperations(ctx context.Context, treasuryID int64, status models.OperationStatus, limit int) ([]models.TreasuryOperation, error)
	UpdateStatus(ctx context.Context, treasuryID int64, id string, to models.OperationStatus, txHash *string) (*models.TreasuryOperation, error)
}

type AccountJoiner interface {
	Join(ctx context.Context, treasuryID int64, req services.JoinRequest) (*models.TreasuryAccount, bool, error)
}

type Treasury struct {
	operations OperationManager
	accounts   AccountJoiner
	logger     logging.Logger
	validate   *validator.Validate
}

func NewTreasury(mux *http.ServeMux, operations OperationManager, accounts AccountJoiner, logger logging.Logger) *Treasury {
	h := &Treasury{
		operations: operations,
		accounts:   accounts,
		logger:     logger,
		validate:   validator.New(),
	}

	mux.HandleFunc("GET /api/v1/treasuries/{treasuryId}/operations", h.listOperations)
	mux.HandleFunc("POST /api/v1/treasuries/{treasuryId}/operations/{operationId}/status", h.updateStatus)
	mux.HandleFunc("POST /api/v1/treasuries/{treasuryId}/accounts", h.joinTreasury)

	return h
}

type StatusUpdateRequest struct {
	Status models.OperationStatus `json:"status" validate:"required"`
	TxHash *string                `json:"tx_hash,omitempty" validate:"omitempty,hexadecimal"`
}

type JoinResponse struct {
	models.TreasuryAccount
	StructuredMessage string `json:"structured_message"`
}

// @Summary List treasury operations
// @Description Lists the newest operations of a treasury with the given status, for manual review
// @Tags operations
// @Produce json
// @Param treasuryId path int true "Treasury ID"
// @Param status query string false "Operation status" default(processed-account-not-found)
// @Param limit query int false "Maximum number of operations" default(50)
// @Success 200 {array} models.TreasuryOperation
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /treasuries/{treasuryId}/operations [get]
func (h *Treasury) listOperations(w http.ResponseWriter, r *http.Request) {
	treasuryID, ok := h.treasuryID(w, r)
	if !ok {
		return
	}

	status := models.StatusProcessedAccountMissing
	if s := r.URL.Query().Get("status"); s != "" {
		status = models.OperationStatus(s)
	}
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown operation status")
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	ops, err := h.operations.ListOperations(r.Context(), treasuryID, status, limit)
	if err != nil {
		if errors.Is(err, postgresrepo.ErrTreasuryNotFound) {
			writeError(w, http.StatusNotFound, "Treasury not found")
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list operations: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, ops)
}

// @Summary Report a settlement step
// @Description Moves an operation along its status machine, e.g. pending -> confirming with the submitted tx hash
// @Tags operations
// @Accept json
// @Produce json
// @Param treasuryId path int true "Treasury ID"
// @Param operationId path string true "Operation ID"
// @Param request body StatusUpdateRequest true "Status update"
// @Success 200 {object} models.TreasuryOperation
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /treasuries/{treasuryId}/operations/{operationId}/status [post]
func (h *Treasury) updateStatus(w http.ResponseWriter, r *http.Request) {
	treasuryID, ok := h.treasuryID(w, r)
	if !ok {
		return
	}
	operationID := r.PathValue("operationId")
	if operationID == "" {
		writeError(w, http.StatusBadRequest, "Invalid operation ID")
		return
	}

	var req StatusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	if !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown operation status")
		return
	}

	op, err := h.operations.UpdateStatus(r.Context(), treasuryID, operationID, req.Status, req.TxHash)
	if err != nil {
		switch {
		case errors.Is(err, postgresrepo.ErrOperationNotFound):
			writeError(w, http.StatusNotFound, "Operation not found")
		case errors.Is(err, models.ErrInvalidTransition), errors.Is(err, postgresrepo.ErrStatusConflict):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, services.ErrTxHashRequired):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to update operation: %v", err))
		}
		return
	}

	h.logger.WithFields(logging.Fields{
		"treasury_id":  treasuryID,
		"operation_id": operationID,
		"status":       op.Status,
	}).Info("Operation status updated")

	writeJSON(w, http.StatusOK, op)
}

// @Summary Join a treasury
// @Description Registers a beneficiary account and assigns it the structured message to pay with
// @Tags accounts
// @Accept json
// @Produce json
// @Param treasuryId path int true "Treasury ID"
// @Param request body services.JoinRequest true "Account"
// @Success 200 {object} JoinResponse "already registered"
// @Success 201 {object} JoinResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /treasuries/{treasuryId}/accounts [post]
func (h *Treasury) joinTreasury(w http.ResponseWriter, r *http.Request) {
	treasuryID, ok := h.treasuryID(w, r)
	if !ok {
		return
	}

	var req services.JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	account, created, err := h.accounts.Join(r.Context(), treasuryID, req)
	if err != nil {
		if errors.Is(err, postgresrepo.ErrTreasuryNotFound) {
			writeError(w, http.StatusNotFound, "Treasury not found")
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to join treasury: %v", err))
		return
	}

	statusCode := http.StatusOK
	if created {
		statusCode = http.StatusCreated
	}
	writeJSON(w, statusCode, JoinResponse{
		TreasuryAccount:   *account,
		StructuredMessage: structured.Pretty(account.ID),
	})
}

func (h *Treasury) treasuryID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("treasuryId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid treasury ID")
		return 0, false
	}
	return id, true
}
