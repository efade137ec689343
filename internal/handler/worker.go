package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/fixitug/fixit-admin/internal/model"
	"github.com/fixitug/fixit-admin/internal/server/middleware"
	"github.com/fixitug/fixit-admin/internal/store"
)

// WorkerHandler exposes the worker verification decision. This is the one
// marketplace operation the admin back office owns directly.
type WorkerHandler struct {
	logger *slog.Logger
	store  *store.Store
}

// NewWorkerHandler creates a new WorkerHandler.
func NewWorkerHandler(logger *slog.Logger, st *store.Store) *WorkerHandler {
	return &WorkerHandler{logger: logger, store: st}
}

// verifyWorkerRequest is the expected payload for VerifyWorker.
type verifyWorkerRequest struct {
	WorkerID        string `json:"workerId"`
	Status          string `json:"status"`
	RejectionReason string `json:"rejectionReason,omitempty"`
}

// VerifyWorker decides a pending worker application. "approved" moves the
// worker to verified, "rejected" moves it to suspended with the reason
// recorded. Workers that have already been decided come back 409.
// POST /api/admin/verify-worker
func (h *WorkerHandler) VerifyWorker(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	if sess == nil || sess.Role != model.AdminRole {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req verifyWorkerRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.WorkerID == "" {
		writeError(w, http.StatusBadRequest, "workerId is required")
		return
	}
	if req.Status != "approved" && req.Status != "rejected" {
		writeError(w, http.StatusBadRequest, "status must be \"approved\" or \"rejected\"")
		return
	}
	if req.Status == "rejected" && req.RejectionReason == "" {
		writeError(w, http.StatusBadRequest, "rejectionReason is required when rejecting")
		return
	}

	worker, err := h.store.GetWorker(r.Context(), req.WorkerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Worker not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load worker")
		return
	}

	newStatus := model.WorkerVerified
	action := model.ActionWorkerApproved
	if req.Status == "rejected" {
		newStatus = model.WorkerSuspended
		action = model.ActionWorkerRejected
	}

	err = h.store.UpdateWorkerVerification(r.Context(), worker.ID, newStatus, req.RejectionReason, sess.AdminID)
	if err != nil {
		// The update only matches pending rows, so a vanished row here
		// means the worker was decided since the read above.
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusConflict, "Worker has already been decided")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update worker")
		return
	}

	adminID := sess.AdminID
	entry := &model.AuditLog{
		AdminID:      &adminID,
		Action:       action,
		ResourceType: model.ResourceWorker,
		ResourceID:   worker.ID,
		Details: map[string]any{
			"worker_id":        worker.ID,
			"status":           req.Status,
			"rejection_reason": req.RejectionReason,
			"previous_status":  worker.Status,
		},
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
	if err := h.store.AppendAuditLog(r.Context(), entry); err != nil {
		h.logger.Warn("audit log write failed", "action", action, "error", err)
	}

	updated, err := h.store.GetWorker(r.Context(), worker.ID)
	if err != nil {
		// The decision went through; fall back to the pre-update row with
		// the new status applied.
		worker.Status = newStatus
		worker.RejectionReason = req.RejectionReason
		updated = worker
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"worker":  updated,
	})
}
