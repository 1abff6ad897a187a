package handlers

import (
	"net/http"
	"time"

	"github.com/cccs/finance-portal/internal/services"
)

type ReconciliationHandler struct {
	reconciliation *services.ReconciliationService
}

func NewReconciliationHandler(reconciliation *services.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{reconciliation: reconciliation}
}

// Reconcile runs the balance audit on demand
// @Summary Balance reconciliation
// @Description Accounts whose stored balance differs from initial balance minus payments
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool,checked_at=string,data=[]models.BalanceDrift}
// @Failure 403 {object} services.ErrorResponse
// @Router /admin/reconciliation [get]
func (h *ReconciliationHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	drifts, err := h.reconciliation.Reconcile(r.Context())
	if err != nil {
		services.SendError(w, err)
		return
	}

	services.SendJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"checked_at": time.Now().UTC(),
		"data":       drifts,
	})
}
