package handlers

import (
	"net/http"

	"github.com/cccs/finance-portal/internal/services"
)

type PaymentHandler struct {
	payments *services.PaymentService
}

func NewPaymentHandler(payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// CreatePayment records a PayPal capture
// @Summary Record payment
// @Description Record a captured payment and lower the account balance by its amount
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.CreatePaymentRequest true "Capture result"
// @Success 201 {object} object{success=bool,message=string,data=models.Payment}
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse "Unauthorized or ACCOUNT_NOT_VALIDATED"
// @Failure 404 {object} services.ErrorResponse
// @Router /payments [post]
func (h *PaymentHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionClaims(w, r)
	if !ok {
		return
	}

	var req services.CreatePaymentRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.AccountID != 0 {
		if err := services.Authorize(claims, req.AccountID); err != nil {
			services.SendError(w, err)
			return
		}
	}

	payment, err := h.payments.CreatePayment(r.Context(), req)
	if err != nil {
		services.SendError(w, err)
		return
	}

	services.SendJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Payment recorded successfully",
		"data":    payment,
	})
}

// GetPayment returns one payment
// @Summary Get payment
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Payment ID"
// @Success 200 {object} object{success=bool,data=models.Payment}
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /payments/{id} [get]
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionClaims(w, r)
	if !ok {
		return
	}
	paymentID, err := pathID(r, "id")
	if err != nil {
		services.SendError(w, err)
		return
	}

	payment, err := h.payments.GetPayment(r.Context(), claims, paymentID)
	if err != nil {
		services.SendError(w, err)
		return
	}

	services.SendJSON(w, http.StatusOK, map[string]any{"success": true, "data": payment})
}

// ListPayments lists every payment, newest first
// @Summary List payments
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (default 100, max 500)"
// @Param offset query int false "Rows to skip"
// @Success 200 {object} object{success=bool,data=[]models.Payment}
// @Failure 403 {object} services.ErrorResponse
// @Router /payments [get]
func (h *PaymentHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.payments.ListPayments(r.Context(), queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		services.SendError(w, err)
		return
	}

	services.SendJSON(w, http.StatusOK, map[string]any{"success": true, "data": payments})
}

// ListAccountPayments lists one account's payments, oldest first
// @Summary List account payments
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param account_id path int true "Account ID"
// @Success 200 {object} object{success=bool,data=[]models.Payment}
// @Failure 401 {object} services.ErrorResponse "Unauthorized or ACCOUNT_NOT_VALIDATED"
// @Router /payments/account/{account_id} [get]
func (h *PaymentHandler) ListAccountPayments(w http.ResponseWriter, r *http.Request) {
	_, accountID, ok := authorizedAccount(w, r, "account_id")
	if !ok {
		return
	}

	payments, err := h.payments.ListAccountPayments(r.Context(), accountID)
	if err != nil {
		services.SendError(w, err)
		return
	}

	services.SendJSON(w, http.StatusOK, map[string]any{"success": true, "data": payments})
}

// UpdatePayment corrects a recorded payment
// @Summary Update payment
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Payment ID"
// @Param request body services.UpdatePaymentRequest true "Fields to change"
// @Success 200 {object} object{success=bool,message=string,data=models.Payment}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /payments/{id} [put]
func (h *PaymentHandler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionClaims(w, r)
	if !ok {
		return
	}
	paymentID, err := pathID(r, "id")
	if err != nil {
		services.SendError(w, err)
		return
	}

	var req services.UpdatePaymentRequest
	if !readJSON(w, r, &req) {
		return
	}

	payment, err := h.payments.UpdatePayment(r.Context(), claims.AccountID, paymentID, req)
	if err != nil {
		services.SendError(w, err)
		return
	}

	services.SendJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Payment updated successfully",
		"data":    payment,
	})
}

// DeletePayment removes a payment and restores the balance
// @Summary Delete payment
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Payment ID"
// @Success 200 {object} object{success=bool,message=string}
// @Failure 404 {object} services.ErrorResponse
// @Router /payments/{id} [delete]
func (h *PaymentHandler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionClaims(w, r)
	if !ok {
		return
	}
	paymentID, err := pathID(r, "id")
	if err != nil {
		services.SendError(w, err)
		return
	}

	if err := h.payments.DeletePayment(r.Context(), claims.AccountID, paymentID); err != nil {
		services.SendError(w, err)
		return
	}

	services.SendJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Payment deleted successfully",
	})
}
