package handlers

import (
	"github.com/go-chi/chi/v5"

	"github.com/cccs/finance-portal/internal/middleware"
	"github.com/cccs/finance-portal/internal/models"
)

// RegisterRoutes mounts the portal API on r (normally under /api).
func RegisterRoutes(r chi.Router, accounts *AccountHandler, payments *PaymentHandler, reconciliation *ReconciliationHandler) {
	r.Post("/accounts/register", accounts.Register)
	r.Post("/accounts/login", accounts.Login)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)

		r.Post("/accounts/logout", accounts.Logout)
		r.Get("/accounts/{id}", accounts.GetAccount)
		r.Put("/accounts/{id}", accounts.UpdateAccount)
		r.Get("/accounts/{id}/balance", accounts.GetBalance)
		r.Get("/accounts/{id}/balance-details", accounts.GetBalanceDetails)
		r.Get("/accounts/{id}/transactions", accounts.GetTransactions)

		r.Post("/payments", payments.CreatePayment)
		r.Get("/payments/{id}", payments.GetPayment)
		r.Get("/payments/account/{account_id}", payments.ListAccountPayments)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(models.RoleAdmin))

			r.Get("/payments", payments.ListPayments)
			r.Put("/payments/{id}", payments.UpdatePayment)
			r.Delete("/payments/{id}", payments.DeletePayment)
			r.Post("/admin/accounts/{id}/validate", accounts.ValidateAccount)
			r.Get("/admin/reconciliation", reconciliation.Reconcile)
		})
	})
}
