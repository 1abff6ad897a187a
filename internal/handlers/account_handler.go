package handlers

import (
	"net/http"

	"github.com/cccs/finance-portal/internal/services"
)

type AccountHandler struct {
	auth     *services.AuthService
	accounts *services.AccountService
	ledger   *services.LedgerService
}

func NewAccountHandler(auth *services.AuthService, accounts *services.AccountService, ledger *services.LedgerService) *AccountHandler {
	return &AccountHandler{
		auth:     auth,
		accounts: accounts,
		ledger:   ledger,
	}
}

// Register creates a student account
// @Summary Register account
// @Description Create a new student account; it stays pending until staff validate it
// @Tags Accounts
// @Accept json
// @Produce json
// @Param request body services.RegisterRequest true "Registration details"
// @Success 201 {object} object{success=bool,message=string,data=object{id=int,First_name=string,Last_name=string,Email=string,LRN=string}}
// @Failure 400 {object} services.ErrorResponse
// @Router /accounts/register [post]
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if !readJSON(w, r, &req) {
		return
	}

	account, err := h.auth.Register(r.Context(), req)
	if err != nil {
		services.SendError(w, err)
		return
	}

	services.SendJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Account created successfully",
		"data": map[string]any{
			"id":         account.ID,
			"First_name": account.FirstName,
			"Last_name":  account.LastName,
			"Email":      account.Email,
			"LRN":        account.LRN,
		},
	})
}

// Login authenticates by LRN
// @Summary Login
// @Description Authenticate with LRN and password; returns a bearer token
// @Tags Accounts
// @Accept json
// @Produce json
// @Param request body services.LoginRequest true "Credentials"
// @Success 200 {object} object{success=bool,message=string,token=string,expires_at=string,user=models.Account}
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /accounts/login [post]
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginRequest
	if !readJSON(w, r, &req) {
		return
	}

	result, err := h.auth.Login(r.Context(), req)
	if err != nil {
		services.SendError(w, err)
		return
	}

	services.SendJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message":    "Login successful",
		"token":      result.Token,
		"expires_at": result.ExpiresAt,
		"user":       result.Account,
	})
}

// Logout revokes the current token
// @Summary Logout
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool,message=string}
// @Failure 401 {object} services.ErrorResponse
// @Router /accounts/logout [post]
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionClaims(w, r)
	if !ok {
		return
	}

	if err := h.auth.Logout(r.Context(), claims); err != nil {
		services.SendError(w, err)
		return
	}

	services.SendJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out successfully",
	})
}

// GetAccount returns the account profile
// @Summary Get account
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Success 200 {object} object{success=bool,data=models.Account}
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/{id} [get]
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	_, accountID, ok := authorizedAccount(w, r, "id")
	if !ok {
		return
	}

	account, err := h.accounts.GetAccount(r.Context(), accountID)
	if err != nil {
		services.SendError(w, err)
		return
	}

	services.SendJSON(w, http.StatusOK, map[string]any{"success": true, "data": account})
}

// UpdateAccount applies a partial profile update
// @Summary Update account
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Param request body services.UpdateAccountRequest true "Fields to change"
// @Success 200 {object} object{success=bool,message=string,data=models.Account}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/{id} [put]
func (h *AccountHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	_, accountID, ok := authorizedAccount(w, r, "id")
	if !ok {
		return
	}

	var req services.UpdateAccountRequest
	if !readJSON(w, r, &req) {
		return
	}

	account, err := h.accounts.UpdateAccount(r.Context(), accountID, req)
	if err != nil {
		services.SendError(w, err)
		return
	}

	services.SendJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Account updated successfully",
		"data":    account,
	})
}

// GetBalance returns the amount still owed
// @Summary Get balance
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Success 200 {object} object{success=bool,balance=number}
// @Failure 401 {object} services.ErrorResponse "Unauthorized or ACCOUNT_NOT_VALIDATED"
// @Router /accounts/{id}/balance [get]
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	_, accountID, ok := authorizedAccount(w, r, "id")
	if !ok {
		return
	}

	balance, err := h.accounts.GetBalance(r.Context(), accountID)
	if err != nil {
		services.SendError(w, err)
		return
	}

	services.SendJSON(w, http.StatusOK, map[string]any{"success": true, "balance": balance})
}

// GetBalanceDetails returns total, paid and payable amounts
// @Summary Get balance details
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Success 200 {object} object{success=bool,data=models.BalanceDetails}
// @Failure 401 {object} services.ErrorResponse "Unauthorized or ACCOUNT_NOT_VALIDATED"
// @Router /accounts/{id}/balance-details [get]
func (h *AccountHandler) GetBalanceDetails(w http.ResponseWriter, r *http.Request) {
	_, accountID, ok := authorizedAccount(w, r, "id")
	if !ok {
		return
	}

	details, err := h.accounts.GetBalanceDetails(r.Context(), accountID)
	if err != nil {
		services.SendError(w, err)
		return
	}

	services.SendJSON(w, http.StatusOK, map[string]any{"success": true, "data": details})
}

// GetTransactions returns the reconstructed payment history
// @Summary Transaction history
// @Description Payments with the balance still owed after each one, most recent first
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Success 200 {object} object{success=bool,data=[]models.LedgerEntry}
// @Failure 401 {object} services.ErrorResponse "Unauthorized or ACCOUNT_NOT_VALIDATED"
// @Router /accounts/{id}/transactions [get]
func (h *AccountHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	_, accountID, ok := authorizedAccount(w, r, "id")
	if !ok {
		return
	}

	entries, err := h.ledger.History(r.Context(), accountID)
	if err != nil {
		services.SendError(w, err)
		return
	}

	services.SendJSON(w, http.StatusOK, map[string]any{"success": true, "data": entries})
}

// ValidateAccount marks an account as verified by staff
// @Summary Validate account
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Success 200 {object} object{success=bool,message=string,data=models.Account}
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/accounts/{id}/validate [post]
func (h *AccountHandler) ValidateAccount(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionClaims(w, r)
	if !ok {
		return
	}
	accountID, err := pathID(r, "id")
	if err != nil {
		services.SendError(w, err)
		return
	}

	account, err := h.accounts.ValidateAccount(r.Context(), claims.AccountID, accountID)
	if err != nil {
		services.SendError(w, err)
		return
	}

	services.SendJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Account validated",
		"data":    account,
	})
}
