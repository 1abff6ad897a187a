package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cccs/finance-portal/internal/middleware"
	"github.com/cccs/finance-portal/internal/services"
)

const maxBodyBytes = 1_048_576

var errBodyTrailing = errors.New("request body must only contain a single JSON object")

// decodeJSON reads exactly one JSON object into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errBodyTrailing
	}
	return nil
}

// readJSON decodes the body and writes the 400 response itself on failure.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := decodeJSON(w, r, dst)
	if err == nil {
		return true
	}
	if errors.Is(err, errBodyTrailing) {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
	return false
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, services.NewValidationError("Invalid " + name)
	}
	return id, nil
}

func queryInt(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return v
}

func sessionClaims(w http.ResponseWriter, r *http.Request) (*services.Claims, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return nil, false
	}
	return claims, true
}

// authorizedAccount resolves the {name} path id and checks the session may
// act on it.
func authorizedAccount(w http.ResponseWriter, r *http.Request, name string) (*services.Claims, int64, bool) {
	claims, ok := sessionClaims(w, r)
	if !ok {
		return nil, 0, false
	}
	accountID, err := pathID(r, name)
	if err != nil {
		services.SendError(w, err)
		return nil, 0, false
	}
	if err := services.Authorize(claims, accountID); err != nil {
		services.SendError(w, err)
		return nil, 0, false
	}
	return claims, accountID, true
}
