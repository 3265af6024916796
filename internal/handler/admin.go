package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/streamlend/lending-service/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

type loginBody struct {
	Password string `json:"password"`
}

// Login handles POST /auth/login and issues the admin JWT
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Password == "" {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if h.cfg.AdminPasswordHash == "" {
		http.Error(w, "admin login is disabled", http.StatusForbidden)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(h.cfg.AdminPasswordHash), []byte(body.Password)); err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "authority",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	})
	tokenString, err := token.SignedString([]byte(h.cfg.JWTSecret))
	if err != nil {
		h.log.Errorf("Failed to sign token: %v", err)
		http.Error(w, "failed to generate token", http.StatusInternalServerError)
		return
	}

	h.log.Info("Admin logged in")
	h.respondJSON(w, http.StatusOK, map[string]string{"token": tokenString})
}

type setupTokenBody struct {
	Decimals int         `json:"decimals"`
	Name     string      `json:"name"`
	Supply   json.Number `json:"supply"`
}

// SetupToken handles POST /admin/setup-token (JWT protected). Supply is
// in whole tokens and is scaled by decimals before provisioning.
func (h *Handler) SetupToken(w http.ResponseWriter, r *http.Request) {
	var body setupTokenBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if body.Name == "" || body.Supply == "" {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	supply, err := utils.ParseAmount(body.Supply.String(), body.Decimals)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.tokens.SetupToken(r.Context(), body.Decimals, body.Name, h.authorityKey, supply)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.log.Infof("Token %s provisioned via API: %s", body.Name, result.MintAddress)
	h.respondJSON(w, http.StatusOK, result)
}
