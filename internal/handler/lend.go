package handler

import (
	"encoding/json"
	"net/http"

	"github.com/streamlend/lending-service/internal/utils"
)

type requestLoanBody struct {
	UserAddress string      `json:"userAddress"`
	MintAddress string      `json:"mintAddress"`
	Amount      json.Number `json:"amount"`
}

// RequestLoan handles POST /lend/request-loan
func (h *Handler) RequestLoan(w http.ResponseWriter, r *http.Request) {
	var body requestLoanBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if body.UserAddress == "" || body.MintAddress == "" || body.Amount == "" {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if err := utils.ValidateAddress(body.UserAddress); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := utils.ValidateAddress(body.MintAddress); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// amount arrives in whole tokens; scale it by the token's decimals
	info, err := h.tokens.GetTokenInfo(r.Context(), body.MintAddress)
	if err != nil {
		h.respondError(w, err)
		return
	}
	amount, err := utils.ParseAmount(body.Amount.String(), info.Decimals)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.lend.DisburseLoan(r.Context(), body.UserAddress, body.MintAddress, amount)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// GetOutstandingLoans handles GET /lend/get-outstanding-loans
func (h *Handler) GetOutstandingLoans(w http.ResponseWriter, r *http.Request) {
	userAddress := r.URL.Query().Get("userAddress")
	if userAddress == "" {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if err := utils.ValidateAddress(userAddress); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	loans, err := h.lend.GetReadableLoans(r.Context(), userAddress, "")
	if err != nil {
		h.log.Errorf("Failed to fetch loans for %s: %v", userAddress, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.respondJSON(w, http.StatusOK, loans)
}

// GetAllOutstandingLoans handles GET /lend/get-all-outstanding-loans
func (h *Handler) GetAllOutstandingLoans(w http.ResponseWriter, r *http.Request) {
	authorityAddress := r.URL.Query().Get("authorityAddress")
	if err := utils.ValidateAddress(authorityAddress); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	loans, err := h.lend.GetAllOutstandingLoans(r.Context(), authorityAddress)
	if err != nil {
		h.log.Errorf("Failed to fetch all loans: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.respondJSON(w, http.StatusOK, loans)
}
