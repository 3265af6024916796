package handler

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/streamlend/lending-service/internal/config"
	"github.com/streamlend/lending-service/internal/models"
	"github.com/streamlend/lending-service/internal/service"
)

// LendService is the loan manager surface the handlers consume
type LendService interface {
	DisburseLoan(ctx context.Context, userAddress, mint string, amount *big.Int) (*service.DisburseResult, error)
	GetReadableLoans(ctx context.Context, userAddress, mint string) ([]models.ReadableLoan, error)
	GetAllOutstandingLoans(ctx context.Context, authorityAddress string) ([]models.ReadableLoan, error)
}

// TokenService is the token manager surface the handlers consume
type TokenService interface {
	GetTokenInfo(ctx context.Context, mint string) (*service.TokenInfo, error)
	SetupToken(ctx context.Context, decimals int, name, payer string, supply *big.Int) (*service.SetupTokenResult, error)
}

// Handler serves the lending HTTP API
type Handler struct {
	lend         LendService
	tokens       TokenService
	authorityKey string
	cfg          *config.Config
	log          *logrus.Logger
}

// NewHandler initializes a new handler
func NewHandler(lend LendService, tokens TokenService, authorityKey string, cfg *config.Config, log *logrus.Logger) *Handler {
	return &Handler{
		lend:         lend,
		tokens:       tokens,
		authorityKey: authorityKey,
		cfg:          cfg,
		log:          log,
	}
}

// Welcome handles the root route
func (h *Handler) Welcome(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("Welcome to Streamlend! Refer to the API documentation for usage."))
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Errorf("Failed to encode response: %v", err)
	}
}

// respondError maps business/validation errors to 400 and everything
// else to 500, message-only bodies
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if service.IsBusinessError(err) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.log.Errorf("Request failed: %v", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
