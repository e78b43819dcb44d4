package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/Nzyazin/wallettx/internal/core/logger"
	"github.com/Nzyazin/wallettx/internal/core/models"
	"github.com/Nzyazin/wallettx/internal/core/usecase"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

type TransactionHandler struct {
	usecase usecase.TransactionUsecase
	log     logger.Logger
}

type CreateTransactionRequest struct {
	ID        string  `json:"id"`
	PayerID   int64   `json:"payer_id"`
	PayeeID   int64   `json:"payee_id"`
	Amount    *string `json:"amount"`
	OrderID   string  `json:"order_id"`
	ProductID string  `json:"product_id"`
}

type TransactionResponse struct {
	Error         string `json:"error,omitempty"`
	ID            string `json:"id,omitempty"`
	PayerID       int64  `json:"payer_id,omitempty"`
	PayeeID       int64  `json:"payee_id,omitempty"`
	Amount        string `json:"amount,omitempty"`
	OrderID       string `json:"order_id,omitempty"`
	ProductID     string `json:"product_id,omitempty"`
	Status        string `json:"status,omitempty"`
	SettlementRef string `json:"settlement_ref,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
	Executed      *bool  `json:"executed,omitempty"`
	Retryable     *bool  `json:"retryable,omitempty"`
}

var amountRegexp = regexp.MustCompile(`^\d{1,18}([.,]\d{1,2})?$`)

func NewTransactionHandler(usecase usecase.TransactionUsecase, log logger.Logger) *TransactionHandler {
	return &TransactionHandler{usecase: usecase, log: log}
}

func (h *TransactionHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/transactions", h.CreateTransaction).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/transactions/{id}", h.GetTransaction).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/transactions/{id}/execute", h.ExecuteTransaction).Methods(http.MethodPost)
}

func (h *TransactionHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Warn("Failed to decode request body", logger.ErrorField("error", err))
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.log.Warn("Invalid amount", logger.ErrorField("error", err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	tx, err := h.usecase.Create(r.Context(), usecase.CreateTransactionInput{
		ID:        req.ID,
		PayerID:   req.PayerID,
		PayeeID:   req.PayeeID,
		Amount:    amount,
		OrderID:   req.OrderID,
		ProductID: req.ProductID,
	})
	if err != nil {
		h.handleError(w, req.ID, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, toResponse(tx))
}

func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	tx, err := h.usecase.Get(r.Context(), id)
	if err != nil {
		h.handleError(w, id, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toResponse(tx))
}

// ExecuteTransaction answers 200 once money has moved, 409 when the caller
// may retry later and 410 when the transaction expired.
func (h *TransactionHandler) ExecuteTransaction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	tx, executed, err := h.usecase.Execute(r.Context(), id)
	if err != nil && !executed {
		h.handleError(w, id, err)
		return
	}
	if err != nil {
		h.log.Error("Transaction executed but not fully recorded",
			logger.StringField("transaction_id", id),
			logger.ErrorField("error", err))
	}

	resp := toResponse(tx)
	resp.Executed = &executed

	switch {
	case executed:
		respondWithJSON(w, http.StatusOK, resp)
	case tx.Status == models.StatusExpired:
		retryable := false
		resp.Retryable = &retryable
		respondWithJSON(w, http.StatusGone, resp)
	default:
		retryable := true
		resp.Retryable = &retryable
		respondWithJSON(w, http.StatusConflict, resp)
	}
}

func (h *TransactionHandler) handleError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, usecase.ErrTransactionNotFound):
		h.log.Warn("Transaction not found", logger.StringField("transaction_id", id))
		respondWithError(w, http.StatusNotFound, "transaction not found")
	case errors.Is(err, usecase.ErrInvalidTransaction):
		h.log.Warn("Invalid transaction",
			logger.StringField("transaction_id", id),
			logger.ErrorField("error", err))
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, usecase.ErrMoneyMoveFailed):
		h.log.Error("Money mover failed",
			logger.StringField("transaction_id", id),
			logger.ErrorField("error", err))
		respondWithError(w, http.StatusBadGateway, "money mover failed")
	case errors.Is(err, usecase.ErrLockFailed):
		respondWithError(w, http.StatusServiceUnavailable, "lock service unavailable")
	default:
		h.log.Error("Failed to process transaction",
			logger.StringField("transaction_id", id),
			logger.ErrorField("error", err))
		respondWithError(w, http.StatusInternalServerError, "failed to process transaction")
	}
}

// parseAmount accepts a missing amount; Execute rejects it later.
func parseAmount(raw *string) (decimal.NullDecimal, error) {
	if raw == nil {
		return decimal.NullDecimal{}, nil
	}

	cleaned := strings.ReplaceAll(strings.ReplaceAll(*raw, " ", ""), ",", ".")
	if !amountRegexp.MatchString(cleaned) {
		return decimal.NullDecimal{}, fmt.Errorf("invalid amount format: %s", *raw)
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("could not parse amount: %v", err)
	}
	return decimal.NewNullDecimal(amount), nil
}

func toResponse(tx *models.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:            tx.ID,
		PayerID:       tx.PayerID,
		PayeeID:       tx.PayeeID,
		OrderID:       tx.OrderID,
		ProductID:     tx.ProductID,
		Status:        string(tx.Status),
		SettlementRef: tx.SettlementRef,
		CreatedAt:     tx.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if tx.Amount.Valid {
		resp.Amount = formatAmount(tx.Amount.Decimal)
	}
	return resp
}

// formatAmount pads to cents and never drops finer digits.
func formatAmount(amount decimal.Decimal) string {
	if amount.Exponent() < -2 {
		return amount.String()
	}
	return amount.StringFixed(2)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, TransactionResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, body TransactionResponse) {
	response, err := json.Marshal(body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Internal Server Error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
