package dto

import (
	"time"

	"crypto-exchange-api/internal/core/domain"
)

// Monetary amounts cross this boundary as exact decimal strings, never as
// floats.

// RegisterRequest is the request body for user registration.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50,safe_id"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

// LoginRequest is the request body for user login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserResponse is the public shape of a user account.
type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// CreateCurrencyRequest is the request body for currency registration.
type CreateCurrencyRequest struct {
	Symbol string `json:"symbol" binding:"required,min=2,max=10,safe_id"`
	Name   string `json:"name" binding:"required,min=1,max=100"`
}

// CurrencyResponse is the public shape of a currency.
type CurrencyResponse struct {
	ID       string `json:"id"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// CreateWalletRequest is the request body for opening a wallet.
type CreateWalletRequest struct {
	CurrencyID string `json:"currency_id" binding:"required,uuid"`
}

// MutateBalanceRequest is the request body for credit/debit/set operations.
type MutateBalanceRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// TransferRequest is the request body for a wallet-to-wallet transfer.
type TransferRequest struct {
	ToWalletID string `json:"to_wallet_id" binding:"required,uuid"`
	Amount     string `json:"amount" binding:"required"`
}

// WalletResponse is the public shape of a wallet.
type WalletResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	CurrencyID string `json:"currency_id"`
	Balance    string `json:"balance"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// TransferResponse carries both sides of a completed transfer.
type TransferResponse struct {
	FromWallet WalletResponse `json:"from_wallet"`
	ToWallet   WalletResponse `json:"to_wallet"`
}

// CreateExchangeRequest is the request body for creating an exchange.
type CreateExchangeRequest struct {
	ToUserID       string `json:"to_user_id" binding:"required,uuid"`
	FromCurrencyID string `json:"from_currency_id" binding:"required,uuid"`
	ToCurrencyID   string `json:"to_currency_id" binding:"required,uuid"`
	FromAmount     string `json:"from_amount" binding:"required"`
}

// ExchangeResponse is the public shape of an exchange.
type ExchangeResponse struct {
	ID             string `json:"id"`
	FromUserID     string `json:"from_user_id"`
	ToUserID       string `json:"to_user_id"`
	FromCurrencyID string `json:"from_currency_id"`
	ToCurrencyID   string `json:"to_currency_id"`
	FromAmount     string `json:"from_amount"`
	ToAmount       string `json:"to_amount"`
	RateUsed       string `json:"rate_used"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// ExchangeListResponse wraps a paginated exchange listing.
type ExchangeListResponse struct {
	Items  []ExchangeResponse `json:"items"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// NewUserResponse maps a domain user.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:       u.ID.String(),
		Username: u.Username,
		Email:    u.Email,
	}
}

// NewCurrencyResponse maps a domain currency.
func NewCurrencyResponse(c *domain.Currency) CurrencyResponse {
	return CurrencyResponse{
		ID:       c.ID.String(),
		Symbol:   c.Symbol,
		Name:     c.Name,
		IsActive: c.IsActive,
	}
}

// NewWalletResponse maps a domain wallet.
func NewWalletResponse(w *domain.Wallet) WalletResponse {
	return WalletResponse{
		ID:         w.ID.String(),
		UserID:     w.UserID.String(),
		CurrencyID: w.CurrencyID.String(),
		Balance:    w.Balance.String(),
		CreatedAt:  w.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  w.UpdatedAt.Format(time.RFC3339),
	}
}

// NewExchangeResponse maps a domain exchange.
func NewExchangeResponse(e *domain.Exchange) ExchangeResponse {
	return ExchangeResponse{
		ID:             e.ID.String(),
		FromUserID:     e.FromUserID.String(),
		ToUserID:       e.ToUserID.String(),
		FromCurrencyID: e.FromCurrencyID.String(),
		ToCurrencyID:   e.ToCurrencyID.String(),
		FromAmount:     e.FromAmount.String(),
		ToAmount:       e.ToAmount.String(),
		RateUsed:       e.RateUsed.String(),
		Status:         string(e.Status),
		CreatedAt:      e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      e.UpdatedAt.Format(time.RFC3339),
	}
}
