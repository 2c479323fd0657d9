package handler

import (
	"crypto-exchange-api/internal/adapter/http/dto"
	"crypto-exchange-api/internal/adapter/http/middleware"
	"crypto-exchange-api/internal/core/domain"
	"crypto-exchange-api/internal/core/ports"
	"crypto-exchange-api/pkg/apperror"
	"crypto-exchange-api/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler handles wallet endpoints.
type WalletHandler struct {
	walletSvc ports.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

func authUserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, false
	}
	return v.(uuid.UUID), true
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Error(c, apperror.Validation("invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

// Create handles POST /api/v1/wallets.
func (h *WalletHandler) Create(c *gin.Context) {
	userID, ok := authUserID(c)
	if !ok {
		return
	}

	var req dto.CreateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	currencyID, err := uuid.Parse(req.CurrencyID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid currency_id"))
		return
	}

	wallet, err := h.walletSvc.CreateWallet(c.Request.Context(), userID, currencyID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewWalletResponse(wallet))
}

// List handles GET /api/v1/wallets, listing the caller's wallets.
func (h *WalletHandler) List(c *gin.Context) {
	userID, ok := authUserID(c)
	if !ok {
		return
	}

	wallets, err := h.walletSvc.GetUserWallets(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.WalletResponse, 0, len(wallets))
	for i := range wallets {
		items = append(items, dto.NewWalletResponse(&wallets[i]))
	}
	response.OK(c, items)
}

// Get handles GET /api/v1/wallets/:id.
func (h *WalletHandler) Get(c *gin.Context) {
	userID, ok := authUserID(c)
	if !ok {
		return
	}
	walletID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	wallet, err := h.walletSvc.GetWallet(c.Request.Context(), walletID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if wallet.UserID != userID {
		response.Error(c, apperror.ErrNotFound("wallet"))
		return
	}

	response.OK(c, dto.NewWalletResponse(wallet))
}

// Credit handles POST /api/v1/wallets/:id/credit.
func (h *WalletHandler) Credit(c *gin.Context) {
	h.mutate(c, domain.BalanceOpAdd)
}

// Debit handles POST /api/v1/wallets/:id/debit.
func (h *WalletHandler) Debit(c *gin.Context) {
	h.mutate(c, domain.BalanceOpSubtract)
}

// SetBalance handles PUT /api/v1/wallets/:id/balance.
func (h *WalletHandler) SetBalance(c *gin.Context) {
	h.mutate(c, domain.BalanceOpSet)
}

func (h *WalletHandler) mutate(c *gin.Context, op domain.BalanceOp) {
	userID, ok := authUserID(c)
	if !ok {
		return
	}
	walletID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req dto.MutateBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	amount, err := dto.ParseAmount(req.Amount)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount("amount must be a decimal string"))
		return
	}

	wallet, err := h.walletSvc.GetWallet(c.Request.Context(), walletID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if wallet.UserID != userID {
		response.Error(c, apperror.ErrNotFound("wallet"))
		return
	}

	updated, err := h.walletSvc.MutateBalance(c.Request.Context(), walletID, amount, op)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewWalletResponse(updated))
}

// Transfer handles POST /api/v1/wallets/:id/transfer.
func (h *WalletHandler) Transfer(c *gin.Context) {
	userID, ok := authUserID(c)
	if !ok {
		return
	}
	fromWalletID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	toWalletID, err := uuid.Parse(req.ToWalletID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid to_wallet_id"))
		return
	}
	amount, err := dto.ParseAmount(req.Amount)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount("amount must be a decimal string"))
		return
	}

	from, err := h.walletSvc.GetWallet(c.Request.Context(), fromWalletID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if from.UserID != userID {
		response.Error(c, apperror.ErrNotFound("wallet"))
		return
	}

	result, err := h.walletSvc.Transfer(c.Request.Context(), fromWalletID, toWalletID, amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.TransferResponse{
		FromWallet: dto.NewWalletResponse(result.FromWallet),
		ToWallet:   dto.NewWalletResponse(result.ToWallet),
	})
}

// Delete handles DELETE /api/v1/wallets/:id.
func (h *WalletHandler) Delete(c *gin.Context) {
	userID, ok := authUserID(c)
	if !ok {
		return
	}
	walletID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	wallet, err := h.walletSvc.GetWallet(c.Request.Context(), walletID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if wallet.UserID != userID {
		response.Error(c, apperror.ErrNotFound("wallet"))
		return
	}

	if err := h.walletSvc.DeleteWallet(c.Request.Context(), walletID); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"deleted": true})
}
