package handler

import (
	"strconv"

	"crypto-exchange-api/internal/adapter/http/dto"
	"crypto-exchange-api/internal/core/domain"
	"crypto-exchange-api/internal/core/ports"
	"crypto-exchange-api/pkg/apperror"
	"crypto-exchange-api/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ExchangeHandler handles exchange lifecycle endpoints.
type ExchangeHandler struct {
	exchangeSvc   ports.ExchangeService
	settlementSvc ports.SettlementService
}

// NewExchangeHandler creates a new ExchangeHandler.
func NewExchangeHandler(exchangeSvc ports.ExchangeService, settlementSvc ports.SettlementService) *ExchangeHandler {
	return &ExchangeHandler{
		exchangeSvc:   exchangeSvc,
		settlementSvc: settlementSvc,
	}
}

// Create handles POST /api/v1/exchanges.
func (h *ExchangeHandler) Create(c *gin.Context) {
	userID, ok := authUserID(c)
	if !ok {
		return
	}

	var req dto.CreateExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	toUserID, err := uuid.Parse(req.ToUserID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid to_user_id"))
		return
	}
	fromCurrencyID, err := uuid.Parse(req.FromCurrencyID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid from_currency_id"))
		return
	}
	toCurrencyID, err := uuid.Parse(req.ToCurrencyID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid to_currency_id"))
		return
	}
	fromAmount, err := dto.ParseAmount(req.FromAmount)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount("from_amount must be a decimal string"))
		return
	}

	exchange, err := h.exchangeSvc.Create(c.Request.Context(), ports.CreateExchangeRequest{
		FromUserID:     userID,
		ToUserID:       toUserID,
		FromCurrencyID: fromCurrencyID,
		ToCurrencyID:   toCurrencyID,
		FromAmount:     fromAmount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewExchangeResponse(exchange))
}

// Settle handles POST /api/v1/exchanges/:id/settle.
func (h *ExchangeHandler) Settle(c *gin.Context) {
	userID, ok := authUserID(c)
	if !ok {
		return
	}
	exchangeID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	exchange, err := h.exchangeSvc.GetByID(c.Request.Context(), exchangeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !exchange.IsParticipant(userID) {
		response.Error(c, apperror.ErrNotParticipant())
		return
	}

	settled, err := h.settlementSvc.Process(c.Request.Context(), exchangeID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewExchangeResponse(settled))
}

// Cancel handles POST /api/v1/exchanges/:id/cancel.
func (h *ExchangeHandler) Cancel(c *gin.Context) {
	userID, ok := authUserID(c)
	if !ok {
		return
	}
	exchangeID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	exchange, err := h.exchangeSvc.Cancel(c.Request.Context(), exchangeID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewExchangeResponse(exchange))
}

// Get handles GET /api/v1/exchanges/:id.
func (h *ExchangeHandler) Get(c *gin.Context) {
	userID, ok := authUserID(c)
	if !ok {
		return
	}
	exchangeID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	exchange, err := h.exchangeSvc.GetByID(c.Request.Context(), exchangeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !exchange.IsParticipant(userID) {
		response.Error(c, apperror.ErrNotParticipant())
		return
	}

	response.OK(c, dto.NewExchangeResponse(exchange))
}

// List handles GET /api/v1/exchanges. Query params: direction
// (all|sent|received, default all), limit, offset.
func (h *ExchangeHandler) List(c *gin.Context) {
	userID, ok := authUserID(c)
	if !ok {
		return
	}

	direction := domain.ExchangeDirection(c.DefaultQuery("direction", string(domain.ExchangeDirectionAll)))
	if !direction.IsValid() {
		response.Error(c, apperror.Validation("invalid direction"))
		return
	}

	limit := parseIntQuery(c, "limit", 50)
	offset := parseIntQuery(c, "offset", 0)
	if limit < 1 || limit > 200 || offset < 0 {
		response.Error(c, apperror.Validation("invalid pagination"))
		return
	}

	exchanges, err := h.exchangeSvc.ListByUser(c.Request.Context(), userID, direction, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.ExchangeResponse, 0, len(exchanges))
	for i := range exchanges {
		items = append(items, dto.NewExchangeResponse(&exchanges[i]))
	}
	response.OK(c, dto.ExchangeListResponse{Items: items, Limit: limit, Offset: offset})
}

func parseIntQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return v
}
