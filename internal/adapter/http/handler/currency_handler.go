package handler

import (
	"crypto-exchange-api/internal/adapter/http/dto"
	"crypto-exchange-api/internal/core/ports"
	"crypto-exchange-api/pkg/apperror"
	"crypto-exchange-api/pkg/response"

	"github.com/gin-gonic/gin"
)

// CurrencyHandler handles currency catalog endpoints.
type CurrencyHandler struct {
	currencySvc ports.CurrencyService
}

// NewCurrencyHandler creates a new CurrencyHandler.
func NewCurrencyHandler(currencySvc ports.CurrencyService) *CurrencyHandler {
	return &CurrencyHandler{currencySvc: currencySvc}
}

// Create handles POST /api/v1/currencies.
func (h *CurrencyHandler) Create(c *gin.Context) {
	var req dto.CreateCurrencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	currency, err := h.currencySvc.Create(c.Request.Context(), req.Symbol, req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewCurrencyResponse(currency))
}

// Get handles GET /api/v1/currencies/:symbol.
func (h *CurrencyHandler) Get(c *gin.Context) {
	currency, err := h.currencySvc.GetBySymbol(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewCurrencyResponse(currency))
}

// List handles GET /api/v1/currencies. Pass ?all=true to include inactive
// currencies.
func (h *CurrencyHandler) List(c *gin.Context) {
	activeOnly := c.Query("all") != "true"

	currencies, err := h.currencySvc.List(c.Request.Context(), activeOnly)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.CurrencyResponse, 0, len(currencies))
	for i := range currencies {
		items = append(items, dto.NewCurrencyResponse(&currencies[i]))
	}
	response.OK(c, items)
}
