package handler

import (
	"strconv"
	"strings"

	"wildlife-governance/internal/adapter/http/dto"
	"wildlife-governance/internal/core/ports"
	"wildlife-governance/pkg/apperror"
	"wildlife-governance/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// HeaderIdempotencyKey carries the donation reference when the body omits it.
const HeaderIdempotencyKey = "Idempotency-Key"

// ExchangeHandler handles donation and exchange configuration endpoints.
type ExchangeHandler struct {
	exchangeSvc ports.ExchangeService
}

func NewExchangeHandler(exchangeSvc ports.ExchangeService) *ExchangeHandler {
	return &ExchangeHandler{exchangeSvc: exchangeSvc}
}

// Donate handles POST /api/v1/donations.
func (h *ExchangeHandler) Donate(c *gin.Context) {
	caller, err := principal(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.DonateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	if req.ReferenceID == nil {
		if key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey)); key != "" {
			if !dto.ValidReferenceID(key) {
				response.Error(c, apperror.Validation("Idempotency-Key must be at most 100 letters, digits, '_', '-' or '.'"))
				return
			}
			req.ReferenceID = &key
		}
	}
	dto.SanitizeStruct(&req)

	result, err := h.exchangeSvc.Donate(c.Request.Context(), caller, ports.DonateRequest{
		USDAmount:   req.USDAmount,
		Recipient:   req.Recipient,
		ReferenceID: req.ReferenceID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListDonations handles GET /api/v1/donations, the caller's own history.
func (h *ExchangeHandler) ListDonations(c *gin.Context) {
	caller, err := principal(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	limit, offset, err := pagination(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	donations, total, err := h.exchangeSvc.ListDonations(c.Request.Context(), caller.Account, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Page(c, donations, total, limit, offset)
}

// Quote handles GET /api/v1/exchange/quote?usd_amount=.
func (h *ExchangeHandler) Quote(c *gin.Context) {
	amount, err := strconv.ParseInt(c.Query("usd_amount"), 10, 64)
	if err != nil {
		response.Error(c, apperror.Validation("usd_amount must be an integer"))
		return
	}

	quote, err := h.exchangeSvc.Quote(c.Request.Context(), amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, quote)
}

// GetConfig handles GET /api/v1/exchange/config.
func (h *ExchangeHandler) GetConfig(c *gin.Context) {
	cfg, err := h.exchangeSvc.GetConfig(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, cfg)
}

// UpdateConfig handles PUT /api/v1/exchange/config.
func (h *ExchangeHandler) UpdateConfig(c *gin.Context) {
	caller, err := principal(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.UpdateExchangeConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	rate, err := decimal.NewFromString(req.Rate)
	if err != nil {
		response.Error(c, apperror.ErrInvalidExchangeConfig("rate must be a decimal number"))
		return
	}

	cfg, err := h.exchangeSvc.UpdateConfig(c.Request.Context(), caller, ports.UpdateExchangeConfigRequest{
		Rate:           rate,
		FeeBasisPoints: req.FeeBasisPoints,
		MinDonation:    req.MinDonation,
		MaxDonation:    req.MaxDonation,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, cfg)
}
