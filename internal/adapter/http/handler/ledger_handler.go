package handler

import (
	"wildlife-governance/internal/adapter/http/dto"
	"wildlife-governance/internal/core/domain"
	"wildlife-governance/internal/core/ports"
	"wildlife-governance/pkg/apperror"
	"wildlife-governance/pkg/response"

	"github.com/gin-gonic/gin"
)

// LedgerHandler serves token balances and supply.
type LedgerHandler struct {
	ledgerSvc   ports.LedgerService
	exchangeSvc ports.ExchangeService
	statsSvc    ports.StatsService
}

func NewLedgerHandler(ledgerSvc ports.LedgerService, exchangeSvc ports.ExchangeService, statsSvc ports.StatsService) *LedgerHandler {
	return &LedgerHandler{ledgerSvc: ledgerSvc, exchangeSvc: exchangeSvc, statsSvc: statsSvc}
}

// Balance handles GET /api/v1/ledger/balance/:account.
func (h *LedgerHandler) Balance(c *gin.Context) {
	account := domain.NormalizeAccount(c.Param("account"))
	if !dto.ValidAccount(account) {
		response.Error(c, apperror.Validation("invalid account"))
		return
	}

	ctx := c.Request.Context()
	balance, err := h.ledgerSvc.BalanceOf(ctx, account)
	if err != nil {
		response.Error(c, err)
		return
	}
	supply, err := h.ledgerSvc.TotalSupply(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{
		Account:  account,
		Balance:  balance,
		PowerBps: domain.PowerBps(balance, supply),
	})
}

// Supply handles GET /api/v1/ledger/supply.
func (h *LedgerHandler) Supply(c *gin.Context) {
	ctx := c.Request.Context()
	supply, err := h.ledgerSvc.TotalSupply(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	tvl, err := h.exchangeSvc.TotalValueLocked(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.SupplyResponse{TotalSupply: supply, TotalValueLocked: tvl})
}

// Mint handles POST /api/v1/ledger/mint. The service enforces the minter role.
func (h *LedgerHandler) Mint(c *gin.Context) {
	caller, err := principal(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	ctx := c.Request.Context()
	if err := h.ledgerSvc.Mint(ctx, caller, req.Account, req.Amount); err != nil {
		response.Error(c, err)
		return
	}
	account := domain.NormalizeAccount(req.Account)
	balance, err := h.ledgerSvc.BalanceOf(ctx, account)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.BalanceResponse{Account: account, Balance: balance})
}

// Stats handles GET /api/v1/stats.
func (h *LedgerHandler) Stats(c *gin.Context) {
	stats, err := h.statsSvc.GetStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}
