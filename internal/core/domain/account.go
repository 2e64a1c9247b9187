package domain

import (
	"strings"
	"time"
)

// Account holds a token balance. Rows appear on first mint and are never removed.
type Account struct {
	Address   string    `json:"address"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LedgerState is the singleton row carrying supply and value locked.
type LedgerState struct {
	TotalSupply      int64     `json:"total_supply"`
	TotalValueLocked int64     `json:"total_value_locked"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NormalizeAccount canonicalises an account address so lookups are case-insensitive.
func NormalizeAccount(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// PowerBps expresses balance as basis points of supply.
func PowerBps(balance, supply int64) int64 {
	if supply <= 0 || balance <= 0 {
		return 0
	}
	if balance > (1<<63-1)/basisPointsDenominator {
		return balance / (supply / basisPointsDenominator)
	}
	return balance * basisPointsDenominator / supply
}
