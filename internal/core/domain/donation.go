package domain

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const basisPointsDenominator = 10000

// MaxDonationLimit keeps usdAmount * feeBps inside int64.
const MaxDonationLimit = math.MaxInt64 / basisPointsDenominator

// ErrTokenOverflow means net × rate does not fit the int64 token range.
var ErrTokenOverflow = errors.New("converted token amount exceeds int64")

var maxTokens = decimal.NewFromInt(math.MaxInt64)

// Donation is an append-only record of currency converted into tokens.
type Donation struct {
	ID           uuid.UUID `json:"id"`
	Donor        string    `json:"donor"`
	Recipient    string    `json:"recipient"`
	ReferenceID  *string   `json:"reference_id,omitempty"`
	USDAmount    int64     `json:"usd_amount"`
	FeeAmount    int64     `json:"fee_amount"`
	NetAmount    int64     `json:"net_amount"`
	TokensMinted int64     `json:"tokens_minted"`
	Rate         string    `json:"rate"`
	CreatedAt    time.Time `json:"created_at"`
}

// ExchangeConfig is the process-wide conversion policy. Rate is tokens per net currency unit.
type ExchangeConfig struct {
	Rate           decimal.Decimal `json:"rate"`
	FeeBasisPoints int64           `json:"fee_bps"`
	MinDonation    int64           `json:"min_donation"`
	MaxDonation    int64           `json:"max_donation"`
	UpdatedBy      string          `json:"updated_by,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Quote is the outcome of converting one donation amount.
type Quote struct {
	USDAmount int64  `json:"usd_amount"`
	FeeAmount int64  `json:"fee_amount"`
	NetAmount int64  `json:"net_amount"`
	Tokens    int64  `json:"tokens"`
	Rate      string `json:"rate"`
}

// Validate checks the config is usable for conversions.
func (c ExchangeConfig) Validate() error {
	if !c.Rate.IsPositive() {
		return errors.New("rate must be positive")
	}
	if c.FeeBasisPoints < 0 || c.FeeBasisPoints >= basisPointsDenominator {
		return errors.New("fee_bps must be within [0, 10000)")
	}
	if c.MinDonation <= 0 {
		return errors.New("min_donation must be positive")
	}
	if c.MaxDonation < c.MinDonation {
		return errors.New("max_donation must not be below min_donation")
	}
	if c.MaxDonation > MaxDonationLimit {
		return errors.New("max_donation is too large")
	}
	if decimal.NewFromInt(c.MaxDonation).Mul(c.Rate).RoundBank(0).GreaterThan(maxTokens) {
		return errors.New("max_donation at this rate mints more tokens than int64 holds")
	}
	return nil
}

// InBounds reports whether amount lies within [MinDonation, MaxDonation].
func (c ExchangeConfig) InBounds(amount int64) bool {
	return amount >= c.MinDonation && amount <= c.MaxDonation
}

// Quote splits usdAmount into fee and net, and converts net into tokens with
// banker's rounding. usdAmount must be within bounds of a valid config; a
// token amount past int64 returns ErrTokenOverflow.
func (c ExchangeConfig) Quote(usdAmount int64) (Quote, error) {
	fee := usdAmount * c.FeeBasisPoints / basisPointsDenominator
	net := usdAmount - fee
	tokens := decimal.NewFromInt(net).Mul(c.Rate).RoundBank(0)
	if tokens.GreaterThan(maxTokens) {
		return Quote{}, ErrTokenOverflow
	}
	return Quote{
		USDAmount: usdAmount,
		FeeAmount: fee,
		NetAmount: net,
		Tokens:    tokens.IntPart(),
		Rate:      c.Rate.String(),
	}, nil
}

// DonationResult is returned to the donor.
type DonationResult struct {
	Donation     *Donation `json:"donation"`
	TokensMinted int64     `json:"tokens_minted"`
	FeeAmount    int64     `json:"fee_amount"`
	NetAmount    int64     `json:"net_amount"`
}
