package domain

import (
	"errors"
	"time"
)

// ErrInsufficientCredit is returned by the conditional charge when the account
// balance would drop below zero. It is surfaced distinctly so the client can
// prompt a purchase.
var ErrInsufficientCredit = errors.New("insufficient credit")

// EntryType tags a ledger entry with the event that produced it.
type EntryType string

const (
	EntrySignupBonus EntryType = "signup_bonus"
	EntryPurchase    EntryType = "purchase"
	EntryJobCharge   EntryType = "job_charge"
	EntryJobRefund   EntryType = "job_refund"
)

// LedgerEntry is an immutable fact about a credit-affecting event. Entries are
// never updated or deleted; an account's balance is always recomputable by
// replaying its entries.
type LedgerEntry struct {
	ID          int64     // Assigned on append
	AccountID   int64     // Owning account
	Delta       int64     // Signed credit delta: positive = grant, negative = charge
	AmountUSD   *float64  // Monetary amount for purchases, nil otherwise
	Type        EntryType // Event tag
	Description string    // Optional human description
	JobID       string    // Related job for charges and refunds, empty otherwise
	CreatedAt   int64     // Unix timestamp of append
}

// LedgerEntryResponse is the JSON shape of a ledger entry in the transaction
// history.
type LedgerEntryResponse struct {
	ID          int64     `json:"id"`
	Credits     int64     `json:"credits"`
	AmountUSD   *float64  `json:"amount_usd"`
	Type        EntryType `json:"type"`
	Description string    `json:"description"`
	CreatedAt   string    `json:"created_at"`
}

// NewLedgerEntryResponse converts a LedgerEntry into its client-facing shape.
func NewLedgerEntryResponse(entry LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:          entry.ID,
		Credits:     entry.Delta,
		AmountUSD:   entry.AmountUSD,
		Type:        entry.Type,
		Description: entry.Description,
		CreatedAt:   time.Unix(entry.CreatedAt, 0).UTC().Format(time.RFC3339),
	}
}
