package domain

import "errors"

// ErrUnknownPackage is returned when a purchase names a package id that is not
// in the static catalog.
var ErrUnknownPackage = errors.New("unknown credit package")

// CreditPackage is a static catalog entry. Read-only, not user-owned.
type CreditPackage struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Credits  int64   `json:"credits"`
	PriceUSD float64 `json:"price_usd"`
	Popular  bool    `json:"popular"`
}
