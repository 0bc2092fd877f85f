// Package creditsvc exposes the credit package catalog, the account balance
// with its transaction history, and the mocked purchase flow.
package creditsvc

import (
	"context"
	"fmt"

	"github.com/LoggeL/facecensor/internal/domain"
	"github.com/LoggeL/facecensor/internal/infra/logging"
	"github.com/LoggeL/facecensor/internal/repo/ledger"
)

// historyLimit caps the transaction list returned with the balance.
const historyLimit = 20

// catalog is the static credit package catalog. Settlement is mocked, so a
// purchase never touches a payment processor.
var catalog = []domain.CreditPackage{
	{ID: "starter", Name: "Starter Pack", Credits: 5, PriceUSD: 2.99},
	{ID: "pro", Name: "Pro Pack", Credits: 15, PriceUSD: 6.99, Popular: true},
	{ID: "business", Name: "Business Pack", Credits: 50, PriceUSD: 18.99},
}

// Balance pairs the materialized credit counter with the most recent ledger
// entries.
type Balance struct {
	Credits      int64
	Transactions []domain.LedgerEntry
}

// PurchaseReceipt is the outcome of a successful purchase.
type PurchaseReceipt struct {
	Package    domain.CreditPackage
	Entry      domain.LedgerEntry
	NewBalance int64
}

// CreditService handles the package catalog, balance reads and purchases.
type CreditService struct {
	LedgerRepo ledger.Repository
	Log        logging.Logger
}

// NewCreditService creates a new CreditService over the given ledger.
func NewCreditService(ledgerRepo ledger.Repository) *CreditService {
	return &CreditService{
		LedgerRepo: ledgerRepo,
		Log:        logging.GetLogger("svc.creditsvc.credit_service"),
	}
}

// Packages returns the static package catalog.
func (s *CreditService) Packages(context.Context) []domain.CreditPackage {
	return catalog
}

// Package looks up a catalog entry by ID.
// Returns ErrUnknownPackage if the ID is not in the catalog.
func (s *CreditService) Package(id string) (domain.CreditPackage, error) {
	for _, pkg := range catalog {
		if pkg.ID == id {
			return pkg, nil
		}
	}

	return domain.CreditPackage{}, fmt.Errorf("%w: %q", domain.ErrUnknownPackage, id)
}

// Balance returns the account's balance and recent transaction history.
func (s *CreditService) Balance(ctx context.Context, accountID int64) (_ Balance, err error) {
	log := s.Log.With(logging.Group("account", "id", accountID))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "balance read failed", "error", err)
		} else {
			log.DebugContext(ctx, "balance read")
		}
	}()

	credits, err := s.LedgerRepo.Balance(ctx, accountID)
	if err != nil {
		return Balance{}, fmt.Errorf("read balance: %w", err)
	}

	transactions, err := s.LedgerRepo.History(ctx, accountID, historyLimit)
	if err != nil {
		return Balance{}, fmt.Errorf("read history: %w", err)
	}

	return Balance{
		Credits:      credits,
		Transactions: transactions,
	}, nil
}

// Purchase credits the account with the package's credits and records the
// transaction. Payment settlement is mocked, so the ledger append is the
// whole purchase.
func (s *CreditService) Purchase(ctx context.Context, accountID int64, packageID string) (_ PurchaseReceipt, err error) {
	log := s.Log.With(logging.Group("purchase",
		"account", accountID,
		"package", packageID,
	))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "purchase failed", "error", err)
		} else {
			log.DebugContext(ctx, "purchase completed")
		}
	}()

	pkg, err := s.Package(packageID)
	if err != nil {
		return PurchaseReceipt{}, err
	}

	amount := pkg.PriceUSD

	entry, err := s.LedgerRepo.Append(ctx, domain.LedgerEntry{
		AccountID:   accountID,
		Delta:       pkg.Credits,
		AmountUSD:   &amount,
		Type:        domain.EntryPurchase,
		Description: fmt.Sprintf("Purchased %d credits (%s package)", pkg.Credits, pkg.Name),
	})
	if err != nil {
		return PurchaseReceipt{}, fmt.Errorf("append purchase: %w", err)
	}

	balance, err := s.LedgerRepo.Balance(ctx, accountID)
	if err != nil {
		return PurchaseReceipt{}, fmt.Errorf("read balance: %w", err)
	}

	return PurchaseReceipt{
		Package:    pkg,
		Entry:      entry,
		NewBalance: balance,
	}, nil
}
