package creditsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	context_ "github.com/LoggeL/facecensor/internal/infra/context"
	"github.com/LoggeL/facecensor/internal/infra/logging"
	http_ "github.com/LoggeL/facecensor/internal/infra/transport/http"

	"github.com/LoggeL/facecensor/internal/domain"
)

// ErrNoAccountID is returned when the request context carries no account ID.
var ErrNoAccountID = errors.New("no account id in context")

// HTTPTransport handles HTTP requests for the credit service.
// It provides endpoints for the package catalog, the account balance and
// purchases.
type HTTPTransport struct {
	creditSvc *CreditService
	verifier  http_.TokenVerifier
	log       logging.Logger
}

// NewHTTPTransport creates a new HTTPTransport instance.
func NewHTTPTransport(creditSvc *CreditService, verifier http_.TokenVerifier) *HTTPTransport {
	return &HTTPTransport{
		creditSvc: creditSvc,
		verifier:  verifier,
		log:       logging.GetLogger("svc.creditsvc.http_transport"),
	}
}

// ServeHTTP implements http.Handler and sets up routes for the credit service
// endpoints:
// - GET /credits/packages: List the package catalog (public)
// - GET /credits/balance: Balance and recent transactions
// - POST /credits/purchase: Buy a credit package.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	authed := func(h http.HandlerFunc) http.Handler {
		return http_.AuthorizingMiddleware(h, ht.verifier, ht.log)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /credits/packages", ht.HandlePackages)
	mux.Handle("GET /credits/balance", authed(ht.HandleBalance))
	mux.Handle("POST /credits/purchase", authed(ht.HandlePurchase))
	mux.ServeHTTP(w, r)
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

type balanceResponse struct {
	Credits      int64                        `json:"credits"`
	Transactions []domain.LedgerEntryResponse `json:"transactions"`
}

type purchaseRequest struct {
	PackageID string `json:"package_id"`
}

type purchaseResponse struct {
	Success      bool    `json:"success"`
	CreditsAdded int64   `json:"credits_added"`
	NewBalance   int64   `json:"new_balance"`
	Message      string  `json:"message"`
	AmountUSD    float64 `json:"amount_usd"`
}

// HandlePackages returns the static credit package catalog.
func (ht *HTTPTransport) HandlePackages(w http.ResponseWriter, r *http.Request) {
	http_.JSON(w, http.StatusOK, ht.creditSvc.Packages(r.Context()))
}

// HandleBalance returns the account's balance and recent transactions.
func (ht *HTTPTransport) HandleBalance(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleBalance(w, r)
}

func (ht *HTTPTransport) handleBalance(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "balance request failed", "error", err)
		} else {
			log.DebugContext(ctx, "balance returned")
		}
	}(r.Context())

	accountID, ok := context_.AccountIDFromContext(r.Context())
	if !ok {
		http_.Error(w, http.StatusUnauthorized, "invalid credentials")

		return ErrNoAccountID
	}

	balance, err := ht.creditSvc.Balance(r.Context(), accountID)
	if err != nil {
		http_.Error(w, http.StatusInternalServerError, "balance lookup failed")

		return fmt.Errorf("read balance: %w", err)
	}

	transactions := make([]domain.LedgerEntryResponse, 0, len(balance.Transactions))
	for _, entry := range balance.Transactions {
		transactions = append(transactions, domain.NewLedgerEntryResponse(entry))
	}

	http_.JSON(w, http.StatusOK, balanceResponse{
		Credits:      balance.Credits,
		Transactions: transactions,
	})

	return nil
}

// HandlePurchase processes a package purchase.
// Expects a JSON body with package_id.
func (ht *HTTPTransport) HandlePurchase(w http.ResponseWriter, r *http.Request) {
	_ = ht.handlePurchase(w, r)
}

func (ht *HTTPTransport) handlePurchase(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "purchase request failed", "error", err)
		} else {
			log.DebugContext(ctx, "purchase completed")
		}
	}(r.Context())

	accountID, ok := context_.AccountIDFromContext(r.Context())
	if !ok {
		http_.Error(w, http.StatusUnauthorized, "invalid credentials")

		return ErrNoAccountID
	}

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http_.Error(w, http.StatusBadRequest, "invalid request body")

		return fmt.Errorf("decode body: %w", err)
	}

	receipt, err := ht.creditSvc.Purchase(r.Context(), accountID, req.PackageID)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownPackage) {
			http_.Error(w, http.StatusBadRequest, "unknown credit package")
		} else {
			http_.Error(w, http.StatusInternalServerError, "purchase failed")
		}

		return fmt.Errorf("purchase: %w", err)
	}

	http_.JSON(w, http.StatusOK, purchaseResponse{
		Success:      true,
		CreditsAdded: receipt.Package.Credits,
		NewBalance:   receipt.NewBalance,
		Message:      fmt.Sprintf("Successfully added %d credits to your account", receipt.Package.Credits),
		AmountUSD:    receipt.Package.PriceUSD,
	})

	return nil
}
