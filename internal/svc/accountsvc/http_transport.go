package accountsvc

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

// HTTPTransport handles HTTP requests for the account service.
// It provides endpoints for registration, login and the current account.
type HTTPTransport struct {
	accountSvc *AccountService
	log        logging.Logger
}

// NewHTTPTransport creates a new HTTPTransport instance.
func NewHTTPTransport(accountSvc *AccountService) *HTTPTransport {
	return &HTTPTransport{
		accountSvc: accountSvc,
		log:        logging.GetLogger("svc.accountsvc.http_transport"),
	}
}

// ServeHTTP implements http.Handler and sets up routes for the account
// service endpoints:
// - POST /auth/register: Register a new account
// - POST /auth/login: Login and get a bearer token
// - GET /auth/me: Return the authenticated account.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", ht.HandleRegister)
	mux.HandleFunc("POST /auth/login", ht.HandleLogin)
	mux.Handle("GET /auth/me", http_.AuthorizingMiddleware(
		http.HandlerFunc(ht.HandleMe), ht.accountSvc.Tokens, ht.log,
	))
	mux.ServeHTTP(w, r)
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister processes registration requests.
// Expects a JSON body with email, username and password.
// Returns a bearer token and the new account on success.
func (ht *HTTPTransport) HandleRegister(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleRegister(w, r)
}

func (ht *HTTPTransport) handleRegister(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "register failed", "error", err)
		} else {
			log.DebugContext(ctx, "account registered")
		}
	}(r.Context())

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http_.Error(w, http.StatusBadRequest, "invalid request body")

		return fmt.Errorf("decode body: %w", err)
	}

	if req.Email == "" || req.Username == "" || req.Password == "" {
		http_.Error(w, http.StatusBadRequest, "email, username and password are required")

		return errors.New("missing required fields")
	}

	acct, err := ht.accountSvc.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPasswordTooShort):
			http_.Error(w, http.StatusBadRequest, "password must be at least 6 characters")
		case errors.Is(err, domain.ErrDuplicateEmail):
			http_.Error(w, http.StatusConflict, domain.ErrDuplicateEmail.Error())
		case errors.Is(err, domain.ErrDuplicateUsername):
			http_.Error(w, http.StatusConflict, domain.ErrDuplicateUsername.Error())
		default:
			http_.Error(w, http.StatusInternalServerError, "registration failed")
		}

		return fmt.Errorf("register: %w", err)
	}

	return ht.respondToken(w, r, acct)
}

// HandleLogin processes login requests.
// Expects a JSON body with email and password.
// Returns a bearer token and the account on success.
func (ht *HTTPTransport) HandleLogin(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleLogin(w, r)
}

func (ht *HTTPTransport) handleLogin(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "login failed", "error", err)
		} else {
			log.DebugContext(ctx, "account logged in")
		}
	}(r.Context())

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http_.Error(w, http.StatusBadRequest, "invalid request body")

		return fmt.Errorf("decode body: %w", err)
	}

	acct, err := ht.accountSvc.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			http_.Error(w, http.StatusUnauthorized, domain.ErrInvalidCredentials.Error())
		} else {
			http_.Error(w, http.StatusInternalServerError, "login failed")
		}

		return fmt.Errorf("authenticate: %w", err)
	}

	return ht.respondToken(w, r, acct)
}

// HandleMe returns the authenticated account with its current balance.
func (ht *HTTPTransport) HandleMe(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleMe(w, r)
}

func (ht *HTTPTransport) handleMe(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "current account lookup failed", "error", err)
		} else {
			log.DebugContext(ctx, "current account returned")
		}
	}(r.Context())

	accountID, ok := context_.AccountIDFromContext(r.Context())
	if !ok {
		http_.Error(w, http.StatusUnauthorized, "invalid credentials")

		return ErrNoAccountID
	}

	acct, err := ht.accountSvc.GetByID(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			http_.Error(w, http.StatusUnauthorized, "invalid credentials")
		} else {
			http_.Error(w, http.StatusInternalServerError, "account lookup failed")
		}

		return fmt.Errorf("get account: %w", err)
	}

	http_.JSON(w, http.StatusOK, domain.NewAccountResponse(acct))

	return nil
}

func (ht *HTTPTransport) respondToken(w http.ResponseWriter, r *http.Request, acct domain.Account) error {
	token, err := ht.accountSvc.IssueToken(r.Context(), acct)
	if err != nil {
		http_.Error(w, http.StatusInternalServerError, "token issuance failed")

		return fmt.Errorf("issue token: %w", err)
	}

	http_.JSON(w, http.StatusOK, domain.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        domain.NewAccountResponse(acct),
	})

	return nil
}
