package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/LoggeL/facecensor/internal/engine"
	"github.com/LoggeL/facecensor/internal/infra/config"
	"github.com/LoggeL/facecensor/internal/infra/logging"
	http_ "github.com/LoggeL/facecensor/internal/infra/transport/http"
	"github.com/LoggeL/facecensor/internal/repo/account"
	"github.com/LoggeL/facecensor/internal/repo/blob"
	"github.com/LoggeL/facecensor/internal/repo/job"
	"github.com/LoggeL/facecensor/internal/repo/ledger"
	"github.com/LoggeL/facecensor/internal/repo/store"
	"github.com/LoggeL/facecensor/internal/svc/accountsvc"
	"github.com/LoggeL/facecensor/internal/svc/creditsvc"
	"github.com/LoggeL/facecensor/internal/svc/jobsvc"
)

const (
	appName = "facecensor"
	svcName = "censord"
)

type Config struct {
	config.EnvConfig

	Log     logging.LoggerConfig                `envPrefix:"LOG_"`
	HTTP    http_.HTTPTransportConfig           `envPrefix:"HTTP_"`
	Store   store.Config                        `envPrefix:"STORE_"`
	Blob    blob.FileSystemBlobRepositoryConfig `envPrefix:"BLOB_"`
	Account accountsvc.AccountConfig            `envPrefix:"AUTH_"`
	Engine  engine.PigoEngineConfig             `envPrefix:"ENGINE_"`
	Jobs    jobsvc.OrchestratorConfig           `envPrefix:"JOBS_"`
}

func main() {
	_ = godotenv.Load()

	var (
		cfg Config

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		panic(err)
	}

	logging.Configure(ctx, cfg.Log, loggerName)

	if err := run(ctx, cfg); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, cfg Config) (err error) {
	defer func() {
		log := logging.GetLogger("cmd.censord")

		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)

			return
		}

		log.InfoContext(ctx, "shutdown")
	}()

	st, err := store.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	blobRepo, err := blob.NewFileSystemBlobRepository(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("new blob repo: %w", err)
	}

	accountRepo := account.NewSQLiteAccountRepository(st)
	ledgerRepo := ledger.NewSQLiteLedgerRepository(st)
	jobRepo := job.NewSQLiteJobRepository(st)

	accountSvc, err := accountsvc.NewAccountService(accountRepo, ledgerRepo, cfg.Account)
	if err != nil {
		return fmt.Errorf("new account service: %w", err)
	}

	creditSvc := creditsvc.NewCreditService(ledgerRepo)

	eng, err := engine.NewPigoEngine(cfg.Engine)
	if err != nil {
		return fmt.Errorf("new engine: %w", err)
	}

	orchestrator := jobsvc.NewOrchestrator(jobRepo, ledgerRepo, blobRepo, eng, cfg.Jobs)
	if err := orchestrator.Start(ctx); err != nil {
		return fmt.Errorf("start orchestrator: %w", err)
	}
	defer orchestrator.Close()

	router := newRouter(
		accountsvc.NewHTTPTransport(accountSvc),
		jobsvc.NewHTTPTransport(orchestrator, accountSvc.Tokens),
		creditsvc.NewHTTPTransport(creditSvc, accountSvc.Tokens),
	)

	if err := http_.ListenAndServe(ctx, router, cfg.HTTP); err != nil {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

type router struct {
	mux *http.ServeMux
}

func newRouter(accountHT, jobHT, creditHT http.Handler) *router {
	mux := http.NewServeMux()
	mux.Handle("/auth/", accountHT)
	mux.Handle("/images/", jobHT)
	mux.Handle("/credits/", creditHT)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		http_.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return &router{mux: mux}
}

func (rt *router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}
