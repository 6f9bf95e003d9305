package routes

import (
	"errors"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"

	"horus/crypto"
	"horus/gateway/middleware"
	"horus/native/leverage"
)

// LedgerReader is the read side of the persisted ledger state.
type LedgerReader interface {
	GetInfo() (*leverage.Info, error)
	GetUser(addr crypto.Address) (*leverage.UserInfo, error)
	Users() ([]*leverage.UserInfo, error)
}

type Config struct {
	Ledger LedgerReader
	// FallbackIndex is the collateral index used when a request carries no
	// index parameter.
	FallbackIndex *big.Int
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
}

const leverageRateKey = "leverage"

// New builds the read-only query router.
func New(cfg Config) (http.Handler, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("routes: ledger reader required")
	}
	lr := &leverageRoutes{ledger: cfg.Ledger, fallbackIndex: cfg.FallbackIndex}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	obs := cfg.Observability
	if obs != nil {
		r.Use(obs.Middleware("root"))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1/leverage", func(sr chi.Router) {
		if cfg.RateLimiter != nil {
			sr.Use(cfg.RateLimiter.Middleware(leverageRateKey))
		}
		if obs != nil {
			sr.Use(obs.Middleware(leverageRateKey))
		}
		lr.mount(sr)
	})

	if obs != nil {
		r.Handle("/metrics", obs.MetricsHandler())
	}

	return r, nil
}
