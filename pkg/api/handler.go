package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/quorumsig/multisigd/pkg/core"
)

type Handler struct {
	logger   *zap.Logger
	wallets  walletRegistry
	multisig multisig
	auth     authenticator
	network  core.Network
}

// Options configures Handler.
type Options struct {
	auth    authenticator
	network core.Network
}

type Option func(o *Options)

// WithAuthenticator requires a bearer token bound to the claimed address on
// every state-changing request. Without it the claimed address is trusted.
func WithAuthenticator(a authenticator) Option {
	return func(o *Options) {
		o.auth = a
	}
}

// WithDefaultNetwork is used for wallets created without an explicit network.
func WithDefaultNetwork(n core.Network) Option {
	return func(o *Options) {
		o.network = n
	}
}

func NewHandler(logger *zap.Logger, wallets walletRegistry, m multisig, opts ...Option) *Handler {
	options := &Options{network: core.Testnet}
	for _, o := range opts {
		o(options)
	}
	return &Handler{
		logger:   logger,
		wallets:  wallets,
		multisig: m,
		auth:     options.auth,
		network:  options.network,
	}
}

// Router returns every endpoint mounted under /v1.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(Logging(h.logger), Metrics, h.Authentication)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/challenge", h.CreateChallenge)
		r.Post("/auth/verify", h.VerifyProof)

		r.Post("/wallets", h.CreateWallet)
		r.Get("/wallets", h.ListWallets)
		r.Route("/wallets/{walletID}", func(r chi.Router) {
			r.Get("/", h.GetWallet)

			r.Post("/transactions", h.ProposeTransaction)
			r.Get("/transactions", h.ListTransactions)
			r.Get("/transactions/{transactionID}", h.GetTransaction)
			r.Post("/transactions/{transactionID}/signatures", h.SubmitSignature)
			r.Post("/transactions/{transactionID}/rejections", h.SubmitRejection)
			r.Post("/transactions/{transactionID}/finalize", h.FinalizeTransaction)

			r.Post("/signables", h.CreateSignable)
			r.Get("/signables", h.ListSignables)
			r.Get("/signables/{signableID}", h.GetSignable)
			r.Post("/signables/{signableID}/signatures", h.SubmitSignableSignature)
			r.Post("/signables/{signableID}/rejections", h.SubmitSignableRejection)
		})
	})
	return r
}
