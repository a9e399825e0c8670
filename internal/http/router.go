package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/MrJamesThe3rd/tally/internal/http/group"
	"github.com/MrJamesThe3rd/tally/internal/http/importcsv"
	"github.com/MrJamesThe3rd/tally/internal/http/ledger"
	"github.com/MrJamesThe3rd/tally/internal/http/matching"
	"github.com/MrJamesThe3rd/tally/internal/http/transaction"
)

func New(
	allowedOrigins []string,
	ledgersV1 *ledger.Handler,
	transactionsV1 *transaction.Handler,
	importV1 *importcsv.Handler,
	matchingV1 *matching.Handler,
	groupsV1 *group.Handler,
) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	if len(allowedOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"Retry-After", "X-Request-Id"},
			MaxAge:         300,
		}))
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/ledgers", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.AllowContentType("application/json"))
				ledgersV1.Routes(r)

				r.Route("/{ledgerID}/transactions", transactionsV1.LedgerRoutes)
				r.Route("/{ledgerID}/relations", transactionsV1.RelationRoutes)
			})

			r.Route("/{ledgerID}/import", importV1.Routes)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			transactionsV1.Routes(r)
		})

		r.Route("/matching", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			matchingV1.Routes(r)
		})

		r.Route("/groups", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			groupsV1.Routes(r)
		})
	})

	return router
}
