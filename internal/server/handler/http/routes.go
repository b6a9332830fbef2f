package http

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/atinyakov/mdvault/internal/middleware"
)

// NewRouter constructs and returns the HTTP handler serving the vault
// API. Every endpoint except registration sits behind basic
// authentication.
//
// Routes:
//
//	POST   /api/register                  → AuthHandler.Register (open)
//	POST   /api/login                     → AuthHandler.Login
//	GET    /api/vaults                    → VaultHandler.List
//	POST   /api/vaults                    → VaultHandler.Create
//	GET    /api/vaults/{slug}             → VaultHandler.Get
//	DELETE /api/vaults/{slug}             → VaultHandler.Delete
//	GET    /api/vaults/{slug}/tree        → DocumentHandler.Tree
//	GET    /api/vaults/{slug}/documents   → DocumentHandler.List
//	GET    /api/vaults/{slug}/files/*     → DocumentHandler.Get
//	PUT    /api/vaults/{slug}/files/*     → DocumentHandler.Put
//	DELETE /api/vaults/{slug}/files/*     → DocumentHandler.Delete
//	GET    /api/vaults/{slug}/versions/*  → DocumentHandler.Versions
//	POST   /api/vaults/{slug}/dirs        → DocumentHandler.CreateDir
//	POST   /api/vaults/{slug}/move        → DocumentHandler.Move
//	POST   /api/vaults/{slug}/copy        → DocumentHandler.Copy
func NewRouter(
	authHandler *AuthHandler,
	vaultHandler *VaultHandler,
	docHandler *DocumentHandler,
	auth middleware.Authenticator,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(middleware.BasicAuth(auth))

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)

		r.Route("/vaults", func(r chi.Router) {
			r.Get("/", vaultHandler.List)
			r.Post("/", vaultHandler.Create)

			r.Route("/{slug}", func(r chi.Router) {
				r.Get("/", vaultHandler.Get)
				r.Delete("/", vaultHandler.Delete)

				r.Get("/tree", docHandler.Tree)
				r.Get("/documents", docHandler.List)
				r.Get("/files/*", docHandler.Get)
				r.Put("/files/*", docHandler.Put)
				r.Delete("/files/*", docHandler.Delete)
				r.Get("/versions/*", docHandler.Versions)
				r.Post("/dirs", docHandler.CreateDir)
				r.Post("/move", docHandler.Move)
				r.Post("/copy", docHandler.Copy)
			})
		})
	})

	return r
}
