package main

import (
	"net/http"

	"github.com/glyzier/auth"
	"github.com/goliatone/go-router"
)

// GlyzierPolicy is the route authorization table. Rules evaluate top to
// bottom, first match wins; the browsing surface stays public, everything
// personal requires a principal.
func GlyzierPolicy() *auth.Policy {
	return auth.NewPolicy(
		auth.Rule{Pattern: "/api/auth/*", Require: auth.Public},
		auth.Rule{Method: "GET", Pattern: "/api/products", Require: auth.Public},
		auth.Rule{Method: "GET", Pattern: "/api/products/*", Require: auth.Public},
		auth.Rule{Method: "GET", Pattern: "/api/sellers/:id", Require: auth.Public},
		auth.Rule{Pattern: "/api/cart/*", Require: auth.Authenticated},
		auth.Rule{Pattern: "/api/favorites/*", Require: auth.Authenticated},
		auth.Rule{Pattern: "/api/*", Require: auth.Authenticated},
	)
}

// MountRoutes wires the identity gate, the policy, and the marketplace
// collaborator routes. Handlers here are deliberately thin: they show where
// the marketplace modules plug in behind the policy, not what they do.
func MountRoutes(app *App) {
	r := app.srv.Router()
	cfg := app.Config().GetAuth()

	gate := app.auther.IdentityGate(cfg)
	policy := GlyzierPolicy().Middleware(cfg.GetContextKey(), rejectWithMetrics)

	r.Use(gate)
	r.Use(policy)

	r.Get("/api/products", ProductsIndex(app))
	r.Get("/api/products/:id", ProductShow(app))
	r.Get("/api/sellers/:id", SellerShow(app))

	r.Get("/api/cart", CartShow(app))
	r.Get("/api/favorites", FavoritesIndex(app))
	r.Get("/api/orders", OrdersIndex(app))

	admin := app.auther.AdminRoute(cfg, adminErrorHandler(app))
	r.Post("/api/admin/users/:id/ban", AdminBanUser(app), admin)
	r.Post("/api/admin/users/:id/reinstate", AdminReinstateUser(app), admin)
	r.Post("/api/admin/impersonate", AdminImpersonate(app), admin)
}

func rejectWithMetrics(c router.Context) error {
	PolicyRejectionsTotal.WithLabelValues(c.Method()).Inc()
	return auth.DefaultRejectHandler(c)
}

func adminErrorHandler(app *App) func(router.Context, error) error {
	return func(c router.Context, err error) error {
		app.GetLogger("admin").Warn("admin route rejected", "error", err, "path", c.Path())
		return c.JSON(http.StatusForbidden, map[string]string{
			"error": "insufficient permissions",
		})
	}
}

func ProductsIndex(app *App) router.HandlerFunc {
	return func(c router.Context) error {
		return c.JSON(router.StatusOK, map[string]any{
			"products": []any{},
		})
	}
}

func ProductShow(app *App) router.HandlerFunc {
	return func(c router.Context) error {
		return c.JSON(router.StatusOK, map[string]any{
			"product_id": c.Param("id"),
		})
	}
}

func SellerShow(app *App) router.HandlerFunc {
	return func(c router.Context) error {
		return c.JSON(router.StatusOK, map[string]any{
			"seller_id": c.Param("id"),
		})
	}
}

// CartShow reads the principal the gate attached; the policy already
// guaranteed one is present.
func CartShow(app *App) router.HandlerFunc {
	return func(c router.Context) error {
		claims, ok := auth.GetClaims(c.Context())
		if !ok {
			return c.JSON(router.StatusUnauthorized, map[string]string{
				"error": "authentication required",
			})
		}

		return c.JSON(router.StatusOK, map[string]any{
			"user_id": claims.UserID(),
			"items":   []any{},
		})
	}
}

func FavoritesIndex(app *App) router.HandlerFunc {
	return func(c router.Context) error {
		claims, ok := auth.GetClaims(c.Context())
		if !ok {
			return c.JSON(router.StatusUnauthorized, map[string]string{
				"error": "authentication required",
			})
		}

		return c.JSON(router.StatusOK, map[string]any{
			"user_id":   claims.UserID(),
			"favorites": []any{},
		})
	}
}

func OrdersIndex(app *App) router.HandlerFunc {
	return func(c router.Context) error {
		claims, ok := auth.GetClaims(c.Context())
		if !ok {
			return c.JSON(router.StatusUnauthorized, map[string]string{
				"error": "authentication required",
			})
		}

		return c.JSON(router.StatusOK, map[string]any{
			"user_id": claims.UserID(),
			"orders":  []any{},
		})
	}
}

func AdminBanUser(app *App) router.HandlerFunc {
	return func(c router.Context) error {
		claims, ok := auth.GetClaims(c.Context())
		if !ok {
			return c.JSON(router.StatusUnauthorized, map[string]string{
				"error": "authentication required",
			})
		}

		user, err := app.repo.Users().GetByID(c.Context(), c.Param("id"))
		if err != nil {
			return c.JSON(router.StatusBadRequest, map[string]string{
				"error": "unknown user",
			})
		}

		actor := auth.ActorRef{ID: claims.UserID(), Type: "user"}
		if _, err := app.repo.Users().Ban(c.Context(), actor, user); err != nil {
			app.GetLogger("admin").Error("ban user", "error", err)
			return c.JSON(router.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
		}

		return c.JSON(router.StatusOK, map[string]any{"success": true})
	}
}

func AdminReinstateUser(app *App) router.HandlerFunc {
	return func(c router.Context) error {
		claims, ok := auth.GetClaims(c.Context())
		if !ok {
			return c.JSON(router.StatusUnauthorized, map[string]string{
				"error": "authentication required",
			})
		}

		user, err := app.repo.Users().GetByID(c.Context(), c.Param("id"))
		if err != nil {
			return c.JSON(router.StatusBadRequest, map[string]string{
				"error": "unknown user",
			})
		}

		actor := auth.ActorRef{ID: claims.UserID(), Type: "user"}
		if _, err := app.repo.Users().Reinstate(c.Context(), actor, user); err != nil {
			app.GetLogger("admin").Error("reinstate user", "error", err)
			return c.JSON(router.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
		}

		return c.JSON(router.StatusOK, map[string]any{"success": true})
	}
}

type impersonatePayload struct {
	Identifier string `json:"identifier" form:"identifier"`
}

func AdminImpersonate(app *App) router.HandlerFunc {
	return func(c router.Context) error {
		payload := new(impersonatePayload)
		if err := c.Bind(payload); err != nil {
			return c.JSON(router.StatusBadRequest, map[string]string{
				"error": "could not parse request body",
			})
		}

		if err := app.auther.Impersonate(c, payload.Identifier); err != nil {
			app.GetLogger("admin").Error("impersonate", "error", err)
			return c.JSON(router.StatusBadRequest, map[string]string{
				"error": "could not impersonate user",
			})
		}

		return c.JSON(router.StatusOK, map[string]any{"success": true})
	}
}
