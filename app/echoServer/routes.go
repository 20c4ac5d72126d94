package echoServer

import (
	"net/http"

	"liblending/app/echoServer/controller/admin"
	"liblending/app/echoServer/controller/auth"
	"liblending/app/echoServer/controller/book"
	"liblending/app/echoServer/controller/borrowing"
	"liblending/app/echoServer/controller/reservation"
	"liblending/app/echoServer/controller/subscription"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

type C struct {
	Auth         *auth.Controller
	Book         *book.Controller
	Borrowing    *borrowing.Controller
	Reservation  *reservation.Controller
	Subscription *subscription.Controller
	Admin        *admin.Controller
	JWTSecret    string
}

func Register(e *echo.Echo, c C) {
	// Public
	pub := e.Group("/v1")
	pub.POST("/users/register", c.Auth.Register)
	pub.POST("/users/login", c.Auth.Login)
	pub.GET("/subscriptions/tiers", c.Subscription.Tiers)

	// Auth
	authed := e.Group("/v1")
	authed.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(c.JWTSecret),

		NewClaimsFunc: func(c echo.Context) jwt.Claims { return jwt.MapClaims{} },
		TokenLookup:   "header:Authorization",
	}))
	// user_id + role extraction
	authed.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			tokenObj := ctx.Get("user")
			if tokenObj == nil {
				return ctx.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
			}
			claims, ok := tokenObj.(jwt.MapClaims)
			if !ok {
				return ctx.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
			}
			sub, ok := claims["sub"].(float64)
			if !ok {
				return ctx.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
			}
			ctx.Set("user_id", int64(sub))
			if role, ok := claims["role"].(string); ok {
				ctx.Set("role", role)
			}
			return next(ctx)
		}
	})

	requireAdmin := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if role, _ := ctx.Get("role").(string); role != "admin" {
				return ctx.JSON(http.StatusForbidden, echo.Map{"message": "admin only"})
			}
			return next(ctx)
		}
	}

	authed.GET("/users/me", c.Auth.Me)

	// Books
	authed.GET("/books", c.Book.List)
	authed.GET("/books/search", c.Book.Search)
	authed.GET("/books/:id", c.Book.Detail)
	authed.GET("/books/:id/queue", c.Reservation.Queue)
	// Admin endpoints
	authed.POST("/books", c.Book.Create, requireAdmin)
	authed.PUT("/books/:id", c.Book.Update, requireAdmin)
	authed.POST("/books/:id/copies", c.Book.AddCopies, requireAdmin)
	authed.DELETE("/books/:id", c.Book.Delete, requireAdmin)

	// Borrowings
	authed.POST("/borrowings", c.Borrowing.Borrow)
	authed.POST("/borrowings/:id/return", c.Borrowing.Return)
	authed.POST("/borrowings/:id/renew", c.Borrowing.Renew)
	authed.GET("/borrowings/:id/fine", c.Borrowing.Fine)
	authed.GET("/borrowings/my", c.Borrowing.My)
	authed.GET("/borrowings/overdue", c.Borrowing.Overdue, requireAdmin)
	authed.GET("/borrowings/most-borrowed", c.Borrowing.MostBorrowed, requireAdmin)

	// Reservations
	authed.POST("/reservations", c.Reservation.Reserve)
	authed.POST("/reservations/:id/cancel", c.Reservation.Cancel)
	authed.POST("/reservations/:id/fulfill", c.Reservation.Fulfill, requireAdmin)
	authed.GET("/reservations/my", c.Reservation.My)

	// Subscriptions
	authed.GET("/subscriptions/my", c.Subscription.My)
	authed.POST("/subscriptions/upgrade", c.Subscription.Upgrade)
	authed.POST("/subscriptions/renew", c.Subscription.Renew)
	authed.POST("/subscriptions/cancel", c.Subscription.Cancel)
	authed.PUT("/subscriptions/auto-renew", c.Subscription.SetAutoRenew)

	// Maintenance
	authed.POST("/admin/sweep", c.Admin.Sweep, requireAdmin)
}
