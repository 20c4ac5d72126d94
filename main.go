// Package main library lending API.
//
// @title           Library Lending API
// @version         1.0
// @description     Lending service (catalog, subscriptions, borrowings, reservations).
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description  Use:  Bearer <JWT>
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"liblending/app/echoServer"
	adminctrl "liblending/app/echoServer/controller/admin"
	authctrl "liblending/app/echoServer/controller/auth"
	bookctrl "liblending/app/echoServer/controller/book"
	borrowctrl "liblending/app/echoServer/controller/borrowing"
	resctrl "liblending/app/echoServer/controller/reservation"
	subctrl "liblending/app/echoServer/controller/subscription"
	"liblending/app/echoServer/validation"
	"liblending/config"
	bookrepo "liblending/repository/book"
	borrowrepo "liblending/repository/borrowing"
	resrepo "liblending/repository/reservation"
	subrepo "liblending/repository/subscription"
	userrepo "liblending/repository/user"
	authsvc "liblending/service/auth"
	booksvc "liblending/service/book"
	borrowsvc "liblending/service/borrowing"
	ressvc "liblending/service/reservation"
	subsvc "liblending/service/subscription"
	sweepsvc "liblending/service/sweep"
	"liblending/util/database"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"
)

func main() {

	cfg := config.Load()
	ctx := context.Background()

	// logger
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// DB: *sql.DB
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// repos
	ur := userrepo.New(db)
	br := bookrepo.New(db)
	bor := borrowrepo.New(db)
	rr := resrepo.New(db)
	sr := subrepo.New(db)

	// services
	as := authsvc.New(ur)
	bs := booksvc.New(br)
	ss := subsvc.New(sr)
	rs := ressvc.New(db, rr, br, ur, bor)
	los := borrowsvc.New(db, bor, br, ur, ss, rs, rr, borrowsvc.Config{
		DailyFineRate:      cfg.DailyFineRate,
		RenewalDays:        cfg.RenewalDays,
		RenewBlockedByHold: cfg.RenewBlockedByHold,
	})
	sw := sweepsvc.New(rs, ss, time.Duration(cfg.AutoRenewHorizonH)*time.Hour, log)

	// controllers
	v := validator.New()
	authC := &authctrl.Controller{Svc: as, V: v, Log: log, JWTSecret: cfg.JWTSecret}
	bookC := &bookctrl.Controller{Svc: bs, V: v, Log: log}
	borrowC := &borrowctrl.Controller{Svc: los, V: v, Log: log}
	resC := &resctrl.Controller{Svc: rs, V: v, Log: log}
	subC := &subctrl.Controller{Svc: ss, V: v, Log: log}
	adminC := &adminctrl.Controller{Sweeper: sw, Log: log}

	// echo
	e := echo.New()
	echoServer.RegisterMiddlewares(e)
	e.Validator = validation.New()

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]any{
			"status":  "ok",
			"message": "Service is healthy and connected",
		})
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	echoServer.Register(e, echoServer.C{
		Auth:         authC,
		Book:         bookC,
		Borrowing:    borrowC,
		Reservation:  resC,
		Subscription: subC,
		Admin:        adminC,

		JWTSecret: cfg.JWTSecret,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}
	if port == "" {
		port = "8080"
	}

	slog.Info("starting server", "chosen_port", port)

	e.Logger.Fatal(e.Start(":" + port))
}
