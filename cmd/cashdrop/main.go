package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"cashdrop/internal/config"
	"cashdrop/internal/database"
	"cashdrop/internal/handler"
	"cashdrop/internal/model"
	"cashdrop/internal/mw"
	"cashdrop/internal/notify"
	"cashdrop/internal/realtime"
	"cashdrop/internal/service"
	"cashdrop/internal/worker"
)

func main() {
	cfg := config.New()

	db, err := database.NewDB(cfg.DatabaseURI)
	if err != nil {
		slog.Error("failed to connect to DB", "error", err)
		os.Exit(1)
	}
	defer database.CloseDB(context.Background(), db)

	if err := database.InitSchema(db); err != nil {
		slog.Error("failed to init DB schema", "error", err)
		os.Exit(1)
	}

	broker, err := realtime.Connect(cfg.AMQPURL)
	if err != nil {
		slog.Error("failed to connect to message broker", "error", err)
		os.Exit(1)
	}
	defer broker.Close()

	// Services
	authSvc := service.NewAuthService(db)
	eventSvc := service.NewEventService(db, broker)
	orderSvc := service.NewOrderService(db, broker, eventSvc, cfg.DeliveryFee)
	otpSvc := service.NewOTPService(db, broker, eventSvc)
	addrSvc := service.NewAddressService(db)
	bankSvc := service.NewBankService(db)
	reorderSvc := service.NewReorderService(db, orderSvc)

	// Background workers
	pushClient := notify.NewPushClient(cfg.PushGatewayAddress)
	dispatcher := notify.NewDispatcher(cfg.AMQPURL, eventSvc, pushClient)
	otpSweeper := worker.NewOTPSweeper(db)

	// Router
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes
	r.Post("/api/user/register", handler.RegisterHandler(authSvc, cfg.JWTSecret))
	r.Post("/api/user/login", handler.LoginHandler(authSvc, cfg.JWTSecret))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.JWTSecret))

		r.Post("/api/orders", handler.CreateOrderHandler(orderSvc, authSvc))
		r.Get("/api/orders", handler.ListOrdersHandler(orderSvc))
		r.Get("/api/orders/stream", handler.StreamHandler(cfg.AMQPURL))
		r.Get("/api/orders/{id}", handler.GetOrderHandler(orderSvc))
		r.Post("/api/orders/{id}/cancel", handler.CancelOrderHandler(orderSvc))
		r.Post("/api/orders/{id}/review", handler.ReviewOrderHandler(orderSvc))
		r.Post("/api/orders/{id}/events", handler.EmitEventHandler(eventSvc, orderSvc))
		r.Get("/api/orders/{id}/events", handler.ListEventsHandler(eventSvc, orderSvc))
		r.Get("/api/orders/{id}/otp", handler.OTPCodeHandler(orderSvc))
		r.Post("/api/orders/{id}/otp/verify", handler.VerifyOTPHandler(otpSvc, orderSvc))
		r.Get("/api/orders/{id}/reorder-eligibility", handler.ReorderEligibilityHandler(reorderSvc))

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(model.RoleRunner, model.RoleAdmin))
			r.Get("/api/orders/available", handler.AvailableOrdersHandler(orderSvc))
			r.Post("/api/orders/{id}/accept", handler.AcceptOrderHandler(orderSvc))
			r.Post("/api/orders/{id}/status", handler.UpdateStatusHandler(orderSvc))
			r.Post("/api/orders/{id}/otp", handler.GenerateOTPHandler(otpSvc, orderSvc))
		})

		r.Post("/api/user/addresses", handler.CreateAddressHandler(addrSvc))
		r.Get("/api/user/addresses", handler.ListAddressesHandler(addrSvc))
		r.Delete("/api/user/addresses/{id}", handler.DeleteAddressHandler(addrSvc))
		r.Post("/api/user/bank-accounts", handler.LinkBankHandler(bankSvc))
		r.Get("/api/user/bank-accounts", handler.ListBankAccountsHandler(bankSvc))
	})

	srv := &http.Server{
		Addr:        cfg.RunAddress,
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: the SSE stream endpoint holds its response open.
	}

	ctx, cancel := context.WithCancel(context.Background())
	go otpSweeper.Start(ctx)
	go func() {
		if err := dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("notification dispatcher exited", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	slog.Info("starting server", "addr", cfg.RunAddress)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-quit
	slog.Info("shutting down...")

	cancel() // stop workers
	ctxShut, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()

	if err := srv.Shutdown(ctxShut); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}

	slog.Info("server stopped")
}
