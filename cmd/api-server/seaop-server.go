package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"seaop/db"
	"seaop/db/migrations"
	"seaop/internal/config"
	"seaop/internal/handlers"
	"seaop/internal/logger"
	"seaop/internal/notify"
	"seaop/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer log.Sync()

	dsn := cfg.Postgres.GetDSN()
	dbConn, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		log.Fatal("cannot connect to db", zap.Error(err))
	}
	defer dbConn.Close()
	dbConn.SetMaxOpenConns(cfg.Postgres.MaxConnections)
	dbConn.SetMaxIdleConns(cfg.Postgres.MaxIdle)

	if err := migrations.Run(dsn); err != nil {
		log.Fatal("migrations failed", zap.Error(err))
	}

	store := db.NewStorage(dbConn)

	var forwarder *notify.EmailForwarder
	if cfg.Email.Enabled {
		forwarder, err = notify.NewEmailForwarder(context.Background(), cfg.Email)
		if err != nil {
			log.Fatal("cannot build email forwarder", zap.Error(err))
		}
	}

	dispatcher := notify.NewService(store, forwarder, log)
	lifecycle := workflow.NewService(store, dispatcher, log)
	h := handlers.NewHandler(lifecycle, dispatcher)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ping", h.PingHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// leads
		r.Post("/leads/new", h.CreateLeadHandler)
		r.Get("/leads", h.GetLeadsHandler)
		r.Get("/leads/{leadId}", h.GetLeadHandler)
		r.Post("/leads/{leadId}/close", h.CloseBiddingHandler)
		// bids
		r.Post("/leads/{leadId}/bids/new", h.CreateBidHandler)
		r.Get("/leads/{leadId}/bids", h.GetLeadBidsHandler)
		r.Post("/leads/{leadId}/bids/{bidId}/accept", h.AcceptBidHandler)
		r.Post("/leads/{leadId}/bids/{bidId}/reject", h.RejectBidHandler)
		r.Post("/leads/{leadId}/bids/{bidId}/viewed", h.MarkBidViewedHandler)
		// architecture requests
		r.Post("/architecture/new", h.CreateArchitectureRequestHandler)
		r.Get("/architecture", h.GetArchitectureRequestsHandler)
		r.Get("/architecture/{requestId}", h.GetArchitectureRequestHandler)
		r.Post("/architecture/{requestId}/status", h.AdvanceRequestHandler)
		// notifications
		r.Get("/notifications", h.GetNotificationsHandler)
		r.Get("/notifications/unread-count", h.GetUnreadCountHandler)
		r.Post("/notifications/{notificationId}/read", h.MarkNotificationReadHandler)
		r.Post("/notifications/read-all", h.MarkAllNotificationsReadHandler)
	})

	log.Info("starting server", zap.String("address", cfg.Server.Address))
	if err := http.ListenAndServe(cfg.Server.Address, r); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
