package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"donateblood/m/internal/api"
	"donateblood/m/internal/auth"
	"donateblood/m/internal/config"
	"donateblood/m/internal/database"
	"donateblood/m/internal/identity"
	"donateblood/m/internal/inventory"
	"donateblood/m/internal/logger"
	"donateblood/m/internal/migrations"
	"donateblood/m/internal/notify"
	"donateblood/m/internal/reference"
	"donateblood/m/internal/requests"
	"donateblood/m/internal/seed"
)

func main() {
	cfg := config.Load()

	zlog, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat, "donateblood")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zlog.Sync()

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		zlog.Fatal("database unavailable", zap.String("driver", cfg.DatabaseDriver), zap.Error(err))
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		zlog.Fatal("migrations failed", zap.Error(err))
	}
	if err := seed.BloodTypes(db); err != nil {
		zlog.Fatal("blood type seed failed", zap.Error(err))
	}
	if _, err := seed.LoadHospitals(db, cfg.HospitalsCSV, zlog); err != nil {
		zlog.Warn("hospital seed skipped", zap.Error(err))
	}

	users := identity.New(db, cfg.DefaultRecipientPassword)
	if err := seed.EnsureAdmin(context.Background(), users, cfg.AdminEmail, cfg.AdminPassword, zlog); err != nil {
		zlog.Fatal("bootstrap admin failed", zap.Error(err))
	}

	inbox := notify.NewDBSender(db)
	senders := notify.Fanout{inbox}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		senders = append(senders, notify.NewStreamSender(rdb, cfg.NotifyStream))
		zlog.Info("publishing notifications to redis", zap.String("addr", cfg.RedisAddr), zap.String("stream", cfg.NotifyStream))
	}
	if cfg.WebhookURL != "" {
		senders = append(senders, notify.NewWebhookSender(cfg.WebhookURL))
		zlog.Info("posting notifications to webhook", zap.String("url", cfg.WebhookURL))
	}

	ledger := inventory.New(db, zlog.Named("inventory"))
	ref := reference.New(db)
	store := requests.New(db, ledger, users, ref, senders, zlog.Named("requests"))

	handler := api.New(api.Services{
		Requests:  store,
		Ledger:    ledger,
		Reference: ref,
		Users:     users,
		Inbox:     inbox,
	}, auth.NewIssuer(cfg.Secret, 24*time.Hour), zlog.Named("http"))

	zlog.Info("donateblood server starting", zap.String("port", cfg.HTTPPort), zap.String("driver", cfg.DatabaseDriver))
	if err := http.ListenAndServe(":"+cfg.HTTPPort, handler.Router()); err != nil {
		zlog.Fatal("server error", zap.Error(err))
	}
}
