package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/technosupport/kindyguard/internal/api"
	"github.com/technosupport/kindyguard/internal/auth"
	"github.com/technosupport/kindyguard/internal/config"
	"github.com/technosupport/kindyguard/internal/coordinator"
	"github.com/technosupport/kindyguard/internal/data"
	"github.com/technosupport/kindyguard/internal/eventlog"
	"github.com/technosupport/kindyguard/internal/feed"
	"github.com/technosupport/kindyguard/internal/metrics"
	"github.com/technosupport/kindyguard/internal/middleware"
	"github.com/technosupport/kindyguard/internal/session"
	"github.com/technosupport/kindyguard/internal/tokens"
)

const serviceName = "KindyGuard-Control"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Config
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/default.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Config load error: %v", err)
	}

	// 2. DB
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		log.Fatalf("DB open error: %v", err)
	}
	if err := db.Ping(); err != nil {
		log.Fatalf("DB ping error: %v", err)
	}

	// 3. Shared Redis client
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})

	// 4. Core components
	collector := metrics.NewCollector()

	coord := coordinator.New(coordinator.Config{}, collector)
	defer coord.Close()

	// Seed system status from the site section
	applySiteStatus(coord, cfg.Site)

	// Hot-reload of the site section (camera inventory / NAS target)
	if err := config.WatchSite(ctx, cfgPath, func(site config.SiteConfig) {
		applySiteStatus(coord, site)
	}); err != nil {
		log.Printf("Warning: site config watcher disabled: %v", err)
	}

	// 5. Event log
	logRepo := data.EventLogModel{DB: db}
	logService := eventlog.NewService(logRepo)
	logService.StartRetention(ctx, cfg.EventLog.RetentionDays)

	// 6. Auth stack
	tokenMgr := tokens.NewManager(cfg.Auth.JWTSigningKey)
	sessionMgr := session.NewManager(rdb)
	blacklist := auth.NewRedisBlacklist(rdb)
	jwtMiddleware := middleware.NewJWTAuth(tokenMgr, blacklist)

	// 7. Detection feed
	var subscriber *feed.Subscriber
	natsURL := cfg.NATS.URL
	if natsURL == "" {
		natsURL = nats.DefaultURL
	}
	nc, err := nats.Connect(natsURL, nats.Name(serviceName))
	if err != nil {
		log.Printf("Warning: NATS connect failed: %v. Detection feed disabled.", err)
	} else {
		defer nc.Close()

		handle := func(ctx context.Context, e *feed.Event) {
			outcome, alert := coord.OnDetectionEvent(e)
			if err := logService.RecordDetection(ctx, e, outcome, alert); err != nil {
				log.Printf("[FEED] Event log write failed for %s: %v", e.EventID, err)
			}
		}

		subscriber = feed.NewSubscriber(nc, feed.SubscriberConfig{
			Subject:  cfg.NATS.Subject,
			DedupMax: cfg.Feed.DedupMaxKeys,
			DedupTTL: cfg.DedupTTL(),
		}, handle, collector.FeedRejected)

		if err := subscriber.Start(ctx); err != nil {
			log.Fatalf("Feed subscribe error: %v", err)
		}
		defer subscriber.Stop()
	}

	// 8. HTTP surface
	userRepo := data.UserModel{DB: db}

	router := api.NewRouter(api.RouterDeps{
		Auth: &api.AuthHandler{
			Users:     userRepo,
			Tokens:    tokenMgr,
			Session:   sessionMgr,
			Blacklist: blacklist,
			Coord:     coord,
		},
		State:    &api.StateHandler{Coord: coord, Tokens: tokenMgr},
		Alerts:   &api.AlertHandler{Coord: coord, Log: logService},
		Override: &api.OverrideHandler{Coord: coord, Log: logService},
		Status:   &api.StatusHandler{Coord: coord},
		Toasts:   &api.ToastHandler{Coord: coord},
		Events:   &api.EventLogHandler{Log: logService},

		JWT:            jwtMiddleware,
		Metrics:        collector.Handler(),
		HTTPRecorder:   collector,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Starting %s on :%s", serviceName, cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// 9. Wait for interrupt, then drain
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Println("Shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if subscriber != nil {
		subscriber.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown error: %v", err)
	}
	log.Println("Server stopped gracefully")
}

// applySiteStatus patches camera totals and NAS presence from config. Link
// health itself is reported live by the collaborators via PATCH
// /system/status; config only fixes the inventory size.
func applySiteStatus(coord *coordinator.Coordinator, site config.SiteConfig) {
	patch := coordinator.StatusPatch{}
	if len(site.Cameras) > 0 {
		snap := coord.Snapshot()
		online := snap.SystemStatus.Cameras.Online
		if online > len(site.Cameras) {
			online = len(site.Cameras)
		}
		patch.Cameras = &coordinator.CameraStatus{Total: len(site.Cameras), Online: online}
	}
	coord.SetSystemStatus(patch)
}
