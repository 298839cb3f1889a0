package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/faeln1/go-checkin-api/internal/app/controllers"
	"github.com/faeln1/go-checkin-api/internal/app/repositories"
	"github.com/faeln1/go-checkin-api/internal/app/services"
	"github.com/faeln1/go-checkin-api/internal/config"
	"github.com/faeln1/go-checkin-api/internal/platform/database"
	httpPlatform "github.com/faeln1/go-checkin-api/internal/platform/http"
	"github.com/faeln1/go-checkin-api/internal/platform/realtime"
	"github.com/faeln1/go-checkin-api/pkg/eventlog"
	"github.com/faeln1/go-checkin-api/pkg/logger"
	storagepkg "github.com/faeln1/go-checkin-api/pkg/storage"
	minioStorage "github.com/faeln1/go-checkin-api/pkg/storage/minio"
	"github.com/joho/godotenv"
	waLog "go.mau.fi/whatsmeow/util/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg := config.MustLoad()
	loggers := logger.New("App", cfg.LogLevel)

	log.Printf("configuration: env=%s driver=%s", cfg.Env, cfg.DBDriver)

	var objectStorage storagepkg.Service
	if cfg.Storage.Enabled() {
		store, err := minioStorage.New(context.Background(), minioStorage.Config{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			UseSSL:    cfg.Storage.UseSSL,
			PublicURL: cfg.Storage.PublicURL,
		})
		if err != nil {
			log.Fatalf("storage initialization error: %v", err)
		}
		objectStorage = store
		log.Printf("object storage enabled bucket=%s endpoint=%s", cfg.Storage.Bucket, cfg.Storage.Endpoint)
	}

	repo, dbClose, err := openRepository(cfg)
	if err != nil {
		log.Fatalf("repository initialization error: %v", err)
	}
	if dbClose != nil {
		defer func() {
			if err := dbClose(); err != nil {
				log.Printf("error closing database: %v", err)
			}
		}()
	}

	if cfg.SeedFile != "" {
		seedRepository(context.Background(), repo, cfg.SeedFile, loggers.App.Sub("Seed"))
	}

	hub := realtime.NewHub(loggers.Hub,
		realtime.WithWriteTimeout(cfg.BroadcastWriteTimeout),
		realtime.WithAllowedOrigins(cfg.CORSAllowedOrigin),
	)
	broadcasters := services.BroadcastFanout{hub}
	if writer := eventlog.NewWriter(cfg.EventLogDir, loggers.App.Sub("EventLog")); writer.Enabled() {
		broadcasters = append(broadcasters, services.NewRecordingBroadcaster(writer, loggers.App.Sub("EventLog")))
		log.Printf("event log enabled dir=%s", cfg.EventLogDir)
	}
	if webhook := services.NewWebhookBroadcaster(cfg.EventWebhookURL, cfg.EventWebhookToken, nil, loggers.App.Sub("Webhook")); webhook != nil {
		broadcasters = append(broadcasters, webhook)
		log.Printf("event webhook enabled url=%s", cfg.EventWebhookURL)
	}

	attendanceSvc := services.NewAttendanceService(repo, broadcasters, loggers.App.Sub("Attendance"))
	badgeSvc := services.NewBadgeService(repo)
	reportSvc := services.NewReportService(repo, objectStorage, loggers.App.Sub("Reports"))

	router := httpPlatform.NewRouter(httpPlatform.RouterConfig{
		EventCtrl:     controllers.NewEventController(attendanceSvc, badgeSvc, reportSvc),
		Hub:           hub,
		Logger:        loggers.HTTP,
		SwaggerEnable: cfg.SwaggerEnable,
		DocsPath:      cfg.DocsPath,
		MasterToken:   cfg.MasterToken,
		AllowedOrigin: cfg.CORSAllowedOrigin,
	})

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Printf("HTTP server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down...")
	hub.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

func openRepository(cfg *config.AppConfig) (repositories.AttendanceRepository, func() error, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		log.Printf("initializing postgres repository with GORM")
		db, err := database.Open(cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		repo, err := repositories.NewGormAttendanceRepo(db)
		if err != nil {
			_ = sqlDB.Close()
			return nil, nil, err
		}
		return repo, sqlDB.Close, nil
	case config.DriverSQLite:
		log.Printf("initializing sqlite repository")
		db, err := database.OpenSQLite(cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		repo, err := repositories.NewSQLiteAttendanceRepo(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return repo, db.Close, nil
	default:
		log.Printf("initializing in-memory repository")
		return repositories.NewInMemoryAttendanceRepo(), nil, nil
	}
}

func seedRepository(ctx context.Context, repo repositories.AttendanceRepository, path string, log waLog.Logger) {
	doc, err := repositories.LoadSeedFile(path)
	if err != nil {
		log.Errorf("failed to load seed file %s: %v", path, err)
		return
	}
	seeded, err := repositories.SeedIfEmpty(ctx, repo, doc, log)
	if err != nil {
		log.Errorf("seeding failed: %v", err)
		return
	}
	if !seeded {
		log.Infof("store already populated; seed skipped")
	}
}
