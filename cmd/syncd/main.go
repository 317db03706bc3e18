package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"obecsync/internal/app"
	"obecsync/internal/archive"
	"obecsync/internal/config"
	"obecsync/internal/engine"
	"obecsync/internal/logging"
	"obecsync/internal/mirror"
	"obecsync/internal/report"
	"obecsync/internal/search"
	"obecsync/internal/store"
	"obecsync/internal/store/treestore"
)

func main() {
	runJob := flag.String("run", "", "run a single job and exit instead of serving")
	flag.Parse()

	cfg := config.Load()
	logging.Init(logging.ParseLevel(cfg.LogLevel), cfg.LogJSON)
	log := logging.Component("main")
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	rdb, err := treestore.Open(cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	folders, err := app.LoadFolders(cfg.FoldersFile)
	if err != nil {
		log.Error("folders config failed", "error", err)
		os.Exit(1)
	}

	var m *mirror.Mirror
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		m, err = mirror.New(ctx, mirror.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			MaxBytes:  int64(cfg.FileSizeLimitKB) * 1024,
		})
		if err != nil {
			log.Error("object store connection failed", "error", err)
			os.Exit(1)
		}
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	var searchSvc *search.Service
	if meiliClient != nil {
		searchSvc = search.NewService(meiliClient)
	}

	var archiveSvc *archive.Service
	if strings.TrimSpace(cfg.ArchiveDir) != "" {
		archiveSvc = archive.New(cfg.ArchiveDir)
	}

	service := app.New(cfg, db, rdb, m, searchSvc, archiveSvc, folders)

	if *runJob != "" {
		runOnce(ctx, service, *runJob)
		return
	}

	httpServer := app.NewHTTPServer(service)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.JobTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("sync service listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
}

// runOnce executes one job in the foreground and exits non-zero unless
// the run fully succeeded, so cron-style schedulers can alert on it.
func runOnce(ctx context.Context, service *app.Service, name string) {
	res, err := service.RunJob(ctx, name)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(report.Summary(res))
	for _, fail := range res.Failures {
		if fail.ID != "" {
			fmt.Printf("  %s [%s]: %s\n", fail.ID, fail.Kind, fail.Message)
		} else {
			fmt.Printf("  [%s]: %s\n", fail.Kind, fail.Message)
		}
	}
	switch res.Status {
	case engine.StatusSuccess:
		os.Exit(0)
	case engine.StatusPartialFailure:
		os.Exit(2)
	default:
		os.Exit(1)
	}
}
