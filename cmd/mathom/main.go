package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dukerupert/mathom/internal/backup"
	"github.com/dukerupert/mathom/internal/database"
	"github.com/dukerupert/mathom/internal/identity"
	"github.com/dukerupert/mathom/internal/logging"
	"github.com/dukerupert/mathom/internal/quote"
	"github.com/dukerupert/mathom/internal/server"
	"github.com/dukerupert/mathom/internal/snapshot"
)

func main() {
	// A missing .env is fine; real deployments set the environment directly.
	godotenv.Load()

	env := os.Getenv("MATHOM_ENV")
	logger := logging.Setup(os.Getenv("MATHOM_LOG_LEVEL"), env)

	port := os.Getenv("MATHOM_PORT")
	if port == "" {
		port = "8080"
	}
	dbPath := os.Getenv("MATHOM_DB_PATH")
	if dbPath == "" {
		dbPath = "mathom.db"
	}

	identityCfg := identity.Config{
		Secret:        os.Getenv("MATHOM_AUTH_SECRET"),
		AllowedEmails: splitList(os.Getenv("MATHOM_ALLOWED_EMAILS")),
		DevBypass:     os.Getenv("MATHOM_AUTH_BYPASS") == "true",
	}
	if identityCfg.DevBypass && strings.EqualFold(env, "production") {
		log.Fatal("MATHOM_AUTH_BYPASS must not be enabled in production")
	}

	backupCfg := backup.Config{
		Endpoint:      os.Getenv("MATHOM_BACKUP_S3_ENDPOINT"),
		Bucket:        os.Getenv("MATHOM_BACKUP_S3_BUCKET"),
		Region:        os.Getenv("MATHOM_BACKUP_S3_REGION"),
		AccessKey:     os.Getenv("MATHOM_BACKUP_S3_ACCESS_KEY"),
		SecretKey:     os.Getenv("MATHOM_BACKUP_S3_SECRET_KEY"),
		Prefix:        os.Getenv("MATHOM_BACKUP_S3_PREFIX"),
		Passphrase:    os.Getenv("MATHOM_BACKUP_PASSPHRASE"),
		DBPath:        dbPath,
		Hour:          envInt("MATHOM_BACKUP_HOUR", 3),
		RetentionDays: envInt("MATHOM_BACKUP_RETENTION_DAYS", 30),
	}

	// Disaster recovery: pull a named backup into place before the database
	// opens. Refuses to clobber an existing file.
	if key := os.Getenv("MATHOM_BACKUP_RESTORE_KEY"); key != "" {
		if err := backup.Restore(context.Background(), backupCfg, key, logger); err != nil {
			log.Fatalf("failed to restore backup: %v", err)
		}
	}

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	srv := server.New(db,
		server.Config{
			Env:        env,
			CronSecret: os.Getenv("MATHOM_CRON_SECRET"),
		},
		identityCfg,
		quote.ClientConfig{
			BaseURL: os.Getenv("MATHOM_QUOTE_BASE_URL"),
			APIKey:  os.Getenv("MATHOM_QUOTE_API_KEY"),
		},
		logger)

	backupMgr := backup.NewManager(backupCfg, db, logger)
	backupMgr.Start(context.Background())

	var sched *snapshot.Scheduler
	if raw := os.Getenv("MATHOM_SNAPSHOT_INTERVAL"); raw != "" {
		interval, err := time.ParseDuration(raw)
		if err != nil || interval <= 0 {
			log.Fatalf("invalid MATHOM_SNAPSHOT_INTERVAL %q", raw)
		}
		sched = snapshot.NewScheduler(srv.SnapshotRunner(), interval, logger)
		sched.Start(context.Background())
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			srv.RateLimiter().Cleanup()
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("Mathom running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
	if sched != nil {
		sched.Stop()
	}
	backupMgr.Stop()
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Fatalf("invalid %s %q", name, raw)
	}
	return n
}
