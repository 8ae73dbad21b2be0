package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"realtors/api"
	"realtors/auth"
	"realtors/config"
	"realtors/logging"
	"realtors/scheduler"
	"realtors/services"
	"realtors/storage"
	"realtors/workers"
)

var (
	seedFile   = flag.String("seed", "", "Import properties from a YAML seed file and exit")
	exportFile = flag.String("export", "", "Export all properties to an XLSX file and exit")
	hashPass   = flag.String("hash-password", "", "Print a bcrypt hash for ADMIN_PASSWORD_HASH and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if *hashPass != "" {
		hash, err := auth.HashPassword(*hashPass)
		if err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogFile)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
		gin.DefaultWriter = logFile.Output()
		gin.DefaultErrorWriter = logFile.Output()
	}

	log.Println("Starting realtors...")

	ctx := context.Background()

	tree, closeTree, err := openTree(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open listing store: %v", err)
	}
	defer closeTree()
	log.Printf("Listing store: %s", cfg.Store.Backend)

	blobs, err := openBlobs(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open blob store: %v", err)
	}

	// SQLite for operational data (sessions, audit log)
	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	log.Printf("SQLite database: %s", cfg.DBPath)

	var sink workers.AuditSink = sqliteStore
	var auditReader api.AuditReader = sqliteStore
	if cfg.Audit.Sink == "tree" {
		sink = workers.NewTreeAuditSink(tree)
		auditReader = nil
	}
	auditWorker := workers.NewAuditWorker(sink, cfg.Audit.QueueSize)

	props := services.NewPropertyService(tree, blobs, auditWorker, cfg.Store.Timeout)
	media := services.NewMediaService(blobs)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	auditDone := make(chan struct{})
	go func() {
		auditWorker.Run(ctx)
		close(auditDone)
	}()

	// Handle one-shot commands
	if *seedFile != "" {
		log.Printf("Importing %s...", *seedFile)
		stats, err := services.NewImporter(props, media).ImportFile(ctx, *seedFile)
		cancel()
		<-auditDone
		if err != nil {
			log.Fatalf("Import failed: %v", err)
		}
		log.Printf("Import complete: %d created, %d skipped, %d images", stats.Created, stats.Skipped, stats.Images)
		return
	}
	if *exportFile != "" {
		if err := exportTo(ctx, props, *exportFile); err != nil {
			log.Fatalf("Export failed: %v", err)
		}
		log.Printf("Exported properties to %s", *exportFile)
		return
	}

	// Daemon mode
	catalog := services.NewCatalog(props)
	props.OnChange(catalog.Invalidate)
	if cfg.Redis.Addr != "" {
		cache, err := storage.NewRedisCache(ctx, storage.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Printf("Warning: search cache disabled: %v", err)
		} else {
			defer cache.Close()
			catalog.WithCache(cache, cfg.Redis.CacheTTL)
			log.Printf("Search cache: %s (ttl %s)", cfg.Redis.Addr, cfg.Redis.CacheTTL)
		}
	}
	if err := catalog.Refresh(ctx); err != nil {
		log.Printf("Warning: initial catalog load failed, will retry on first search: %v", err)
		catalog.Invalidate()
	}

	sched := scheduler.New(cfg.Scheduler, catalog)
	if cfg.Audit.Sink != "tree" {
		sched.SetPruner(sqliteStore)
	}
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	authenticator := auth.NewAuthenticator(adminVerifier(cfg.Auth), sqliteStore, sessionSecret(cfg.Auth))

	gin.SetMode(cfg.Server.GinMode)
	router := api.NewRouter(cfg.Server, &api.Handler{
		Props:   props,
		Catalog: catalog,
		Auth:    authenticator,
		Audit:   auditReader,
	})
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("Listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: server shutdown: %v", err)
	}
	sched.Stop()
	cancel()
	<-auditDone
	if n := auditWorker.Dropped(); n > 0 {
		log.Printf("Warning: %d audit entries were dropped", n)
	}
	log.Println("Goodbye!")
}

func openTree(ctx context.Context, cfg *config.Config) (storage.TreeStore, func(), error) {
	switch cfg.Store.Backend {
	case "firebase":
		tree, err := storage.NewFirebaseTree(ctx, storage.FirebaseConfig{
			DatabaseURL:     cfg.Firebase.DatabaseURL,
			ProjectID:       cfg.Firebase.ProjectID,
			CredentialsJSON: cfg.Firebase.CredentialsJSON,
			CredentialsFile: cfg.Firebase.CredentialsFile,
		})
		if err != nil {
			return nil, nil, err
		}
		return tree, func() {}, nil
	case "postgres":
		if cfg.Postgres.DBURL == "" {
			return nil, nil, errors.New("DATABASE_URL is required for the postgres backend")
		}
		pg, err := storage.NewPostgresStore(ctx, cfg.Postgres.DBURL)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.Postgres.DBURL))
		return pg, pg.Close, nil
	case "memory":
		log.Println("Warning: in-memory listing store, data is lost on exit")
		return storage.NewMemoryTree(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.Store.Backend)
	}
}

func openBlobs(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	if !cfg.S3.Enabled() {
		log.Println("Warning: S3 not configured, images are kept in memory")
		return storage.NewMemoryBlobStore("http://localhost" + cfg.Server.Addr + "/media"), nil
	}
	blobs, err := storage.NewS3BlobStore(ctx, storage.S3Config{
		Bucket:          cfg.S3.Bucket,
		Region:          cfg.S3.Region,
		Endpoint:        cfg.S3.Endpoint,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		PublicBaseURL:   cfg.S3.PublicBaseURL,
	})
	if err != nil {
		return nil, err
	}
	log.Printf("S3 bucket: %s", cfg.S3.Bucket)
	return blobs, nil
}

func adminVerifier(cfg config.AuthConfig) auth.CredentialVerifier {
	hash := cfg.AdminPasswordHash
	if hash == "" && cfg.AdminPassword != "" {
		log.Println("Warning: ADMIN_PASSWORD is set in plain text, prefer ADMIN_PASSWORD_HASH")
		h, err := auth.HashPassword(cfg.AdminPassword)
		if err != nil {
			log.Fatalf("Failed to hash admin password: %v", err)
		}
		hash = h
	}
	if cfg.AdminEmail == "" || hash == "" {
		log.Println("Warning: no admin account configured, admin login is disabled")
		return auth.DenyAll{}
	}
	creds, err := auth.NewAdminCredentials(cfg.AdminEmail, hash)
	if err != nil {
		log.Fatalf("Invalid admin credentials: %v", err)
	}
	return creds
}

func sessionSecret(cfg config.AuthConfig) []byte {
	if cfg.SessionSecret != "" {
		return []byte(cfg.SessionSecret)
	}
	log.Println("Warning: SESSION_SECRET not set, sessions will not survive a restart")
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		log.Fatalf("Failed to generate session secret: %v", err)
	}
	return secret
}

func exportTo(ctx context.Context, props *services.PropertyService, path string) error {
	list, err := props.ListAll(ctx)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := services.ExportXLSX(f, list); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	// Simple mask - find :// and mask until @
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	// Find : after user
	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
