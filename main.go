package main

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	accountapp "wecar-diagnosis/internal/accounts/application"
	accountrepo "wecar-diagnosis/internal/accounts/infrastructure/postgres"
	accounthttp "wecar-diagnosis/internal/accounts/interfaces/http"
	"wecar-diagnosis/internal/audit"
	"wecar-diagnosis/internal/auth"
	diagapp "wecar-diagnosis/internal/diagnosis/application"
	diagrepo "wecar-diagnosis/internal/diagnosis/infrastructure/postgres"
	diaghttp "wecar-diagnosis/internal/diagnosis/interfaces/http"
	"wecar-diagnosis/internal/mailer"
	"wecar-diagnosis/internal/observability/metrics"
	settlementapp "wecar-diagnosis/internal/settlement/application"
	settlementrepo "wecar-diagnosis/internal/settlement/infrastructure/postgres"
	settlementinterfaces "wecar-diagnosis/internal/settlement/interfaces"
	"wecar-diagnosis/internal/translate"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}
	if cfg.MigrationURL != "" {
		runDBMigration(cfg.MigrationURL, cfg.DatabaseURL, logger)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	userRepo := accountrepo.NewUserRepository(db)
	accountService, err := accountapp.NewService(userRepo)
	if err != nil {
		logger.Fatalf("account service error: %v", err)
	}
	accountHandler, err := accounthttp.NewHandler(accountService, auditRepo, cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		logger.Fatalf("account handler error: %v", err)
	}

	var translator diagapp.Translator
	if cfg.TranslateURL != "" {
		translator = translate.NewClient(cfg.TranslateURL, cfg.TranslateAPIKey, cfg.TranslateTimeout)
	}

	var resultMailer diagapp.Mailer
	if cfg.SMTPHost != "" {
		resultMailer, err = mailer.NewSMTPMailer(mailer.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		if err != nil {
			logger.Fatalf("mailer error: %v", err)
		}
	}

	requestRepo := diagrepo.NewRequestRepository(db)
	requestService, err := diagapp.NewRequestService(requestRepo, userRepo, translator, resultMailer, diagapp.SystemClock{}, logger)
	if err != nil {
		logger.Fatalf("request service error: %v", err)
	}
	requestHandler, err := diaghttp.NewHandler(requestService, auditRepo)
	if err != nil {
		logger.Fatalf("request handler error: %v", err)
	}

	settlementRepo, err := settlementrepo.NewRepository(db)
	if err != nil {
		logger.Fatalf("settlement repo error: %v", err)
	}
	settlementService, err := settlementapp.NewService(settlementRepo, logger)
	if err != nil {
		logger.Fatalf("settlement service error: %v", err)
	}
	settlementHandler, err := settlementinterfaces.NewHandler(settlementService, auditRepo)
	if err != nil {
		logger.Fatalf("settlement handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy(
		[]string{"/healthz", "/metrics", "/api/v1/auth/register", "/api/v1/auth/login"},
		nil,
	)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/auth/register", accountHandler)
	mux.Handle("/api/v1/auth/login", accountHandler)
	mux.Handle("/api/v1/users", accountHandler)
	mux.Handle("/api/v1/users/", accountHandler)
	mux.Handle("/api/v1/requests", requestHandler)
	mux.Handle("/api/v1/requests/", requestHandler)
	mux.Handle("/api/v1/settlements", settlementHandler)
	mux.Handle("/api/v1/settlements/", settlementHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

func runDBMigration(migrationURL, dbSource string, logger *log.Logger) {
	migration, err := migrate.New(migrationURL, dbSource)
	if err != nil {
		logger.Fatalf("migration init error: %v", err)
	}
	if err := migration.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatalf("migration up error: %v", err)
	}
	logger.Println("db migrated successfully")
}

type config struct {
	DatabaseURL      string        `yaml:"database_url"`
	MigrationURL     string        `yaml:"migration_url"`
	HTTPAddr         string        `yaml:"http_addr"`
	JWTSecret        string        `yaml:"jwt_secret"`
	JWTTTL           time.Duration `yaml:"jwt_ttl"`
	TranslateURL     string        `yaml:"translate_url"`
	TranslateAPIKey  string        `yaml:"translate_api_key"`
	TranslateTimeout time.Duration `yaml:"translate_timeout"`
	SMTPHost         string        `yaml:"smtp_host"`
	SMTPPort         int           `yaml:"smtp_port"`
	SMTPUsername     string        `yaml:"smtp_username"`
	SMTPPassword     string        `yaml:"smtp_password"`
	SMTPFrom         string        `yaml:"smtp_from"`
}

// loadConfig reads an optional YAML file, then lets environment
// variables override it.
func loadConfig() config {
	var cfg config
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("config file read error: %v", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			log.Fatalf("config file parse error: %v", err)
		}
	}

	cfg.DatabaseURL = getenvDefault("DATABASE_URL", cfg.DatabaseURL)
	cfg.MigrationURL = getenvDefault("MIGRATION_URL", cfg.MigrationURL)
	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", defaultString(cfg.HTTPAddr, ":8080"))
	cfg.JWTSecret = getenvDefault("AUTH_JWT_SECRET", cfg.JWTSecret)
	cfg.JWTTTL = getenvDuration("AUTH_JWT_TTL", defaultDuration(cfg.JWTTTL, 12*time.Hour))
	cfg.TranslateURL = getenvDefault("TRANSLATE_URL", cfg.TranslateURL)
	cfg.TranslateAPIKey = getenvDefault("TRANSLATE_API_KEY", cfg.TranslateAPIKey)
	cfg.TranslateTimeout = getenvDuration("TRANSLATE_TIMEOUT", defaultDuration(cfg.TranslateTimeout, 10*time.Second))
	cfg.SMTPHost = getenvDefault("SMTP_HOST", cfg.SMTPHost)
	cfg.SMTPPort = getenvIntDefault("SMTP_PORT", defaultInt(cfg.SMTPPort, 587))
	cfg.SMTPUsername = getenvDefault("SMTP_USERNAME", cfg.SMTPUsername)
	cfg.SMTPPassword = getenvDefault("SMTP_PASSWORD", cfg.SMTPPassword)
	cfg.SMTPFrom = getenvDefault("SMTP_FROM", cfg.SMTPFrom)

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func defaultInt(value, fallback int) int {
	if value == 0 {
		return fallback
	}
	return value
}

func defaultDuration(value, fallback time.Duration) time.Duration {
	if value == 0 {
		return fallback
	}
	return value
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
