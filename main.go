package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"thermoband-cloud/internal/audit"
	"thermoband-cloud/internal/auth"
	bindingapp "thermoband-cloud/internal/binding/application"
	bindingrepo "thermoband-cloud/internal/binding/infrastructure/postgres"
	bindinghttp "thermoband-cloud/internal/binding/interfaces/http"
	"thermoband-cloud/internal/observability/metrics"
	patientsapp "thermoband-cloud/internal/patients/application"
	patientsrepo "thermoband-cloud/internal/patients/infrastructure/postgres"
	patientshttp "thermoband-cloud/internal/patients/interfaces/http"
	"thermoband-cloud/internal/reset"
	telemetryapp "thermoband-cloud/internal/telemetry/application"
	telemetryrepo "thermoband-cloud/internal/telemetry/infrastructure/postgres"
	telemetryhttp "thermoband-cloud/internal/telemetry/interfaces/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	appCfg, err := telemetryapp.LoadConfig()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	bindingRepo := bindingrepo.NewBindingRepository(db)
	patientRepo := patientsrepo.NewPatientRepository(db)
	readingRepo := telemetryrepo.NewReadingRepository(db)

	bindingService, err := bindingapp.NewService(bindingRepo, patientRepo)
	if err != nil {
		logger.Fatalf("binding service error: %v", err)
	}
	patientService, err := patientsapp.NewService(patientRepo, readingRepo, bindingRepo, appCfg.ReadingsPageLimit)
	if err != nil {
		logger.Fatalf("patient service error: %v", err)
	}

	var resetNotifier reset.Notifier
	if cfg.ResetWebhookURL != "" {
		resetNotifier = reset.NewWebhookNotifier(cfg.ResetWebhookURL)
	}
	resetService, err := reset.NewService(bindingRepo, readingRepo, patientRepo, resetNotifier, logger)
	if err != nil {
		logger.Fatalf("reset service error: %v", err)
	}
	resetWorker, err := reset.NewWorker(resetService, appCfg.ResetQueueSize, logger)
	if err != nil {
		logger.Fatalf("reset worker error: %v", err)
	}
	go resetWorker.Start(context.Background())

	gate := telemetryapp.NewGate(appCfg.ThrottleWindow())
	ingestService, err := telemetryapp.NewIngestService(gate, bindingRepo, readingRepo, resetWorker, logger)
	if err != nil {
		logger.Fatalf("ingest service error: %v", err)
	}

	ingestHandler, err := telemetryhttp.NewIngestHandler(ingestService)
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}
	registerHandler, err := telemetryhttp.NewRegisterHandler(bindingService)
	if err != nil {
		logger.Fatalf("register handler error: %v", err)
	}
	deviceHandler, err := bindinghttp.NewHandler(bindingService, auditRepo)
	if err != nil {
		logger.Fatalf("device handler error: %v", err)
	}
	patientHandler, err := patientshttp.NewHandler(patientService, bindingService, auditRepo)
	if err != nil {
		logger.Fatalf("patient handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/ingest/"})
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)
	deviceAuth := auth.NewDeviceKeyMiddleware([]byte(cfg.DeviceAPIKey))

	mux := http.NewServeMux()
	mux.Handle("/ingest/readings", deviceAuth.Wrap(ingestHandler))
	mux.Handle("/ingest/register", deviceAuth.Wrap(registerHandler))
	mux.Handle("/api/v1/devices/", deviceHandler)
	mux.Handle("/api/v1/patients", patientHandler)
	mux.Handle("/api/v1/patients/", patientHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL     string
	HTTPAddr        string
	JWTSecret       string
	DeviceAPIKey    string
	ResetWebhookURL string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:     getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:        getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:       getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		DeviceAPIKey:    getenvDefault("DEVICE_API_KEY", ""),
		ResetWebhookURL: getenvDefault("RESET_WEBHOOK_URL", ""),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	if cfg.DeviceAPIKey == "" {
		log.Fatal("DEVICE_API_KEY is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
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
