package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"hrms-service/config"
	"hrms-service/db"
	"hrms-service/handlers"
	"hrms-service/middleware"
	"hrms-service/routes"
	"hrms-service/secretmanager"
	"hrms-service/services"
	"hrms-service/store"
	"hrms-service/telemetry"

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const shutdownTimeout = 10 * time.Second

var (
	loadEnv         = godotenv.Load
	loadConfig      = config.Load
	getSecretMap    = secretmanager.GetSecretMap
	initTelemetry   = telemetry.Init
	connectPostgres = openPostgres
	newValkeyStore  = store.NewValkeyStore
	serve           = serveHTTP
	logFatal        = log.Fatal
)

// postgresSecretKeys maps the RDS secret layout onto DB_* variables.
var postgresSecretKeys = map[string]string{
	"username":             "DB_USERNAME",
	"password":             "DB_PASSWORD",
	"host":                 "DB_HOST",
	"port":                 "DB_PORT",
	"dbname":               "DB_NAME",
	"dbInstanceIdentifier": "DB_INSTANCE_IDENTIFIER",
}

func setEnvFromMap(values map[string]string) error {
	for key, value := range values {
		if key == "" {
			return errors.New("empty environment key in secret")
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

func validatePostgresSecret(values map[string]string) error {
	var missing []string
	for _, key := range []string{"username", "password", "host"} {
		if values[key] == "" {
			missing = append(missing, key)
		}
	}
	if values["dbname"] == "" && values["dbInstanceIdentifier"] == "" {
		missing = append(missing, "dbname")
	}
	if len(missing) > 0 {
		return fmt.Errorf("postgres secret missing fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

func loadProdSecrets() error {
	jwtSecrets, err := getSecretMap("prod/jwt")
	if err != nil {
		return fmt.Errorf("error retrieving JWT secret: %w", err)
	}
	if err := setEnvFromMap(jwtSecrets); err != nil {
		return err
	}

	pgSecrets, err := getSecretMap("prod/postgres")
	if err != nil {
		return fmt.Errorf("error retrieving Postgres secret: %w", err)
	}
	if err := validatePostgresSecret(pgSecrets); err != nil {
		return err
	}
	env := make(map[string]string, len(postgresSecretKeys))
	for secretKey, envKey := range postgresSecretKeys {
		if value, ok := pgSecrets[secretKey]; ok {
			env[envKey] = value
		}
	}
	if err := setEnvFromMap(env); err != nil {
		return err
	}

	valkeySecrets, err := getSecretMap("prod/valkey")
	if err != nil {
		log.Printf("Valkey secret not loaded, token revocation stays disabled: %v", err)
		return nil
	}
	return setEnvFromMap(valkeySecrets)
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, func() error, error) {
	database := db.New(cfg)
	conn, err := database.Connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	return conn, database.Close, nil
}

type repositories struct {
	users   store.UserRepository
	records store.AttendanceRepository
	close   func() error
}

func openRepositories(ctx context.Context, cfg config.DatabaseConfig) (repositories, error) {
	if cfg.Engine == config.EngineMemory {
		log.Println("Using in-memory storage; data is lost on restart")
		users := store.NewMemoryUserStore()
		return repositories{
			users:   users,
			records: store.NewMemoryAttendanceStore(users),
			close:   func() error { return nil },
		}, nil
	}

	conn, closeDB, err := connectPostgres(ctx, cfg)
	if err != nil {
		return repositories{}, fmt.Errorf("database connection error: %w", err)
	}
	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, conn); err != nil {
			_ = closeDB()
			return repositories{}, err
		}
	}
	return repositories{
		users:   store.NewPostgresUserStore(conn),
		records: store.NewPostgresAttendanceStore(conn),
		close:   closeDB,
	}, nil
}

// buildHandler wires storage, services and routes into the server handler.
// The returned cleanup releases the database and Valkey connections.
func buildHandler(ctx context.Context, cfg config.Config) (http.Handler, func(), error) {
	repos, err := openRepositories(ctx, cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := repos.close(); err != nil {
			log.Printf("database close error: %v", err)
		}
	}

	creds := services.NewCredentials(repos.users, cfg.Auth.BcryptCost)
	var revocations store.TokenRevocations
	if cfg.Valkey.Addr != "" {
		valkeyStore, err := newValkeyStore(cfg.Valkey)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("valkey connection error: %w", err)
		}
		revocations = valkeyStore
		creds.WithRevocations(revocations, cfg.Auth.TokenTTL)
		closeDB := cleanup
		cleanup = func() {
			_ = valkeyStore.Close()
			closeDB()
		}
		log.Printf("Token revocation enabled: valkey=%s", cfg.Valkey.Addr)
	}

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	router := routes.SetupRoutes(cfg.Auth, revocations, routes.Handlers{
		Auth:       handlers.NewAuthHandler(cfg.Auth, creds).WithMetrics(metrics),
		Employees:  handlers.NewEmployeeHandler(creds),
		Attendance: handlers.NewAttendanceHandler(services.NewLedger(repos.records), services.NewReports(repos.records)).WithMetrics(metrics),
	})

	corsOpts := []gorillaHandlers.CORSOption{
		gorillaHandlers.AllowedOrigins(cfg.CORS.AllowedOrigins),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Requested-With"}),
		gorillaHandlers.ExposedHeaders([]string{"Content-Disposition"}),
		gorillaHandlers.AllowCredentials(),
	}
	handler := gorillaHandlers.CORS(corsOpts...)(middleware.RequestLogger(router))
	return otelhttp.NewHandler(handler, cfg.Telemetry.ServiceName), cleanup, nil
}

func serveHTTP(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logFatal(err)
	}
}

func run(ctx context.Context) error {
	if err := loadEnv(); err != nil {
		log.Println("No .env file found; using system environment variables")
	}
	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = "dev"
	}
	log.Println("Environment:", appEnv)

	if appEnv == "prod" {
		if err := loadProdSecrets(); err != nil {
			return err
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	shutdownTelemetry, err := initTelemetry(ctx, cfg.AppEnv, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("telemetry error: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			log.Printf("telemetry shutdown error: %v", err)
		}
	}()

	handler, cleanup, err := buildHandler(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("Starting server on port %s in %s environment (CORS: %s, storage: %s)",
		cfg.Port, cfg.AppEnv, strings.Join(cfg.CORS.AllowedOrigins, ","), cfg.DB.Engine)
	return serve(ctx, server)
}
