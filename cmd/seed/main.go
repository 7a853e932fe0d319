// Command seed creates the default administrator and sample employees.
// Existing accounts are left untouched, so it is safe to run repeatedly.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"hrms-service/config"
	"hrms-service/db"
	"hrms-service/models"
	"hrms-service/services"
	"hrms-service/store"

	"github.com/joho/godotenv"
)

var (
	loadEnv    = godotenv.Load
	loadConfig = config.Load
	logFatal   = log.Fatal
)

var seedUsers = []services.RegisterInput{
	{Email: "admin@hrms.com", Password: "admin123", Name: "Admin User", Role: models.RoleAdmin, Department: "Management", Position: "System Administrator"},
	{Email: "john@hrms.com", Password: "john123", Name: "John Doe", Role: models.RoleEmployee, Department: "Engineering", Position: "Software Developer"},
	{Email: "jane@hrms.com", Password: "jane123", Name: "Jane Smith", Role: models.RoleEmployee, Department: "Marketing", Position: "Marketing Manager"},
}

func main() {
	if err := run(); err != nil {
		logFatal(err)
	}
}

func run() error {
	if err := loadEnv(); err != nil {
		log.Println("No .env file found; using system environment variables")
	}
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if cfg.DB.Engine != config.EnginePostgres {
		return fmt.Errorf("seeding requires DB_ENGINE=%s, got %s", config.EnginePostgres, cfg.DB.Engine)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	database := db.New(cfg.DB)
	conn, err := database.Connect(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.Migrate(ctx, conn); err != nil {
		return err
	}

	creds := services.NewCredentials(store.NewPostgresUserStore(conn), cfg.Auth.BcryptCost)
	created, err := seed(ctx, creds)
	if err != nil {
		return err
	}
	log.Printf("Seeding complete: created=%d skipped=%d", created, len(seedUsers)-created)
	return nil
}

func seed(ctx context.Context, creds *services.Credentials) (int, error) {
	created := 0
	for _, input := range seedUsers {
		user, err := creds.Register(ctx, input)
		switch {
		case errors.Is(err, services.ErrDuplicateEmail):
			log.Printf("seed user exists: email=%s", input.Email)
			continue
		case err != nil:
			return created, fmt.Errorf("seed %s: %w", input.Email, err)
		}
		created++
		log.Printf("seed user created: email=%s role=%s", user.Email, user.Role)
	}
	return created, nil
}
