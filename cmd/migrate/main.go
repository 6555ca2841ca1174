package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"coinpulse/internal/config"
	"coinpulse/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"
)

const usage = "usage: go run ./cmd/migrate [up|down|version] [steps]"

var (
	loadEnvFunc    = godotenv.Load
	loadConfigFunc = config.Load
	openDBFunc     = func(ctx context.Context, dsn string) (repository.MigrationDB, func(), error) {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		return pool, pool.Close, nil
	}
)

type command struct {
	name  string
	steps int
}

func parseCommand(args []string) (command, error) {
	if len(args) == 0 {
		return command{}, fmt.Errorf(usage)
	}
	cmd := command{name: args[0], steps: 1}
	switch cmd.name {
	case "up", "version":
		return cmd, nil
	case "down":
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return command{}, fmt.Errorf("invalid down steps: %q", args[1])
			}
			cmd.steps = n
		}
		return cmd, nil
	default:
		return command{}, fmt.Errorf("unknown command %q. %s", cmd.name, usage)
	}
}

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string) error {
	loadEnvFunc()

	cmd, err := parseCommand(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfigFunc()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dsn := strings.TrimSpace(cfg.DatabaseURL)
	if dsn == "" {
		return fmt.Errorf("DATABASE_URL is required to migrate the observation mirror")
	}

	db, closeDB, err := openDBFunc(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer closeDB()

	migrator, err := repository.NewMigrator(db, otel.Tracer("coinpulse/migrate"))
	if err != nil {
		return err
	}

	switch cmd.name {
	case "up":
		applied, err := migrator.Up(ctx)
		if err != nil {
			return fmt.Errorf("apply migrations up: %w", err)
		}
		log.Printf("migrations up complete (%d applied)", applied)
	case "down":
		rolledBack, err := migrator.Down(ctx, cmd.steps)
		if err != nil {
			return fmt.Errorf("apply migrations down: %w", err)
		}
		log.Printf("migrations down complete (%d rolled back)", rolledBack)
	case "version":
		version, name, err := migrator.Version(ctx)
		if err != nil {
			return fmt.Errorf("read current version: %w", err)
		}
		if version == 0 {
			log.Println("no migrations applied")
			return nil
		}
		log.Printf("current version: %d (%s)", version, name)
	}
	return nil
}
