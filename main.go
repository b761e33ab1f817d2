package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RubachokBoss/evalmate/internal/app"
	"github.com/RubachokBoss/evalmate/internal/config"
	"github.com/RubachokBoss/evalmate/internal/database"
	"github.com/RubachokBoss/evalmate/internal/service"
	"github.com/RubachokBoss/evalmate/pkg/logger"
	"github.com/rs/zerolog"
)

func main() {
	migrateCmd := flag.NewFlagSet("migrate", flag.ExitOnError)
	migrateDirection := migrateCmd.String("direction", "up", "direction of migration (up/down)")

	hashCmd := flag.NewFlagSet("hash-password", flag.ExitOnError)
	password := hashCmd.String("password", "", "password to hash for the auth registry")

	mode := "serve"
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			migrateCmd.Parse(os.Args[2:])
			runMigrations(*migrateDirection)
			return
		case "hash-password":
			hashCmd.Parse(os.Args[2:])
			runHashPassword(*password)
			return
		case "serve", "worker":
			mode = os.Args[1]
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q, expected serve, worker, migrate or hash-password\n", os.Args[1])
			os.Exit(2)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.NewWithConfig(cfg.Logging.Level, cfg.Logging.Pretty, cfg.Logging.NoColor).
		With().Str("mode", mode).Logger()

	run(mode, cfg, log)
}

func run(mode string, cfg *config.Config, log zerolog.Logger) {
	var (
		application *app.App
		err         error
	)
	if mode == "worker" {
		application, err = app.NewWorker(cfg, log)
	} else {
		application, err = app.New(cfg, log)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	go func() {
		if err := application.Run(); err != nil {
			log.Fatal().Err(err).Msg("Failed to run application")
		}
	}()

	log.Info().Msgf("EvalMate started on %s", cfg.Server.Address)

	<-ctx.Done()

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown gracefully")
	}

	log.Info().Msg("EvalMate stopped")
}

func runMigrations(direction string) {
	log := logger.New()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	migrator, err := database.NewMigrator(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create migrator")
	}

	switch direction {
	case "up":
		if err := migrator.Up(); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
		log.Info().Msg("Migrations applied successfully")
	case "down":
		if err := migrator.Down(); err != nil {
			log.Fatal().Err(err).Msg("Failed to rollback migrations")
		}
		log.Info().Msg("Migrations rolled back successfully")
	default:
		log.Fatal().Msg("Invalid migration direction. Use 'up' or 'down'")
	}
}

// runHashPassword prints a bcrypt hash for auth.teachers / auth.students.
func runHashPassword(password string) {
	log := logger.New()
	hash, err := service.HashPassword(password)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}
	fmt.Println(hash)
}
