package main

import (
	"flag"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/gmeppo/eppo-proposals/internal/db"
	"github.com/gmeppo/eppo-proposals/internal/obs"
)

func main() {
	down := flag.Int("down", 0, "roll back this many migrations instead of migrating up")
	flag.Parse()

	_ = godotenv.Load()
	logger := obs.NewLogger(os.Getenv("OBS_LOG_FORMAT"), os.Getenv("OBS_LOG_LEVEL"))

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}
	m, err := db.New(dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise migrations")
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Error().AnErr("source", srcErr).AnErr("database", dbErr).Msg("close migrate")
		}
	}()

	if *down > 0 {
		if err := db.Down(m, *down); err != nil {
			logger.Fatal().Err(err).Msg("roll back migrations")
		}
		logger.Info().Int("steps", *down).Msg("migrations rolled back")
		return
	}
	version, err := db.Up(m)
	if err != nil {
		logger.Fatal().Err(err).Msg("apply migrations")
	}
	logger.Info().Uint("version", version).Msg("migrations applied")
}
