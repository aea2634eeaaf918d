package main

import (
	"whatsapp-bulk/internal/config"
	"whatsapp-bulk/internal/database"
	"whatsapp-bulk/internal/logging"
)

// Resets the postgres serial sequences of the history tables after rows were
// copied in with explicit IDs.
func main() {
	cfg := config.LoadConfig()
	log := logging.Setup(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	cfg.DBDriver = "postgres"
	db, err := database.InitGorm(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	tables := []string{
		"delivery_outcomes",
		"delivery_failures",
	}

	log.Info().Msg("syncing postgres sequences")

	for _, table := range tables {
		query := "SELECT setval(pg_get_serial_sequence('" + table + "', 'id'), coalesce(max(id), 0) + 1, false) FROM " + table
		if err := db.Exec(query).Error; err != nil {
			log.Error().Err(err).Str("table", table).Msg("error syncing sequence")
		} else {
			log.Info().Str("table", table).Msg("synced sequence")
		}
	}

	log.Info().Msg("done")
}
