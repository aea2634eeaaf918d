package main

import (
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"whatsapp-bulk/internal/config"
	"whatsapp-bulk/internal/database"
	"whatsapp-bulk/internal/logging"
	"whatsapp-bulk/internal/models"
)

const batchSize = 500

// Copies delivery history from the local sqlite database into postgres.
// Rows that already exist in postgres are left alone, so the copy can be
// repeated.
func main() {
	cfg := config.LoadConfig()
	log := logging.Setup(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	sqliteDB, err := database.OpenSQLite(cfg.DBPath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open sqlite")
	}
	log.Info().Str("path", cfg.DBPath).Msg("connected to sqlite")

	cfg.DBDriver = "postgres"
	pgDB, err := database.InitGorm(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	log.Info().Msg("starting history migration")

	var runs []models.DeliveryRun
	copyTable(sqliteDB, pgDB, "delivery_runs", &runs, log)
	var outcomes []models.DeliveryOutcome
	copyTable(sqliteDB, pgDB, "delivery_outcomes", &outcomes, log)
	var failures []models.DeliveryFailure
	copyTable(sqliteDB, pgDB, "delivery_failures", &failures, log)

	log.Info().Msg("migration completed, run sync_sequences next")
}

// copyTable reads every row of a table into dest (a pointer to a slice) and
// inserts it into pgDB in batches.
func copyTable[T any](src, dst *gorm.DB, table string, dest *[]T, log zerolog.Logger) {
	log.Info().Str("table", table).Msg("migrating table")

	if err := src.Find(dest).Error; err != nil {
		log.Error().Err(err).Str("table", table).Msg("error reading from sqlite")
		return
	}
	if len(*dest) == 0 {
		log.Info().Str("table", table).Msg("nothing to migrate")
		return
	}

	err := dst.Transaction(func(tx *gorm.DB) error {
		return tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{DoNothing: true}).
			CreateInBatches(dest, batchSize).Error
	})
	if err != nil {
		log.Error().Err(err).Str("table", table).Msg("error writing to postgres")
		return
	}
	log.Info().Str("table", table).Int("rows", len(*dest)).Msg("migrated table")
}
