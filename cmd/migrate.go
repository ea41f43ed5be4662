package cmd

import (
	"example.com/fossiltrack/config"
	"example.com/fossiltrack/internal/database"
	"example.com/fossiltrack/internal/models"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long:  `Create or update the database schema for all tracked entities`,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	dbConn, err := database.Connect(cfg.DB)
	if err != nil {
		return errors.Wrap(err, "failed to connect to database")
	}
	defer dbConn.Close()

	db, err := dbConn.DB()
	if err != nil {
		return err
	}

	if err := models.SetupModels(db); err != nil {
		return errors.Wrap(err, "failed to run migrations")
	}

	log.Info().Msg("Migrations applied")
	return nil
}
