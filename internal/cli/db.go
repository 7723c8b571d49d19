package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fleet-ai/swe-task-generator/internal/db"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database management",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, cleanup, err := openDatabase()
		if err != nil {
			return err
		}
		defer cleanup()
		if err := database.Migrate(); err != nil {
			return err
		}
		cmd.Println("Schema up to date.")
		return nil
	},
}

var dbResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the database (destructive!)",
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return fmt.Errorf("refusing to reset without --yes")
		}
		database, cleanup, err := openDatabase()
		if err != nil {
			return err
		}
		defer cleanup()
		if err := database.Reset(); err != nil {
			return err
		}
		cmd.Println("Database reset.")
		return nil
	},
}

// openDatabase opens the configured store and returns a cleanup func.
func openDatabase() (*db.DB, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	dsn := cfg.Generator.StoreDSN
	if dsn == "" {
		dsn, err = db.DefaultDSN()
		if err != nil {
			return nil, nil, err
		}
	}
	database, err := db.Open(dsn)
	if err != nil {
		return nil, nil, err
	}
	return database, func() { database.Close() }, nil
}

func init() {
	dbResetCmd.Flags().Bool("yes", false, "confirm the destructive reset")
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbResetCmd)
}
