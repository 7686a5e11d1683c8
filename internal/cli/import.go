package cli

import (
	"fmt"

	"github.com/ChlorophyllA/skin2/internal/daemon"
	"github.com/ChlorophyllA/skin2/internal/logger"
	"github.com/ChlorophyllA/skin2/pkg/hospital"
	"github.com/spf13/cobra"
)

var importDB string

var importCmd = &cobra.Command{
	Use:   "import-hospitals [file]",
	Short: "Import a hospital directory workbook or CSV",
	Long: `Import a hospital directory into the hospital database, replacing its
contents. Files ending in .xlsx or .xlsm are read as workbooks (first sheet),
anything else as CSV. Headers such as 省份, 城市 and 医院名称 are recognized;
the file defaults to data.hospital_source from the config.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importDB, "db", "", "hospital database (default data.hospital_db from the config)")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	source := cfg.Data.HospitalSource
	if len(args) == 1 {
		source = args[0]
	}
	if source == "" {
		return fmt.Errorf("no file given and data.hospital_source is not set")
	}

	dbPath := cfg.Data.HospitalDB
	if importDB != "" {
		dbPath = importDB
	}

	log, err := logger.New(logger.Config{Level: cfg.Logging.Level, Console: true, Pretty: cfg.Logging.Pretty})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()

	store, err := hospital.Open(dbPath, log.GetZerolog())
	if err != nil {
		return err
	}
	defer store.Close()

	if err := daemon.ImportHospitals(cmd.Context(), store, source); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %s into %s\n", source, dbPath)
	return nil
}
