// toydb - a small relational database engine with a SQL shell.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wcygan/sql-database/internal/cli"
	"github.com/wcygan/sql-database/internal/config"
	"github.com/wcygan/sql-database/internal/logger"
	"github.com/wcygan/sql-database/pkg/database"
)

var (
	version = "0.1.0"

	cfgFile string
	dataDir string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "toydb",
		Short: "toydb - a small crash-recoverable SQL engine",
		Long: `toydb executes a SQL subset against a crash-recoverable on-disk store:
slotted heap pages behind an LRU buffer pool, with a write-ahead log for
durability.

Run without arguments to open the interactive shell.`,
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			db, err := openDatabase(cfg, log)
			if err != nil {
				return err
			}
			defer db.Close()

			return cli.NewREPL(db, log).Run()
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (overrides config)")

	execCmd := &cobra.Command{
		Use:   "exec <statement>",
		Short: "Execute a single SQL statement and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			db, err := openDatabase(cfg, log)
			if err != nil {
				return err
			}
			defer db.Close()

			result, err := db.Execute(args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", database.Classify(err), err)
			}
			switch result.Kind {
			case database.KindRows:
				for _, row := range result.Rows {
					for i, v := range row.Values {
						if i > 0 {
							fmt.Print("|")
						}
						fmt.Print(v)
					}
					fmt.Println()
				}
			case database.KindCount:
				fmt.Printf("%d rows affected\n", result.Affected)
			case database.KindEmpty:
				fmt.Println("OK")
			}
			return nil
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}

	rootCmd.AddCommand(execCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}
	return cfg, nil
}

func setup() (*config.Config, *logger.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func openDatabase(cfg *config.Config, log *logger.Logger) (*database.Database, error) {
	return database.Open(database.Options{
		DataDir:         cfg.Storage.DataDir,
		BufferPoolPages: cfg.Storage.BufferPoolPages,
		WALFileName:     cfg.Storage.WALFile,
		CatalogFileName: cfg.Storage.CatalogFile,
		Logger:          log.SugaredLogger,
	})
}
