// Command objectctl performs administrative tasks against the objectd metadata store
// and data directory without going through HTTP.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/abduss/objectd/internal/app"
	"github.com/abduss/objectd/internal/config"
	"github.com/abduss/objectd/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var ctl struct {
	app *app.App
	log *zap.Logger
}

var rootCmd = &cobra.Command{
	Use:           "objectctl",
	Short:         "Administer an objectd installation",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		log, err := logger.Init()
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		ctl.log = log

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		a, err := app.New(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		ctl.app = a
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if ctl.app != nil {
			ctl.app.Close()
		}
		if ctl.log != nil {
			_ = ctl.log.Sync()
		}
	},
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "objectctl:", err)
		os.Exit(1)
	}
}
