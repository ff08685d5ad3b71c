package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/elbartohub/myWhisper/internal/conf"
	"github.com/elbartohub/myWhisper/internal/speech"
)

var modelsAll bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage local whisper models",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List locally downloaded models",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := conf.Load(configFile)
		if err != nil {
			return err
		}
		d := speech.NewDownloader(cfg.ModelsDir)
		models, err := d.ListLocal()
		if err != nil {
			return err
		}
		if len(models) == 0 {
			fmt.Println("no models downloaded yet")
			return nil
		}
		for _, m := range models {
			fmt.Println(m)
		}
		return nil
	},
}

var modelsDownloadCmd = &cobra.Command{
	Use:   "download [name]",
	Short: "Download a model (or all known models with --all)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := conf.Load(configFile)
		if err != nil {
			return err
		}

		names := args
		if modelsAll {
			names = speech.KnownModels
		}
		if len(names) == 0 {
			names = []string{cfg.Model}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		d := speech.NewDownloader(cfg.ModelsDir)
		for _, name := range names {
			result, err := d.EnsureModel(ctx, name)
			if err != nil {
				return fmt.Errorf("download %s: %w", name, err)
			}
			if result.Existed {
				log.Info().Str("model", name).Str("path", result.Path).Msg("model already present")
			} else {
				log.Info().Str("model", name).Str("path", result.Path).Msg("model downloaded")
			}
		}
		return nil
	},
}

func init() {
	modelsDownloadCmd.Flags().BoolVar(&modelsAll, "all", false, "download every known model")
	modelsCmd.AddCommand(modelsListCmd, modelsDownloadCmd)
	rootCmd.AddCommand(modelsCmd)
}
