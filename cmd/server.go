package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/elbartohub/myWhisper/internal/conf"
	"github.com/elbartohub/myWhisper/internal/server"
	"github.com/elbartohub/myWhisper/internal/speech"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the HTTP transcription service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := conf.Load(configFile)
		if err != nil {
			return err
		}
		if serverAddr != "" {
			cfg.Addr = serverAddr
		}
		if err := cfg.EnsureDirs(); err != nil {
			return err
		}

		pl, watcher := buildPipeline(cfg)
		if watcher != nil {
			defer watcher.Close()
		}

		svc := server.NewService(cfg, pl, speech.NewDownloader(cfg.ModelsDir))
		if err := svc.Start(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		log.Info().Msg("shutting down")
		if err := svc.Stop(); err != nil {
			log.Err(err).Msg("HTTP shutdown failed")
		}

		drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := pl.Shutdown(drainCtx); err != nil {
			log.Warn().Err(err).Msg("jobs still running at shutdown")
		}
		return nil
	},
}

var serverAddr string

func init() {
	serverCmd.Flags().StringVar(&serverAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serverCmd)
}
