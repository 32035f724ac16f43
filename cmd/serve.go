package cmd

import (
	"errors"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/adpulse-cli/internal/config"
	"github.com/KaramelBytes/adpulse-cli/internal/server"
)

var (
	serveAddr    string
	serveEnvFile string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analyzer over HTTP",
	Long: `Serve exposes POST /api/v1/analyze and POST /api/v1/parse (raw CSV, multipart
field "file", or JSON {"rows": [...]}), plus /healthz, /readyz and Prometheus
metrics on /metrics. Variables in an optional .env file are loaded first.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(serveEnvFile); err != nil {
			if cmd.Flags().Changed("env-file") || !errors.Is(err, fs.ErrNotExist) {
				return err
			}
		} else {
			// Environment changed; re-read so ADPULSE_* values apply.
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}

		sc := server.Config{Rules: configuredRules()}
		if cfg != nil {
			sc.Addr = cfg.ServerAddr
			sc.MaxBodyBytes = cfg.MaxInputBytes
			sc.ShutdownTimeout = time.Duration(cfg.ShutdownTimeout) * time.Second
		}
		if serveAddr != "" {
			sc.Addr = serveAddr
		}
		if sc.Addr == "" {
			sc.Addr = ":8080"
		}
		return server.New(logger, sc, nil).Start(commandContext(cmd))
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config server_addr)")
	serveCmd.Flags().StringVar(&serveEnvFile, "env-file", ".env", "dotenv file to load before reading config")
}
