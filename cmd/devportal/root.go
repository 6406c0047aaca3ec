package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/upb/devportal/config"
	"github.com/upb/devportal/internal/observability"
	"go.uber.org/zap"
)

// rootCmd is the devportal entry point. Without a subcommand it serves.
var rootCmd = &cobra.Command{
	Use:   "devportal",
	Short: "Developer portal API for ECS services",
	Long: `devportal serves authenticated access to ECS service metrics,
CloudWatch logs and S3-hosted documentation behind Cognito bearer tokens.

When run without subcommands, it starts the API server (equivalent to 'devportal serve').`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "devportal version %s\n" .Version}}`)

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVerifyTokenCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// initLogger builds the process logger from the observability settings
func initLogger(cfg *config.Config) (*zap.Logger, error) {
	return observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
}
