package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/upb/devportal/app"
	"github.com/upb/devportal/cognito"
	"github.com/upb/devportal/config"
	"github.com/upb/devportal/middleware"
)

func newVerifyTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-token <token>",
		Short: "Verify a bearer token against the configured Cognito pool",
		Long: `Verify a token once with the same checks the API applies and print its
claims as JSON. Accepts either the bare token or "Bearer <token>".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.New(ctx)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger, err := initLogger(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			validator := cognito.NewCognitoValidator(app.CognitoConfig(cfg), nil, logger)
			return verifyToken(ctx, validator, args[0], cmd.OutOrStdout())
		},
	}
}

func verifyToken(ctx context.Context, validator middleware.TokenValidator, raw string, out io.Writer) error {
	claims, err := validator.ValidateToken(ctx, middleware.ExtractBearerToken(raw))
	if err != nil {
		return fmt.Errorf("token rejected (%s): %w", cognito.KindOf(err), err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(claims)
}
