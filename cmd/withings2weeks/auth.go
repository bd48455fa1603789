package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newAuthCmd(gf *globalFlags) *cobra.Command {
	var scopes []string

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to your Withings measurements",
		Long: `Opens the Withings authorization page, waits for the redirect on the
configured redirect_uri and stores the tokens in the config dir.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := newSession(cmd, gf, true)
			if err != nil {
				return err
			}
			defer sess.close()

			authService, err := sess.authService()
			if err != nil {
				return err
			}
			authService.Out = cmd.OutOrStdout()

			if len(scopes) == 0 {
				scopes = sess.cfg.Withings.OAuth.Scopes
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			tokens, err := authService.AuthorizeInteractive(ctx, scopes)
			sess.writeMetrics()
			if err != nil {
				return fmt.Errorf("authorize: %w", err)
			}
			log.Infof("access token valid until %s", tokens.Expiry().Format(time.RFC3339))

			return nil
		},
	}
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "OAuth scopes to request (default: from config, else user.metrics)")

	return cmd
}
