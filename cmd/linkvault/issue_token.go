package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/linkvault/internal/app"
	"github.com/MrSnakeDoc/linkvault/internal/auth"
	redisstore "github.com/MrSnakeDoc/linkvault/internal/store/redis"
)

type issueTokenOptions struct {
	userID   string
	provider string
	ttl      time.Duration
	save     bool
}

// newIssueTokenCmd mints a session directly in the backend. It stands in for the
// identity provider on development setups.
func newIssueTokenCmd(root *rootOptions) *cobra.Command {
	opts := &issueTokenOptions{}

	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Issue a backend session for a user (development)",
		Long: `Issue a backend session for --user and print its access token.

With --save the session is written to the session file, so the next
"linkvault serve" starts signed in. Otherwise hand the token to the login
callback: <public-url>/auth/callback?state=<state>&access_token=<token>.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIssueToken(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.userID, "user", "", "user id the session belongs to (required)")
	cmd.Flags().StringVar(&opts.provider, "provider", "dev", "provider recorded on the session")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", 0, "session lifetime (default: LINKVAULT_SESSION_TTL)")
	cmd.Flags().BoolVar(&opts.save, "save", false, "write the session to the session file")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runIssueToken(cmd *cobra.Command, root *rootOptions, opts *issueTokenOptions) error {
	cfg, loggerClient := root.load()
	defer func() { _ = loggerClient.Sync() }()

	ttl := opts.ttl
	if ttl <= 0 {
		ttl = cfg.SessionTTL
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RedisConnectTimeout+5*time.Second)
	defer cancel()

	client, err := app.Connect(ctx, cfg, loggerClient)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer func() { _ = client.Close() }()

	sess, err := redisstore.NewStore(client, loggerClient).Issue(ctx, opts.userID, opts.provider, ttl)
	if err != nil {
		return err
	}

	if opts.save {
		if err := auth.NewFileStore(cfg.SessionFile).Save(sess); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Session for %s saved to %s (expires %s)\n",
			sess.UserID, cfg.SessionFile, sess.ExpiresAt.Format(time.RFC3339))
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), sess.AccessToken)
	return nil
}
