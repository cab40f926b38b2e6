// Package cli provides the command-line interface for chatdesk.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/chatdesk-go/internal/auth"
	"github.com/raphaelgruber/chatdesk-go/internal/config"
	"github.com/raphaelgruber/chatdesk-go/internal/db"
	"github.com/raphaelgruber/chatdesk-go/internal/metrics"
	"github.com/raphaelgruber/chatdesk-go/internal/session"
	"github.com/raphaelgruber/chatdesk-go/internal/storage"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Wired in PersistentPreRunE
	cfg           config.Config
	dbClient      *db.Client
	collector     *metrics.Collector
	authenticator *auth.Authenticator
	sessionFile   *auth.SessionFile
	slogger       *slog.Logger
	logCleanup    func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "chatdesk",
	Short: "Personal chat client with an auto-replying assistant",
	Long: `Chatdesk is a single-user chat client. Conversations, messages and
file attachments are stored remotely; the assistant answers every
message with a keyword-matched canned reply after a short thinking
pause.

Sign in once with 'chatdesk signin'; every other command then acts as
that user.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip DB connection for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		slogger = logger
		logCleanup = cleanup

		collector = metrics.NewCollector()

		ctx := context.Background()
		dbCfg := db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}

		dbClient, err = db.NewClient(ctx, dbCfg, slogger, collector)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}

		if err := dbClient.InitSchema(ctx); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}

		authenticator = auth.New(auth.NewDBProfileStore(dbClient), slogger)
		sessionFile, err = auth.NewSessionFile(os.Getenv("CHATDESK_SESSION_FILE"))
		if err != nil {
			return err
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if dbClient != nil {
			if err := dbClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
		if logCleanup != nil {
			_ = logCleanup()
		}
	},
}

// currentUserID resolves the signed-in user from the session file.
func currentUserID() (string, error) {
	userID, _, err := sessionFile.Load()
	if err != nil {
		return "", fmt.Errorf("sign in first with 'chatdesk signin': %w", err)
	}
	return userID, nil
}

// fileStore returns the attachment store, or a stub that rejects
// uploads when storage is not configured. Text-only chatting works
// without any storage settings.
func fileStore(ctx context.Context) session.FileStore {
	if cfg.StoragePublicBaseURL == "" {
		return unconfiguredFileStore{}
	}

	store, err := storage.NewS3Store(ctx, storage.Config{
		Endpoint:      cfg.StorageEndpoint,
		Region:        cfg.StorageRegion,
		AccessKey:     cfg.StorageAccessKey,
		SecretKey:     cfg.StorageSecretKey,
		Bucket:        cfg.StorageBucket,
		PublicBaseURL: cfg.StoragePublicBaseURL,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: attachment storage unavailable: %v\n", err)
		return unconfiguredFileStore{}
	}
	return store
}

type unconfiguredFileStore struct{}

func (unconfiguredFileStore) Upload(context.Context, string, []byte) error {
	return fmt.Errorf("attachment storage is not configured (set CHATDESK_STORAGE_PUBLIC_URL)")
}

func (unconfiguredFileStore) PublicURL(string) string { return "" }

func (unconfiguredFileStore) Delete(context.Context, string) error { return nil }

func (unconfiguredFileStore) Key(string) string { return "" }

// newController builds a controller over the live database for the
// signed-in user and loads their chats.
func newController(ctx context.Context) (*session.Controller, error) {
	userID, err := currentUserID()
	if err != nil {
		return nil, err
	}

	controller := session.NewController(
		session.NewDBStore(dbClient),
		fileStore(ctx),
		session.ControllerConfig{
			Logger:     slogger,
			ReplyDelay: cfg.ReplyDelay,
			Collector:  collector,
		},
	)

	if err := controller.Initialize(ctx, userID); err != nil {
		return nil, fmt.Errorf("load chats: %w", err)
	}
	return controller, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(signinCmd)
	rootCmd.AddCommand(signoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(chatsCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(tuiCmd)
}
