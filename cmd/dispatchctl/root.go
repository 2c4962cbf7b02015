package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/linesmerrill/dispatch-board/admin"
	"github.com/linesmerrill/dispatch-board/board"
	"github.com/linesmerrill/dispatch-board/docstore"
	"github.com/linesmerrill/dispatch-board/identity"
	"github.com/linesmerrill/dispatch-board/logging"
)

const (
	appName        = "dispatchctl"
	defaultAPIURL  = "http://localhost:8080"
	defaultTimeout = 15 * time.Second
)

// Environment variables, overridden by the matching flags
const (
	envAPIURL        = "DISPATCH_API_URL"
	envStateFile     = "DISPATCH_STATE_FILE"
	envAdminPassword = "DISPATCH_ADMIN_PASSWORD"
	envAdminHash     = "DISPATCH_ADMIN_PASSWORD_HASH"
)

// options holds the persistent flags shared by every subcommand
type options struct {
	apiURL    string
	statePath string
	logLevel  string
	timeout   time.Duration
	offline   bool
	assumeYes bool

	in io.Reader
	// store, when set, replaces the store selected by the flags.
	store docstore.Store
}

func rootCmd(in io.Reader) *cobra.Command {
	return newRootCmd(&options{in: in})
}

func newRootCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Real-time robbery dispatch board",
		Long: `dispatchctl shows the north and south robbery feeds of the current shift,
the internal chat and the robbery type catalog, and lets an operator report,
edit, advance and close incidents.

Feeds are scoped to the current shift: records timestamped before the last
08:00 or 20:00 reset are not shown.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.resolve(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&o.apiURL, "api", "", "Dispatch board API URL (env "+envAPIURL+")")
	cmd.PersistentFlags().StringVar(&o.statePath, "state", "", "Operator state file (env "+envStateFile+")")
	cmd.PersistentFlags().StringVar(&o.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().DurationVar(&o.timeout, "timeout", defaultTimeout, "Timeout for requests and the initial snapshot")
	cmd.PersistentFlags().BoolVar(&o.offline, "offline", false, "Use an in-process store instead of the API")
	cmd.PersistentFlags().BoolVarP(&o.assumeYes, "yes", "y", false, "Answer yes to every confirmation")

	cmd.AddCommand(
		identifyCmd(o),
		themeCmd(o),
		boardCmd(o),
		reportCmd(o),
		editCmd(o),
		cycleCmd(o),
		resolveCmd(o),
		chatCmd(o),
		adminCmd(o),
	)
	return cmd
}

// resolve fills unset flags from the environment, loading .env first
func (o *options) resolve(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}
	if !cmd.Flags().Changed("api") {
		o.apiURL = getEnv(envAPIURL, defaultAPIURL)
	}
	if !cmd.Flags().Changed("state") {
		o.statePath = os.Getenv(envStateFile)
	}
	if o.statePath == "" {
		path, err := identity.DefaultStatePath()
		if err != nil {
			return err
		}
		o.statePath = path
	}
	return nil
}

func (o *options) identity() *identity.Store {
	return identity.NewStore(identity.NewFileStorage(o.statePath))
}

// session is one running board: the live feeds plus the console the
// operator talks through
type session struct {
	*board.App
	console *console
	log     *zap.SugaredLogger
	cancel  context.CancelFunc
}

func (s *session) Close() {
	s.cancel()
	_ = s.log.Sync()
}

// open starts a board and waits for the initial snapshot of its feeds. A
// session that will write opens an anonymous API session first.
func (o *options) open(cmd *cobra.Command, write bool) (*session, error) {
	log := logging.New(o.logLevel).Named(appName)
	ctx, cancel := context.WithCancel(cmd.Context())

	store, err := o.openStore(ctx, write, log)
	if err != nil {
		cancel()
		return nil, err
	}

	c := newConsole(o.in, cmd.ErrOrStderr(), o.assumeYes)
	app := board.New(board.Options{
		Store:     store,
		Identity:  o.identity(),
		Notifier:  c,
		Confirmer: c,
		Admin: admin.Credentials{
			Password: os.Getenv(envAdminPassword),
			Hash:     os.Getenv(envAdminHash),
		},
		Log: log,
	})
	s := &session{App: app, console: c, log: log, cancel: cancel}

	if err := app.Start(ctx); err != nil {
		s.Close()
		return nil, err
	}
	readyCtx, readyCancel := context.WithTimeout(ctx, o.timeout)
	defer readyCancel()
	if err := app.Ready(readyCtx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (o *options) openStore(ctx context.Context, write bool, log *zap.SugaredLogger) (docstore.Store, error) {
	switch {
	case o.store != nil:
		return o.store, nil
	case o.offline:
		log.Infow("using in-process store, nothing is shared or kept")
		return docstore.NewMemory(nil), nil
	}

	remote, err := docstore.NewRemote(o.apiURL, o.timeout, log.Named("remote"))
	if err != nil {
		return nil, err
	}
	if write {
		if err := remote.Authenticate(ctx); err != nil {
			return nil, err
		}
	}
	return remote, nil
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}
