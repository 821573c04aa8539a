package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alfredjeanlab/kgview/internal/client"
	"github.com/alfredjeanlab/kgview/internal/config"
	"github.com/alfredjeanlab/kgview/internal/events"
	"github.com/alfredjeanlab/kgview/internal/logging"
	"github.com/alfredjeanlab/kgview/internal/metrics"
	"github.com/alfredjeanlab/kgview/internal/model"
	"github.com/alfredjeanlab/kgview/internal/render"
	"github.com/alfredjeanlab/kgview/internal/session"
	"github.com/alfredjeanlab/kgview/internal/store"
	"github.com/alfredjeanlab/kgview/internal/store/postgres"
	"github.com/alfredjeanlab/kgview/internal/store/sqlite"
	"github.com/alfredjeanlab/kgview/internal/theme"
	"github.com/alfredjeanlab/kgview/internal/ui"
)

var (
	apiURL     string
	apiToken   string
	userID     string
	jsonOutput bool
	noColor    bool
	assumeYes  bool

	cfg    *config.Config
	logger *zap.Logger
	prefs  store.Store
	api    client.API
)

var rootCmd = &cobra.Command{
	Use:           "kgv <command>",
	Short:         "Knowledge graph explorer",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor || !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("api-url") {
			cfg.APIURL = apiURL
		}
		if cmd.Flags().Changed("token") {
			cfg.APIToken = apiToken
		}
		if cmd.Flags().Changed("user") {
			cfg.User = userID
		}

		logger, err = logging.New(cfg.Env, cfg.LogLevel)
		if err != nil {
			return err
		}

		prefs, err = openPrefs(cfg)
		if err != nil {
			return err
		}

		api = client.NewBreakerClient(
			client.NewHTTPClient(cfg.APIURL, cfg.APIToken),
			client.DefaultBreakerConfig("kgv-api"),
			logger,
		)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if api != nil {
			api.Close()
		}
		if prefs != nil {
			prefs.Close()
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "backend URL (default from config, http://localhost:8000)")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", "", "backend bearer token")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "user id (default: the last user)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "answer yes to confirmations")

	rootCmd.AddGroup(
		&cobra.Group{ID: "graphs", Title: "Graphs:"},
		&cobra.Group{ID: "nodes", Title: "Nodes:"},
		&cobra.Group{ID: "views", Title: "Views:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)
	cobra.EnableCommandSorting = false

	// Graphs
	rootCmd.AddCommand(graphsCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(deleteGraphCmd)
	rootCmd.AddCommand(deleteGraphsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(shareCmd)

	// Nodes
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(addNodeCmd)
	rootCmd.AddCommand(deleteNodeCmd)

	// Views
	rootCmd.AddCommand(themeCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(deleteUserCmd)
}

// openPrefs returns the postgres store when a database URL is configured,
// else the local sqlite file.
func openPrefs(c *config.Config) (store.Store, error) {
	if c.DatabaseURL != "" {
		s, err := postgres.New(c.DatabaseURL, c.PrefsScope)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	path := c.PrefsPath
	if path == "" {
		path = sqlite.DefaultPath()
	}
	s, err := sqlite.New(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// themeSource is the environment preference chain: KGV_COLOR_SCHEME and
// COLORFGBG, then the color scheme file when configured.
func themeSource(c *config.Config) theme.Source {
	chain := theme.Chain{theme.EnvSource{Getenv: os.Getenv}}
	if c.ColorSchemeFile != "" {
		chain = append(chain, &theme.FileSource{Path: c.ColorSchemeFile, Logger: logger})
	}
	return chain
}

type sessionOptions struct {
	surface   render.Surface
	publisher events.Publisher
	metrics   *metrics.Collector
	asker     session.Asker
}

// newSession builds a session over the shared API and preference store.
// CLI sessions talk to the terminal; the explorer server passes its own
// surface and publisher.
func newSession(o sessionOptions) (*session.Session, error) {
	console := ui.NewConsole(os.Stdin, os.Stderr)
	asker := o.asker
	if asker == nil {
		asker = console
		if assumeYes {
			asker = session.AlwaysConfirm
		}
	}
	sess, err := session.New(session.Options{
		API:   api,
		Theme: theme.NewStore(prefs, themeSource(cfg), logger),
		Render: render.Options{
			Width:   cfg.Viewport.Width,
			Height:  cfg.Viewport.Height,
			Surface: o.surface,
		},
		Prefs:        prefs,
		Asker:        asker,
		Notifier:     console,
		Prompter:     console,
		Publisher:    o.publisher,
		Metrics:      o.metrics,
		Rand:         rand.New(rand.NewSource(time.Now().UnixNano())),
		ShareBaseURL: cfg.ShareBaseURL,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	if cfg.User != "" {
		sess.SetUser(context.Background(), cfg.User)
	}
	return sess, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := rootCmd.ExecuteContext(ctx)
	if errors.Is(err, model.ErrUserCancelled) {
		return
	}
	if err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
