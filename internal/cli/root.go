// Package cli implements the syncnotes command tree.
package cli

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/syncnotes/syncnotes-go/internal/api"
	"github.com/syncnotes/syncnotes-go/internal/config"
	"github.com/syncnotes/syncnotes-go/internal/log"
	"github.com/syncnotes/syncnotes-go/internal/session"
)

// app carries the resolved configuration and shared services for commands.
type app struct {
	cfg      config.Config
	log      *zerolog.Logger
	sessions *session.Store
}

// New builds the root command.
func New() *cobra.Command {
	a := &app{}

	var (
		configPath string
		baseURL    string
		verbose    bool
	)

	root := &cobra.Command{
		Use:           "syncnotes",
		Short:         "Terminal client for the SyncNotes rooms/tasks/chat backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env first so SYNCNOTES_* vars reach viper.
			_ = godotenv.Load()

			bootstrap := log.New("warn")
			cfg, path, err := config.Load(bootstrap, configPath)
			if err != nil {
				return fmt.Errorf("load config from %s: %w", path, err)
			}
			if baseURL != "" {
				cfg.BaseURL = baseURL
			}
			if verbose {
				cfg.LogLevel = "debug"
			}

			a.cfg = cfg
			a.log = log.New(cfg.LogLevel)
			a.sessions = session.NewStore(cfg.SessionPath)

			a.log.Debug().Str("config", path).Str("base_url", cfg.BaseURL).Msg("client configured")
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	root.PersistentFlags().StringVar(&baseURL, "base-url", "", "backend base URL (overrides config)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		a.newLoginCmd(),
		a.newRegisterCmd(),
		a.newLogoutCmd(),
		a.newWhoamiCmd(),
		a.newPingCmd(),
		a.newRoomsCmd(),
		a.newMembersCmd(),
		a.newTasksCmd(),
		a.newHistoryCmd(),
		a.newChatCmd(),
	)

	return root
}

// api builds a REST client against the configured backend.
func (a *app) api() (*api.Client, error) {
	timeout := a.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return api.New(a.cfg.BaseURL, timeout, a.sessions, a.log)
}
