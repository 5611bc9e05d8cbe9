// Package main provides the adsdash CLI application entry point.
// adsdash is a terminal client for the advertising analytics backend: campaign and product
// tables, anomaly monitors, SEO analysis and the expert-system chat.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"adsdash/internal/logger"
	"adsdash/internal/output"
	"adsdash/internal/services"
	"adsdash/internal/shell"
	"adsdash/internal/storage"
	"adsdash/internal/version"
)

// app is the state shared by the commands of one invocation.
type app struct {
	v        *viper.Viper
	testMode bool

	cfg      *services.ConfigurationService
	store    storage.Store
	auth     *services.AuthService
	api      *services.APIService
	theme    *services.Theme
	printer  *output.Printer
	renderer *output.Renderer
}

func main() {
	if err := execute(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// execute runs one invocation. Local state is released even when the command fails,
// which cobra's post-run hooks do not cover.
func execute(args []string, out io.Writer) error {
	a := &app{v: viper.New()}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(out)
	err := root.Execute()
	if closeErr := a.close(); err == nil {
		err = closeErr
	}
	return err
}

// newRootCmd builds the command tree over the state of a.
func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "adsdash",
		Short: "adsdash - advertising analytics in the terminal",
		Long: `adsdash shows campaign and product performance, anomaly monitors and SEO reports
from the analytics backend, and talks to its expert-system agent.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.configure(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("log-level", "", "Set log level (debug|info|warn|error) [default: info]")
	flags.String("log-file", "", "Write logs to file instead of stderr")
	flags.String("api-url", "", "Backend base URL [default: http://localhost:8000]")
	flags.String("api-host", "", "Backend host, reached on port 8000")
	flags.String("data-dir", "", "Directory of the local state database")
	flags.String("theme", "", "Color theme (default|dark|plain)")
	flags.Duration("timeout", 0, "Timeout of non-streaming requests [default: 30s]")
	flags.Int("page-size", 0, "Rows revealed per page [default: 50]")
	flags.BoolVar(&a.testMode, "test-mode", false, "Run in deterministic test mode")

	for key, flag := range map[string]string{
		services.ConfigLogLevel:   "log-level",
		services.ConfigLogFile:    "log-file",
		services.ConfigAPIBaseURL: "api-url",
		services.ConfigAPIHost:    "api-host",
		services.ConfigDataDir:    "data-dir",
		services.ConfigTheme:      "theme",
		services.ConfigTimeout:    "timeout",
		services.ConfigPageSize:   "page-size",
	} {
		if err := a.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding %s flag: %v\n", flag, err)
			os.Exit(1)
		}
	}

	rootCmd.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newTableCmd(a, "campaigns"),
		newTableCmd(a, "products"),
		newFiltersCmd(a),
		newCampaignCmd(a),
		newAnomaliesCmd(a),
		newSEOCmd(a),
		newRulesCmd(a),
		newChatCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// configure loads the configuration and sets up logging before any command runs.
func (a *app) configure(cmd *cobra.Command) error {
	a.cfg = services.NewConfigurationService(services.WithViper(a.v))
	if err := a.cfg.Initialize(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logger.Configure(a.cfg.LogLevel(), a.cfg.LogFile(), a.testMode); err != nil {
		return fmt.Errorf("failed to configure logger: %w", err)
	}

	themes := services.NewThemeService()
	if err := themes.Initialize(); err != nil {
		return err
	}
	a.theme = themes.GetThemeByName(a.cfg.Theme())
	a.printer = output.NewPrinter(output.WithWriter(cmd.OutOrStdout()), output.WithTheme(a.theme))
	a.renderer = output.NewRenderer(a.theme, a.printer.Plain())
	return nil
}

// start opens local storage and initializes the services of a command talking to the
// backend.
func (a *app) start() error {
	if a.auth != nil {
		return nil
	}

	store, err := storage.OpenSQLite(a.cfg.DataDir())
	if err != nil {
		return err
	}
	a.store = store

	// One invocation, one registry.
	services.SetGlobalRegistry(services.NewRegistry())
	if err := shell.InitializeServices(shell.Options{Config: a.cfg, Store: store}); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	if a.auth, err = services.GetGlobalAuthService(); err != nil {
		return err
	}
	if a.api, err = services.GetGlobalAPIService(); err != nil {
		return err
	}
	logger.Debug("adsdash started", "version", version.GetVersion(), "data_dir", a.cfg.DataDir())
	return nil
}

// requireSession starts the services and fails unless a user is logged in.
func (a *app) requireSession() error {
	if err := a.start(); err != nil {
		return err
	}
	if a.auth.Session().Token == "" {
		return fmt.Errorf("%w: run 'adsdash login' first", services.ErrNotAuthenticated)
	}
	return nil
}

func (a *app) close() error {
	if editor, err := services.GetGlobalEditorService(); err == nil && a.store != nil {
		_ = editor.Cleanup()
	}
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			settings := a.cfg.AllSettings()
			keys := make([]string, 0, len(settings))
			for k := range settings {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			node := &yaml.Node{Kind: yaml.MappingNode}
			for _, k := range keys {
				node.Content = append(node.Content,
					&yaml.Node{Kind: yaml.ScalarNode, Value: k},
					&yaml.Node{Kind: yaml.ScalarNode, Value: fmt.Sprint(settings[k])},
				)
			}
			data, err := yaml.Marshal(node)
			if err != nil {
				return err
			}

			paths := a.cfg.Paths()
			a.printer.Info("Config directory: " + paths.ConfigDir)
			a.printer.Info("API: " + a.cfg.BaseURL())
			a.printer.Info("Database: " + filepath.Join(a.cfg.DataDir(), storage.DatabaseFile))
			a.printer.Print(string(data))
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	var detailed bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if detailed {
				cmd.Println(version.GetDetailedVersion())
				return nil
			}
			cmd.Println(version.GetFormattedVersion())
			return nil
		},
	}
	cmd.Flags().BoolVar(&detailed, "detailed", false, "Show build details")
	return cmd
}
