package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/huddle/internal/config"
	"github.com/vango-dev/huddle/internal/errors"
	"github.com/vango-dev/huddle/internal/logging"
	"github.com/vango-dev/huddle/pkg/client"
	"github.com/vango-dev/huddle/pkg/session"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ╦ ╦┬ ┬┌┬┐┌┬┐┬  ┌─┐
  ╠═╣│ │ ││ │││  ├┤
  ╩ ╩└─┘─┴┘─┴┘┴─┘└─┘
`

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	server     string
	port       int
	typ        string
	session    string
	name       string
	token      string
	logLevel   string
	logFormat  string
}

// app is the state built by the root command before any subcommand runs.
type app struct {
	flags  globalFlags
	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.PrintError(errors.FromError(err, "H501"))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "huddle",
		Short: "Sessions, channels and shared byte arrays over the network",
		Long: `Huddle connects named clients into sessions.

Inside a session clients exchange ordered messages on channels and
share last-value-wins byte arrays. Commands:

  • registry  run the rendezvous endpoint
  • stockd    publish stock quotes into byte arrays
  • watch     follow stock quotes
  • tail      print a channel's messages
  • send      send a message on a channel`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.init(cmd)
		},
	}

	f := rootCmd.PersistentFlags()
	f.StringVarP(&a.flags.configPath, "config", "c", "", "Config file or directory (default: ./huddle.yaml or ./huddle.json)")
	f.StringVarP(&a.flags.server, "server", "H", "", "Rendezvous host")
	f.IntVarP(&a.flags.port, "port", "p", 0, "Rendezvous port")
	f.StringVarP(&a.flags.typ, "type", "t", "", "Session transport type")
	f.StringVar(&a.flags.session, "session", "", "Session name")
	f.StringVarP(&a.flags.name, "name", "n", "", "Client name (default: derived from the host name)")
	f.StringVar(&a.flags.token, "token", "", "Session token for guarded endpoints")
	f.StringVar(&a.flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	f.StringVar(&a.flags.logFormat, "log-format", "", "Log format: text, json")

	rootCmd.AddCommand(
		registryCmd(a),
		stockdCmd(a),
		watchCmd(a),
		tailCmd(a),
		sendCmd(a),
		tokenCmd(a),
		versionCmd(),
	)
	return rootCmd
}

// init loads configuration, applies flag overrides and sets up logging.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.flags.configPath)
	if err != nil {
		return err
	}
	a.applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.Setup(cfg.Log, cmd.Name())
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadOrDefault(".")
	}
	if st, err := os.Stat(path); err == nil && st.IsDir() {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		return cfg, cfg.ApplyEnv(os.LookupEnv)
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return cfg, cfg.ApplyEnv(os.LookupEnv)
}

// applyFlags copies explicitly set flags over cfg.
func (a *app) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("server") {
		cfg.Server = a.flags.server
	}
	if changed("port") {
		cfg.Port = a.flags.port
	}
	if changed("type") {
		cfg.Type = a.flags.typ
	}
	if changed("session") {
		cfg.Session = a.flags.session
	}
	if changed("name") {
		cfg.Name = a.flags.name
	}
	if changed("log-level") {
		cfg.Log.Level = a.flags.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = a.flags.logFormat
	}
}

// clientName returns the configured client name, or one derived from the
// host name.
func (a *app) clientName() string {
	if a.cfg.Name != "" {
		return a.cfg.Name
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "huddle"
	}
	return host
}

// join creates or joins the configured session under a unique client name.
func (a *app) join(ctx context.Context, create bool) (*client.Session, error) {
	newClient := func(name string) session.Client {
		return session.NewClientWithToken(name, a.flags.token)
	}
	s, err := client.CreateOrJoinUnique(ctx, a.clientName(), newClient, a.cfg.URL("").String(), create,
		client.WithConnectTimeout(a.cfg.ConnectTimeout()),
		client.WithMaxNameAttempts(a.cfg.Client.MaxNameAttempts),
		client.WithLogger(a.logger),
	)
	if err != nil {
		return nil, err
	}
	a.logger.Info("joined session", "url", s.URL().String(), "client", s.Client().Name(), "creator", s.Creator())
	return s, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// leave leaves s with a bounded wait.
func leave(s *client.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Leave(ctx); err != nil {
		warn("leave: %v", err)
	}
}

// printBanner prints the Huddle ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}

// configSource describes where configuration came from.
func (a *app) configSource() string {
	if p := a.cfg.Path(); p != "" {
		return filepath.Base(p)
	}
	return "defaults"
}
