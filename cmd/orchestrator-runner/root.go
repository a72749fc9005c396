package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"

	"orchestrator-runner/internal/config"
	"orchestrator-runner/internal/credentials"
	"orchestrator-runner/internal/logging"
	"orchestrator-runner/internal/orchestrator"
	"orchestrator-runner/internal/services"
	"orchestrator-runner/internal/telemetry"
)

var version = "dev"

// app carries what every subcommand shares once the root has initialized.
type app struct {
	configFile string
	envFile    string
	logLevel   string
	logJSON    bool
	color      bool

	cfg       *config.Config
	logger    logging.Logger
	telemetry *telemetry.Service
	metrics   *telemetry.JobMetrics
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "orchestrator-runner",
		Short:         "Resolve and run orchestrator processes",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if a.telemetry == nil {
				return nil
			}
			return a.telemetry.Shutdown(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default ./config.yaml)")
	flags.StringVar(&a.envFile, "env", "", "path to a .env file")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.BoolVar(&a.logJSON, "log-json", false, "emit logs as JSON")
	flags.BoolVar(&a.color, "color", false, "colorize JSON output")

	root.AddCommand(
		newFoldersCmd(a),
		newProcessesCmd(a),
		newEntryPointsCmd(a),
		newArgumentsCmd(a),
		newReleasesCmd(a),
		newRunCmd(a),
		newServeCmd(a),
		newMCPCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(a.configFile, a.envFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSON = a.logJSON
	}
	a.cfg = cfg
	a.logger = logging.NewLogger(logging.Config{Level: cfg.Log.Level, JSON: cfg.Log.JSON, Output: cmd.ErrOrStderr()})

	a.telemetry, err = telemetry.New(cfg.Telemetry.Enabled)
	if err != nil {
		return err
	}
	a.metrics, err = telemetry.NewJobMetrics(a.telemetry.Meter())
	if err != nil {
		return fmt.Errorf("failed to create job metrics: %w", err)
	}
	return nil
}

// factory builds the per-call-chain session factory from configuration.
func (a *app) factory() (*services.Factory, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}

	var creds services.CredentialsProvider
	o := a.cfg.Orchestrator
	if a.cfg.UsesClientCredentials() {
		cc, err := credentials.NewClientCredentials(credentials.ClientCredentialsConfig{
			Organization: o.Organization,
			Tenant:       o.Tenant,
			ClientID:     o.ClientID,
			ClientSecret: o.ClientSecret,
			TokenURL:     o.TokenURL,
			Scopes:       o.Scopes,
		})
		if err != nil {
			return nil, err
		}
		creds = cc
	} else {
		creds = credentials.NewStatic(o.Organization, o.Tenant, o.Token)
	}

	transport := orchestrator.NewRestyTransport(orchestrator.TransportConfig{
		Timeout:    a.cfg.HTTP.Timeout,
		RetryCount: a.cfg.HTTP.RetryCount,
		Debug:      a.cfg.HTTP.Debug,
	})
	return services.NewFactory(o.URL, transport, creds, a.logger, a.metrics), nil
}

// session opens one session for a CLI invocation.
func (a *app) session(cmd *cobra.Command) (*services.Session, error) {
	f, err := a.factory()
	if err != nil {
		return nil, err
	}
	return f.Session(cmd.Context())
}

func (a *app) print(w io.Writer, raw []byte) error {
	out := pretty.Pretty(raw)
	if a.color {
		out = pretty.Color(out, nil)
	}
	_, err := w.Write(out)
	return err
}
