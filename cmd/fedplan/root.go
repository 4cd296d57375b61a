package main

import (
	"github.com/jensneuse/abstractlogger"
	"github.com/spf13/cobra"

	"github.com/hanpama/fedplan/internal/gateway"
)

// app carries the settings shared by all commands. It is filled before any
// command runs.
type app struct {
	configPath string
	schemaRoot string
	logLevel   string

	cfg     *Config
	log     abstractlogger.Logger
	syncLog func()
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "fedplan",
		Short: "Plan GraphQL operations over federated subgraphs",
		Long: `fedplan reads a federated gateway schema annotated with subgraph
directives and turns GraphQL operations into query plans: which subgraph
requests to send, in which order, and how their results compose.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.syncLog != nil {
				a.syncLog()
			}
		},
	}
	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", defaultConfigFile, "gateway settings file")
	f.StringVar(&a.schemaRoot, "schema", "", "directory of annotated schema documents (overrides schema.root)")
	f.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error (overrides log.level)")

	root.AddCommand(newPlanCmd(a), newComposeCmd(a), newServeCmd(a))
	return root
}

func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(a.configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	if a.schemaRoot != "" {
		cfg.Schema.Root = a.schemaRoot
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	log, sync, err := newLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	a.cfg, a.log, a.syncLog = cfg, log, sync
	return nil
}

func (a *app) gateway(opts ...gateway.Option) (*gateway.Gateway, error) {
	opts = append([]gateway.Option{
		gateway.WithLogger(a.log),
		gateway.WithIntrospection(a.cfg.Introspection),
	}, opts...)
	gw, err := gateway.Load(a.cfg.Schema.Root, opts...)
	if err != nil {
		return nil, err
	}
	a.log.Debug("schema loaded", abstractlogger.String("root", a.cfg.Schema.Root))
	return gw, nil
}
