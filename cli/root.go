// Package cli provides the kotobadb command-line interface: the serve
// command running the HTTP API, a one-shot query runner, log replay,
// and the replication consumer. It orchestrates configuration loading
// (flags > environment > config file > defaults), engine assembly, and
// graceful shutdown.
package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"kotobadb.dev/kotobadb/common"
	"kotobadb.dev/kotobadb/config"
	"kotobadb.dev/kotobadb/engine"
)

// Exit codes for process hosts.
const (
	ExitOK       = 0
	ExitConfig   = 1
	ExitStorage  = 2
	ExitAuth     = 3
	ExitQuery    = 4
	ExitInternal = 5
)

// exitError carries an exit code alongside the error it wraps, so
// Execute can translate failures into the documented process exit
// codes.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitWith(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// codeFor maps an error to its exit code using the engine's error
// taxonomy.
func codeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if errors.Is(err, engine.ErrDenied) {
		return ExitAuth
	}
	if kind, ok := common.KindOf(err); ok {
		switch kind {
		case common.KindStorage:
			return ExitStorage
		case common.KindAuthorization:
			return ExitAuth
		case common.KindQuery, common.KindSchema:
			return ExitQuery
		}
	}
	return ExitInternal
}

// cfgFile holds the path to the configuration file specified via the
// --config flag; empty means the default search path applies.
var cfgFile string

// RootCmd is the kotobadb command tree root.
var RootCmd = &cobra.Command{
	Use:   "kotobadb",
	Short: "content-addressed property-graph database engine",
	Long: `kotobadb is a content-addressed property-graph database with a
GQL-style query engine, a causal transaction log, hybrid tiered
storage, and a combined RBAC/ABAC policy layer.

Configuration can be provided via command-line flags, environment
variables (KOTOBADB_ prefix), or a YAML configuration file, with
flags taking precedence over environment over file over defaults.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.kotobadb.yaml)")
	RootCmd.PersistentFlags().String("node-id", "", "node identifier used in HLC timestamps")
	RootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	RootCmd.PersistentFlags().String("hot-backend", "", "hot tier backend (memory, bolt, remote)")
	RootCmd.PersistentFlags().String("cold-backend", "", "cold tier backend (memory, bolt, remote)")
	RootCmd.PersistentFlags().String("bolt-path", "", "bolt database file path")
	RootCmd.PersistentFlags().String("policy-mode", "", "policy mode (rbac_only, abac_only, rbac_first, abac_first, combined)")

	viper.BindPFlag("node_id", RootCmd.PersistentFlags().Lookup("node-id"))
	viper.BindPFlag("log_level", RootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("storage.hot_backend", RootCmd.PersistentFlags().Lookup("hot-backend"))
	viper.BindPFlag("storage.cold_backend", RootCmd.PersistentFlags().Lookup("cold-backend"))
	viper.BindPFlag("storage.bolt_path", RootCmd.PersistentFlags().Lookup("bolt-path"))
	viper.BindPFlag("policy.mode", RootCmd.PersistentFlags().Lookup("policy-mode"))

	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(queryCmd)
	RootCmd.AddCommand(replayCmd)
	RootCmd.AddCommand(replicateCmd)
}

// initConfig reads in config file and KOTOBADB_ environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".kotobadb")
	}

	viper.SetEnvPrefix("KOTOBADB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig layers viper-bound flags and file values over the
// environment-derived configuration, then validates the result.
func loadConfig() (config.Config, error) {
	c := config.Load()

	if v := viper.GetString("node_id"); v != "" {
		c.NodeID = v
	}
	if v := viper.GetString("log_level"); v != "" {
		c.LogLevel = v
	}
	if v := viper.GetString("storage.hot_backend"); v != "" {
		c.Storage.HotBackend = v
	}
	if v := viper.GetString("storage.cold_backend"); v != "" {
		c.Storage.ColdBackend = v
	}
	if v := viper.GetString("storage.bolt_path"); v != "" {
		c.Storage.BoltPath = v
	}
	if v := viper.GetString("policy.mode"); v != "" {
		c.Policy.Mode = v
	}
	if v := viper.GetInt("server.port"); v != 0 {
		c.Server.Port = v
	}
	if v := viper.GetString("replication.amqp_url"); v != "" {
		c.Replication.AMQPURL = v
	}
	if v := viper.GetDuration("query.default_timeout"); v != 0 {
		c.Query.DefaultTimeout = v
	}

	if err := c.Validate(); err != nil {
		return c, exitWith(ExitConfig, err)
	}
	return c, nil
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return codeFor(err)
	}
	return ExitOK
}
