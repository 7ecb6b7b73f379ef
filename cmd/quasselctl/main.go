package main

import (
	"fmt"
	"os"

	"github.com/danmuck/libquassel/internal/config"
	"github.com/danmuck/libquassel/internal/logging"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
	addr       string
	user       string
	password   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "quasselctl: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "quasselctl",
		Short:         "Talk to a Quassel core from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "quasselctl.toml", "config file path")
	root.PersistentFlags().StringVar(&flags.addr, "addr", "", "core address, overrides the config file")
	root.PersistentFlags().StringVar(&flags.user, "user", "", "login user, overrides the config file")
	root.PersistentFlags().StringVar(&flags.password, "password", "", "login password, overrides the config file")

	root.AddCommand(
		probeCmd(flags),
		connectCmd(flags),
		configCmd(flags),
	)
	return root
}

// load reads the config file when present and applies flag overrides.
func (f *rootFlags) load() (config.Config, error) {
	cfg := config.Default()
	if _, err := os.Stat(f.configPath); err == nil {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	} else if !os.IsNotExist(err) {
		return config.Config{}, err
	}
	if f.addr != "" {
		cfg.Addr = f.addr
	}
	if f.user != "" {
		cfg.User = f.user
	}
	if f.password != "" {
		cfg.Password = f.password
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}

	logging.ConfigureRuntime()
	logging.Apply(cfg.Log.Logging())
	return cfg, nil
}
