package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shindakun/supportdesk/internal/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the supportdesk CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "supportdesk",
		Short: "supportdesk - agent sign-in for the support chat",
		Long: `supportdesk serves the agent login form and conversations page,
manages agent accounts, and can sign in to a running server from the terminal.`,
		SilenceUsage: true,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default $CONFIG_PATH or ./config.yaml)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newUserCmd())
	cmd.AddCommand(newLoginCmd())

	return cmd
}

// loadConfig reads the config named by --config, then $CONFIG_PATH, then ./config.yaml
func loadConfig() (*config.Config, error) {
	path := configFile
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "./config.yaml"
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", path, err)
	}
	return cfg, nil
}

// readSecret returns the value of env when set, otherwise the first line of in
func readSecret(in io.Reader, env string) (string, error) {
	if v := os.Getenv(env); v != "" {
		return v, nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("password is required (set %s or pipe it on stdin)", env)
	}
	return line, nil
}
