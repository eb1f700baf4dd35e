package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shindakun/supportdesk/internal/apiclient"
	"github.com/shindakun/supportdesk/internal/logging"
	"github.com/shindakun/supportdesk/internal/loginview"
	"github.com/shindakun/supportdesk/internal/version"
)

// newCLILogger builds the logger the login form reports failures to
var newCLILogger = logging.NewConsole

type loginConfig struct {
	serverURL string
	email     string
	redirect  string
	timeout   time.Duration
	logLevel  string
}

func newLoginCmd() *cobra.Command {
	cfg := &loginConfig{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to a running server",
		Long: `Sign in to a running supportdesk server through its JSON API and print where
the browser would land. The password is read from $` + passwordEnv + `, or from the
first line of standard input.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogin(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.serverURL, "url", "http://localhost:8080", "server base URL")
	cmd.Flags().StringVar(&cfg.email, "email", "", "agent email address")
	cmd.Flags().StringVar(&cfg.redirect, "redirect", "", "path to land on after sign-in")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 15*time.Second, "how long to wait for the server")
	cmd.Flags().StringVar(&cfg.logLevel, "log-level", "error", "log level for diagnostics on stderr")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func runLogin(cmd *cobra.Command, cfg *loginConfig) error {
	password, err := readSecret(cmd.InOrStdin(), passwordEnv)
	if err != nil {
		return err
	}

	client, err := apiclient.New(cfg.serverURL, apiclient.WithUserAgent("supportdesk-cli/"+version.GetVersion()))
	if err != nil {
		return err
	}

	logger, err := newCLILogger(cfg.logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	var landed string
	view := loginview.New(client, loginview.NavigatorFunc(func(path string) {
		landed = path
	}), loginview.WithLogger(logger.Named("login")))
	defer view.Unmount()

	if cfg.redirect != "" {
		view.Mount("redirect=" + url.QueryEscape(cfg.redirect))
	} else {
		view.Mount("")
	}
	view.ChangeEmail(cfg.email)
	view.ChangePassword(password)

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	done, err := view.Submit(ctx)
	if err != nil {
		return err
	}
	<-done

	state := view.State()
	if state.HasError() {
		return fmt.Errorf("%s", state.ErrorText())
	}

	cmd.Printf("Signed in as %s. Continue at %s%s\n", cfg.email, strings.TrimRight(cfg.serverURL, "/"), landed)
	return nil
}
