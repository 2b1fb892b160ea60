package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MacJediWizard/siteadmin/internal/config"
	"github.com/MacJediWizard/siteadmin/internal/httpclient"
)

func newSettingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage CLI settings",
	}

	cmd.AddCommand(
		newSettingsShowCmd(a),
		newSettingsSetServerCmd(a),
		newSettingsSetTimeoutCmd(a),
		newSettingsSetProxyCmd(a),
		newSettingsTestProxyCmd(a),
	)

	return cmd
}

func newSettingsShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.settings()
			if err != nil {
				return err
			}

			configPath, _ := config.DefaultConfigPath()
			fmt.Fprintf(a.out, "Config file: %s\n", configPath)
			fmt.Fprintln(a.out)

			server := cfg.ServerURL
			if server == "" {
				server = config.DefaultServerURL + " (default)"
			}
			fmt.Fprintf(a.out, "Server URL: %s\n", server)
			fmt.Fprintf(a.out, "API base:   %s\n", cfg.APIBaseURL())
			if cfg.Timeout != "" {
				fmt.Fprintf(a.out, "Timeout:    %s\n", cfg.Timeout)
			}
			fmt.Fprintf(a.out, "Proxy:      %s\n", httpclient.Describe(cfg.GetProxyConfig()))
			return nil
		},
	}
}

func newSettingsSetServerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-server <url>",
		Short: "Set the gateway URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			serverURL := args[0]

			parsed, err := url.Parse(serverURL)
			if err != nil {
				return fmt.Errorf("invalid server URL: %w", err)
			}
			if parsed.Scheme != "http" && parsed.Scheme != "https" {
				return fmt.Errorf("server URL must use http or https scheme")
			}

			cfg, err := a.settings()
			if err != nil {
				return err
			}
			cfg.ServerURL = strings.TrimSuffix(serverURL, "/")

			if err := cfg.SaveDefault(); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			fmt.Fprintf(a.out, "Server URL set to: %s\n", cfg.ServerURL)
			return nil
		},
	}
}

func newSettingsSetTimeoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-timeout <duration>",
		Short: "Set the request timeout, e.g. 30s",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := time.ParseDuration(args[0]); err != nil {
				return fmt.Errorf("invalid timeout: %w", err)
			}

			cfg, err := a.settings()
			if err != nil {
				return err
			}
			cfg.Timeout = args[0]

			if err := cfg.SaveDefault(); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			fmt.Fprintf(a.out, "Timeout set to: %s\n", cfg.Timeout)
			return nil
		},
	}
}

func newSettingsSetProxyCmd(a *app) *cobra.Command {
	var p config.ProxyConfig
	var remove bool

	cmd := &cobra.Command{
		Use:   "set-proxy",
		Short: "Route requests through an HTTP(S) or SOCKS5 proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.settings()
			if err != nil {
				return err
			}

			if remove {
				cfg.Proxy = nil
			} else {
				if !p.HasProxy() {
					return fmt.Errorf("set at least one of --http, --https or --socks5, or use --clear")
				}
				cfg.Proxy = &p
			}

			if err := cfg.SaveDefault(); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			fmt.Fprintf(a.out, "Proxy: %s\n", httpclient.Describe(cfg.GetProxyConfig()))
			return nil
		},
	}

	cmd.Flags().StringVar(&p.HTTPProxy, "http", "", "proxy for http:// targets")
	cmd.Flags().StringVar(&p.HTTPSProxy, "https", "", "proxy for https:// targets")
	cmd.Flags().StringVar(&p.SOCKS5Proxy, "socks5", "", "SOCKS5 proxy for all targets")
	cmd.Flags().StringVar(&p.NoProxy, "no-proxy", "", "comma-separated hosts that bypass the proxy")
	cmd.Flags().BoolVar(&remove, "clear", false, "remove proxy settings")

	return cmd
}

func newSettingsTestProxyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "test-proxy",
		Short: "Check that the server is reachable through the configured proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.settings()
			if err != nil {
				return err
			}
			p := cfg.GetProxyConfig()
			if p == nil {
				fmt.Fprintln(a.out, "No proxy configured.")
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			target := cfg.ResolveBaseURL() + "/health"
			fmt.Fprintf(a.out, "Checking %s via %s... ", target, httpclient.Describe(p))
			if err := httpclient.Probe(ctx, p, target); err != nil {
				fmt.Fprintln(a.out, "FAILED")
				return err
			}
			fmt.Fprintln(a.out, "OK")
			return nil
		},
	}
}
