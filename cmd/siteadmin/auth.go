package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/MacJediWizard/siteadmin/internal/apiclient"
	"github.com/MacJediWizard/siteadmin/internal/config"
	"github.com/MacJediWizard/siteadmin/internal/resources/auth"
	"github.com/MacJediWizard/siteadmin/internal/token"
)

func (a *app) auth() (*auth.API, error) {
	c, err := a.api()
	if err != nil {
		return nil, err
	}
	return auth.New(c), nil
}

func readPassword(in io.Reader, prompt io.Writer, interactive bool) (string, error) {
	if interactive {
		fmt.Fprint(prompt, "Password: ")
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	return password, nil
}

func newLoginCmd(a *app) *cobra.Command {
	var (
		ttl           time.Duration
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with the admin password",
		Long: `Log in with the admin password and store the returned credential.

The password is prompted for, or read from stdin with --password-stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.auth()
			if err != nil {
				return err
			}
			password, err := readPassword(a.in, a.errOut, !passwordStdin)
			if err != nil {
				return err
			}

			session, err := api.Login(cmd.Context(), password, int64(ttl/time.Second))
			if err != nil {
				return err
			}
			a.client.Tokens().Set(session.Token, session.ExpiresAt)

			if a.asJSON {
				return a.emit(session, nil)
			}
			fmt.Fprintln(a.out, "Login successful.")
			if session.User != nil && session.User.Username != "" {
				fmt.Fprintf(a.out, "User:    %s\n", session.User.Username)
			}
			if session.ExpiresAt > 0 {
				fmt.Fprintf(a.out, "Expires: %s\n", time.Unix(session.ExpiresAt, 0).Format(time.RFC3339))
			}
			if a.noStore {
				fmt.Fprintln(a.out, "Credential not stored (--no-store).")
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "requested credential lifetime (non-production backends only)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin without prompting")

	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the current credential and forget it",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.auth()
			if err != nil {
				return err
			}
			tokens := a.client.Tokens()
			if tokens.Get() == "" {
				fmt.Fprintln(a.out, "Not logged in.")
				return nil
			}

			loggedOut, err := api.Logout(cmd.Context())
			tokens.Clear()
			if err != nil && !apiclient.IsUnauthorized(err) {
				return fmt.Errorf("local credential removed, but %w", err)
			}
			if !loggedOut && err == nil {
				fmt.Fprintln(a.out, "Backend did not confirm the logout; local credential removed.")
				return nil
			}
			fmt.Fprintln(a.out, "Logged out.")
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the configured server and the stored credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.settings()
			if err != nil {
				return err
			}
			c, err := a.api()
			if err != nil {
				return err
			}
			raw := c.Tokens().Get()
			claims, isJWT := token.Inspect(raw)

			if a.asJSON {
				return a.emit(map[string]any{
					"api_base":  cfg.APIBaseURL(),
					"logged_in": raw != "",
					"claims":    claims,
					"jwt":       isJWT,
					"expired":   isJWT && claims.Expired(time.Now()),
				}, nil)
			}

			fmt.Fprintf(a.out, "API base:   %s\n", cfg.APIBaseURL())
			switch {
			case raw == "":
				fmt.Fprintln(a.out, "Credential: none")
				fmt.Fprintln(a.out, "Run 'siteadmin login' to sign in.")
			case !isJWT:
				fmt.Fprintln(a.out, "Credential: present (opaque)")
			default:
				state := "valid"
				if claims.Expired(time.Now()) {
					state = "expired"
				}
				fmt.Fprintf(a.out, "Credential: %s\n", state)
				if claims.Username != "" {
					fmt.Fprintf(a.out, "User:       %s\n", claims.Username)
				} else if claims.Subject != "" {
					fmt.Fprintf(a.out, "Subject:    %s\n", claims.Subject)
				}
				if !claims.ExpiresAt.IsZero() {
					fmt.Fprintf(a.out, "Expires:    %s\n", claims.ExpiresAt.Format(time.RFC3339))
				}
			}
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Ask the backend who the current credential belongs to",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.auth()
			if err != nil {
				return err
			}
			user, err := api.Me(cmd.Context())
			if err != nil {
				return err
			}
			if user == nil {
				return errors.New("backend returned no user")
			}
			return a.emit(user, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "Username:\t%s\n", user.Username)
				if user.ID != "" {
					fmt.Fprintf(w, "ID:\t%s\n", user.ID)
				}
				if len(user.Roles) > 0 {
					fmt.Fprintf(w, "Roles:\t%s\n", strings.Join(user.Roles, ", "))
				}
			})
		},
	}
}

func newURLTokenCmd(a *app) *cobra.Command {
	var (
		description string
		ttl         time.Duration
		via         string
	)

	cmd := &cobra.Command{
		Use:   "url-token",
		Short: "Mint a login link for another session",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.auth()
			if err != nil {
				return err
			}
			tok, err := api.GenerateURLToken(cmd.Context(), auth.URLTokenRequest{
				Description: description,
				TTL:         int64(ttl / time.Second),
				TokenVia:    via,
			})
			if err != nil {
				return err
			}

			cfg, err := a.settings()
			if err != nil {
				return err
			}
			link := absoluteLink(cfg.ResolveBaseURL(), tok.LoginURL)

			if a.asJSON {
				return a.emit(map[string]any{
					"token":      tok.Token,
					"expires_at": tok.ExpiresAt,
					"login_url":  link,
				}, nil)
			}
			fmt.Fprintf(a.out, "Login URL: %s\n", link)
			if tok.ExpiresAt > 0 {
				fmt.Fprintf(a.out, "Expires:   %s\n", time.Unix(tok.ExpiresAt, 0).Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "note recorded with the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (server default when unset)")
	cmd.Flags().StringVar(&via, "via", "", "how the link carries the token (e.g. query)")

	return cmd
}

// absoluteLink resolves a relative login URL against the server origin.
func absoluteLink(origin, link string) string {
	if link == "" {
		return ""
	}
	ref, err := url.Parse(link)
	if err != nil || ref.IsAbs() {
		return link
	}
	base, err := url.Parse(strings.TrimSuffix(origin, config.GatewayMount))
	if err != nil {
		return link
	}
	return base.ResolveReference(ref).String()
}
