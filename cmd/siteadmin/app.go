package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/MacJediWizard/siteadmin/internal/apiclient"
	"github.com/MacJediWizard/siteadmin/internal/config"
	"github.com/MacJediWizard/siteadmin/internal/httpclient"
	"github.com/MacJediWizard/siteadmin/internal/token"
)

// app carries the flags and lazily built collaborators shared by commands.
type app struct {
	verbose bool
	noStore bool
	asJSON  bool
	timeout time.Duration

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	// location is the command path in URL form, e.g. /config/list.
	location string

	logger     zerolog.Logger
	cfg        *config.ClientConfig
	client     *apiclient.Client
	closeStore func() error
}

func newApp() *app {
	return &app{in: os.Stdin, out: os.Stdout, errOut: os.Stderr}
}

func (a *app) settings() (*config.ClientConfig, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := config.LoadDefault()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg
	return cfg, nil
}

func (a *app) log() zerolog.Logger {
	level := zerolog.WarnLevel
	if a.verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: a.errOut}).Level(level).With().Timestamp().Logger()
}

// tokens opens the credential store: in memory with --no-store, else the
// SQLite and cookie pair under the config directory.
func (a *app) tokens() (token.Store, error) {
	if a.noStore {
		return token.NewMemoryStore(), nil
	}
	dir, err := config.DefaultConfigDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}
	store, closeFn, err := token.Open(dir, a.logger)
	if err != nil {
		return nil, err
	}
	a.closeStore = closeFn
	return store, nil
}

// api builds the HTTP client core on first use.
func (a *app) api() (*apiclient.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	a.logger = a.log()

	cfg, err := a.settings()
	if err != nil {
		return nil, err
	}
	httpClient, err := httpclient.ForClient(cfg)
	if err != nil {
		return nil, err
	}
	if a.timeout > 0 {
		httpClient.Timeout = a.timeout
	}
	store, err := a.tokens()
	if err != nil {
		return nil, err
	}

	client, err := apiclient.New(apiclient.Options{
		BaseURL:    cfg.APIBaseURL(),
		HTTPClient: httpClient,
		Tokens:     store,
		Navigator:  &cliNavigator{w: a.errOut, at: a.location},
		Notifier:   apiclient.LogNotifier{Logger: a.logger},
		Logger:     a.logger,
	})
	if err != nil {
		return nil, err
	}
	a.client = client
	return client, nil
}

func (a *app) close() {
	if a.closeStore != nil {
		if err := a.closeStore(); err != nil {
			a.logger.Debug().Err(err).Msg("close token store")
		}
		a.closeStore = nil
	}
}

// emit prints v as JSON with --json, and through table otherwise.
func (a *app) emit(v any, table func(w *tabwriter.Writer)) error {
	if a.asJSON || table == nil {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}

// commandLocation renders a command path as a location, e.g.
// "siteadmin config list" becomes "/config/list".
func commandLocation(path string) string {
	fields := strings.Fields(path)
	if len(fields) > 0 {
		fields = fields[1:]
	}
	return "/" + strings.Join(fields, "/")
}

// cliNavigator stands in for the browser location: the CLI is never on the
// login view, and being sent there means the user must log in again.
type cliNavigator struct {
	w        io.Writer
	at       string
	notified bool
}

func (n *cliNavigator) Location() string {
	return n.at
}

func (n *cliNavigator) Navigate(target string) {
	if n.notified {
		return
	}
	n.notified = true
	fmt.Fprintf(n.w, "Session expired or missing (%s). Run 'siteadmin login' to sign in again.\n", target)
}
