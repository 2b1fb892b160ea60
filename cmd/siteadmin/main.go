// Package main is the entrypoint for the siteadmin CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp()
	err := newRootCmd(a).ExecuteContext(ctx)
	a.close()
	if err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "siteadmin",
		Short: "Manage a siteadmin backend from the command line",
		Long: `siteadmin talks to the siteadmin gateway (or, with SITEADMIN_API_BASE,
straight to the backend) to manage configuration, blog, weibo and files.

Run 'siteadmin login' to obtain a credential.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.location = commandLocation(cmd.CommandPath())
		},
	}
	rootCmd.SetOut(a.out)
	rootCmd.SetErr(a.errOut)

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log requests and responses")
	flags.BoolVar(&a.noStore, "no-store", false, "keep the credential in memory only")
	flags.BoolVar(&a.asJSON, "json", false, "print results as JSON")
	flags.DurationVar(&a.timeout, "timeout", 0, "overall request timeout (default from settings)")

	rootCmd.AddCommand(
		newVersionCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newStatusCmd(a),
		newWhoamiCmd(a),
		newURLTokenCmd(a),
		newSettingsCmd(a),
		newConfigCmd(a),
		newBlogCmd(a),
		newWeiboCmd(a),
		newFileCmd(a),
	)

	return rootCmd
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.out, "siteadmin %s\n", Version)
			fmt.Fprintf(a.out, "  Commit:     %s\n", Commit)
			fmt.Fprintf(a.out, "  Built:      %s\n", BuildDate)
			fmt.Fprintf(a.out, "  Go version: %s\n", runtime.Version())
			fmt.Fprintf(a.out, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
