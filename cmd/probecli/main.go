package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/studiowebux/probecli/internal/cli"
	"github.com/studiowebux/probecli/internal/config"
	vcheck "github.com/studiowebux/probecli/internal/version"
)

var (
	version = "0.1.0"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "probecli",
	Short: "probecli - HTTP load generation and port knocking",
	Long: `probecli bundles two small network probing tools.

load  issues HTTP POST requests at a fixed rate for a fixed duration,
      recording each request's time-to-first-byte to a results log.
knock attempts one TCP connection per port across a port range,
      strictly in order, with a fixed delay between attempts.

Defaults for rate, duration, port range and delay can be set in
~/.probecli/config.yaml; flags override the file.

Examples:
  probecli load https://api.example.com/v1/ping ca.pem s3cr3t
  probecli load https://api.example.com/v1/ping ca.pem s3cr3t -r 50 -d 30
  probecli knock internal.example.com
  probecli knock internal.example.com --start-port 7000 --end-port 7010 --delay 250
  probecli runs -n 10`,
	Version: version,
}

var loadCmd = &cobra.Command{
	Use:   "load <url> <cacert> <token>",
	Short: "Run a rate-limited HTTP load test",
	Long: `Run a rate-limited HTTP load test.

Issues POST requests with an empty JSON body and a bearer token at a
fixed rate for a fixed duration. Each request's time-to-first-byte is
appended to the results log; failed requests are logged, not fatal.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		defaults, err := config.ReadDefaults(config.DefaultsFile)
		if err != nil {
			return err
		}

		opts := cli.LoadOptions{
			URL:         args[0],
			CACertPath:  args[1],
			BearerToken: args[2],
			RatePerSec:  defaults.Load.RatePerSec,
			DurationSec: defaults.Load.DurationSec,
			TimeoutSec:  defaults.Load.RequestTimeoutSec,
			MaxInFlight: defaults.Load.MaxInFlight,
			LogPath:     defaults.Load.LogPath,
			TruncateLog: defaults.Load.TruncateLog,
		}

		flags := cmd.Flags()
		if flags.Changed("rate") {
			opts.RatePerSec = flagRate
		}
		if flags.Changed("duration") {
			opts.DurationSec = flagDuration
		}
		if flags.Changed("timeout") {
			opts.TimeoutSec = flagTimeout
		}
		if flags.Changed("max-in-flight") {
			opts.MaxInFlight = flagMaxInFlight
		}
		if flags.Changed("log") {
			opts.LogPath = flagLogPath
		}
		if flags.Changed("truncate-log") {
			opts.TruncateLog = flagTruncateLog
		}

		return cli.RunLoad(opts)
	},
}

var knockCmd = &cobra.Command{
	Use:   "knock <host>",
	Short: "Knock on every port in a range, in order",
	Long: `Knock on every port in a range, in order.

Attempts one TCP connection per port, ascending, with a fixed delay
after each attempt. Refused and timed-out ports are the expected
outcome and do not abort the sequence. The scan is deliberately
sequential and throttled; a full 1-65535 sweep at the default 100ms
delay takes close to two hours.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		defaults, err := config.ReadDefaults(config.DefaultsFile)
		if err != nil {
			return err
		}

		opts := cli.KnockOptions{
			Host:              args[0],
			StartPort:         defaults.Knock.StartPort,
			EndPort:           defaults.Knock.EndPort,
			DelayMs:           defaults.Knock.DelayMs,
			ConnectTimeoutSec: defaults.Knock.ConnectTimeoutSec,
		}

		flags := cmd.Flags()
		if flags.Changed("start-port") {
			opts.StartPort = flagStartPort
		}
		if flags.Changed("end-port") {
			opts.EndPort = flagEndPort
		}
		if flags.Changed("delay") {
			opts.DelayMs = flagDelayMs
		}
		if flags.Changed("connect-timeout") {
			opts.ConnectTimeoutSec = flagConnectTimeout
		}

		return cli.RunKnock(opts)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and check for updates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("probecli %s\n", version)
		if !flagCheckUpdate {
			return nil
		}
		update, err := vcheck.CheckForUpdate(cmd.Context(), version)
		if err != nil {
			return fmt.Errorf("update check failed: %w", err)
		}
		if update.Newer() {
			fmt.Printf("A newer version is available: %s (%s)\n", update.Latest, update.URL)
		} else {
			fmt.Println("You are on the latest version.")
		}
		return nil
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List past load test runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		return cli.RunList(flagRunsLimit)
	},
}

// Flags for load
var (
	flagRate        int
	flagDuration    int
	flagTimeout     int
	flagMaxInFlight int
	flagLogPath     string
	flagTruncateLog bool
)

// Flags for knock
var (
	flagStartPort      int
	flagEndPort        int
	flagDelayMs        int
	flagConnectTimeout int
)

// Flags for runs and version
var (
	flagRunsLimit   int
	flagCheckUpdate bool
)

func init() {
	// Flag defaults come from the same table the config file falls back
	// to, so the two cannot drift apart.
	builtin := config.BuiltinDefaults()

	loadCmd.Flags().IntVarP(&flagRate, "rate", "r", builtin.Load.RatePerSec, "Requests per second")
	loadCmd.Flags().IntVarP(&flagDuration, "duration", "d", builtin.Load.DurationSec, "Test duration in seconds")
	loadCmd.Flags().IntVar(&flagTimeout, "timeout", builtin.Load.RequestTimeoutSec, "Per-request timeout in seconds")
	loadCmd.Flags().IntVar(&flagMaxInFlight, "max-in-flight", builtin.Load.MaxInFlight, "Cap on concurrent requests (0 = 2x rate)")
	loadCmd.Flags().StringVarP(&flagLogPath, "log", "l", builtin.Load.LogPath, "Results log file")
	loadCmd.Flags().BoolVar(&flagTruncateLog, "truncate-log", builtin.Load.TruncateLog, "Truncate the results log instead of appending")

	knockCmd.Flags().IntVar(&flagStartPort, "start-port", builtin.Knock.StartPort, "First port in the sequence")
	knockCmd.Flags().IntVar(&flagEndPort, "end-port", builtin.Knock.EndPort, "Last port in the sequence")
	knockCmd.Flags().IntVar(&flagDelayMs, "delay", builtin.Knock.DelayMs, "Delay between attempts in milliseconds")
	knockCmd.Flags().IntVar(&flagConnectTimeout, "connect-timeout", builtin.Knock.ConnectTimeoutSec, "Per-attempt connect timeout in seconds")

	runsCmd.Flags().IntVarP(&flagRunsLimit, "limit", "n", 20, "Maximum number of runs to list")

	versionCmd.Flags().BoolVar(&flagCheckUpdate, "check", false, "Check GitHub for a newer release")

	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(knockCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(versionCmd)
}
