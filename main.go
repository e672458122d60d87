// Package main provides a local hardware self-test that checks the
// microphone, the camera and the network connection before a call.
//
// Usage:
//
//	selftest [--config path/to/config.json] <command>
//
// If --config is not specified, selftest looks for config.json in the same
// directory as the binary.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/oszuidwest/zwfm-selftest/internal/audio"
	"github.com/oszuidwest/zwfm-selftest/internal/capture"
	"github.com/oszuidwest/zwfm-selftest/internal/config"
	"github.com/oszuidwest/zwfm-selftest/internal/network"
	"github.com/oszuidwest/zwfm-selftest/internal/readiness"
	"github.com/oszuidwest/zwfm-selftest/internal/selftest"
	"github.com/oszuidwest/zwfm-selftest/internal/types"
	"github.com/oszuidwest/zwfm-selftest/internal/util"
)

// errNotReady makes the process exit non-zero without printing twice.
var errNotReady = errors.New("not ready")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), util.ShutdownSignals()...)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errNotReady) {
			slog.Error("command failed", "error", err)
		}
		os.Exit(1)
	}
}

// rootOptions holds the persistent flags.
type rootOptions struct {
	configPath string
	logLevel   string
	noColor    bool
	level      slog.LevelVar
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{logLevel: "info"}

	cmd := &cobra.Command{
		Use:           "selftest",
		Short:         "Check microphone, camera and connectivity before going on air",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup()
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config file (default: config.json next to binary)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", opts.logLevel, "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(
		newServeCommand(opts),
		newMicCommand(opts),
		newCameraCommand(opts),
		newNetworkCommand(opts),
		newCheckCommand(opts),
		newDevicesCommand(),
		newVersionCommand(),
	)
	return cmd
}

// setup configures logging and color output from the flags.
func (o *rootOptions) setup() error {
	if err := o.level.UnmarshalText([]byte(strings.TrimSpace(o.logLevel))); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", o.logLevel, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &o.level})))
	if o.noColor {
		color.NoColor = true
	}
	return nil
}

// app is the wiring shared by every command that runs tests.
type app struct {
	cfg             *config.Config
	session         *selftest.Session
	feed            *changeFeed
	ffmpegAvailable bool
}

// load reads the configuration and builds a session on the process platform.
func (o *rootOptions) load() (*app, error) {
	path := o.configPath
	if path == "" {
		execPath, err := os.Executable()
		if err != nil {
			return nil, util.WrapError("get executable path", err)
		}
		path = filepath.Join(filepath.Dir(execPath), "config.json")
	}
	slog.Debug("using config file", "path", path)

	cfg := config.New(path)
	if err := cfg.Load(); err != nil {
		return nil, util.WrapError("load config", err)
	}

	ffmpegPath := util.ResolveFFmpegPath(cfg.GetFFmpegPath())
	ffmpegAvailable := ffmpegPath != ""
	if !ffmpegAvailable {
		slog.Warn("FFmpeg not found - capture may fail", "configured_path", cfg.GetFFmpegPath())
	} else {
		slog.Debug("FFmpeg found", "path", ffmpegPath)
	}

	snap := cfg.Snapshot()
	feed := &changeFeed{}
	session := selftest.NewSession(
		capture.NewProcessPlatform(cfg.ProcessConfig),
		network.NewSchemeProber(),
		selftest.Options{
			Scheduler:    audio.NewIntervalScheduler(snap.MeterFPS),
			PeakHold:     snap.PeakHold,
			Connectivity: cfg.NetworkConfig,
			Publish:      feed.Publish,
		},
	)

	return &app{
		cfg:             cfg,
		session:         session,
		feed:            feed,
		ffmpegAvailable: ffmpegAvailable,
	}, nil
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the self-test web API and live WebSocket stream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := opts.load()
			if err != nil {
				return err
			}

			srv := NewServer(ctx, a.cfg, a.session, a.feed, listDevices, a.ffmpegAvailable)
			httpServer := srv.Start()

			<-ctx.Done()
			slog.Info("shutting down")

			srv.version.Stop()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			var errs []error
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, util.WrapError("shut down HTTP server", err))
			}
			if err := a.session.Close(); err != nil {
				errs = append(errs, util.WrapError("stop device tests", err))
			}
			slog.Info("shutdown complete")
			return errors.Join(errs...)
		},
	}
}

func newMicCommand(opts *rootOptions) *cobra.Command {
	duration := 5 * time.Second
	cmd := &cobra.Command{
		Use:   "mic",
		Short: "Meter the microphone and classify its input",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.load()
			if err != nil {
				return err
			}
			defer closeSession(a.session)

			if err := runMicrophone(cmd.Context(), a.session, duration, cmd.OutOrStdout(), true); err != nil {
				return err
			}
			return verdict(a.session, readiness.Microphone)
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", duration, "How long to meter the microphone")
	return cmd
}

func newCameraCommand(opts *rootOptions) *cobra.Command {
	duration := 3 * time.Second
	cmd := &cobra.Command{
		Use:   "camera",
		Short: "Open the camera and report its resolution",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.load()
			if err != nil {
				return err
			}
			defer closeSession(a.session)

			if err := runCamera(cmd.Context(), a.session, duration, cmd.OutOrStdout()); err != nil {
				return err
			}
			return verdict(a.session, readiness.Camera)
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", duration, "How long to wait for the camera resolution")
	return cmd
}

func newNetworkCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "network",
		Short: "Measure latency and jitter to the configured endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.load()
			if err != nil {
				return err
			}
			if err := runNetwork(cmd.Context(), a.session, cmd.OutOrStdout(), true); err != nil {
				return err
			}
			return verdict(a.session, readiness.Connectivity)
		},
	}
}

func newCheckCommand(opts *rootOptions) *cobra.Command {
	micDuration := 5 * time.Second
	cameraDuration := 3 * time.Second
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run every test concurrently and print the readiness report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.load()
			if err != nil {
				return err
			}
			defer closeSession(a.session)

			out := cmd.ErrOrStderr()
			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error { return runMicrophone(ctx, a.session, micDuration, out, false) })
			g.Go(func() error { return runCamera(ctx, a.session, cameraDuration, out) })
			g.Go(func() error { return runNetwork(ctx, a.session, out, false) })
			if err := g.Wait(); err != nil {
				return err
			}

			report := a.session.Readiness.Report()
			fmt.Fprintln(cmd.OutOrStdout())
			readiness.Render(cmd.OutOrStdout(), report)
			if !report.Ready {
				return errNotReady
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&micDuration, "mic-duration", micDuration, "How long to meter the microphone")
	cmd.Flags().DurationVar(&cameraDuration, "camera-duration", cameraDuration, "How long to wait for the camera resolution")
	return cmd
}

func newDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List the available capture devices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			list := listDevices()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tID\tNAME")
			for _, d := range append(list.Audio, list.Video...) {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Kind, d.ID, d.Name)
			}
			return tw.Flush()
		},
	}
}

func newVersionCommand() *cobra.Command {
	var checkUpdate bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			vc := NewVersionChecker()
			if checkUpdate {
				if err := vc.CheckNow(cmd.Context()); err != nil {
					slog.Warn("update check failed", "error", err)
				}
			}
			info := vc.Info()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "selftest %s (commit %s, built %s)\n", info.Current, info.Commit, info.BuildTime)
			if info.UpdateAvail {
				fmt.Fprintf(out, "update available: %s\n", info.Latest)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkUpdate, "check", false, "Check for a newer release")
	return cmd
}

// listDevices lists audio and video capture devices.
func listDevices() types.DeviceList {
	var list types.DeviceList
	var g errgroup.Group
	g.Go(func() error {
		list.Audio = capture.Devices(capture.Audio)
		return nil
	})
	g.Go(func() error {
		list.Video = capture.Devices(capture.Video)
		return nil
	})
	_ = g.Wait() //nolint:errcheck // Listing never fails; it falls back to defaults
	return list
}

// verdict fails when component c was not tested or did not pass.
func verdict(s *selftest.Session, c readiness.Component) error {
	res, ok := s.Readiness.Result(c)
	if !ok {
		return fmt.Errorf("%s was not tested", c)
	}
	if !res.Passed {
		return errNotReady
	}
	return nil
}

func closeSession(s *selftest.Session) {
	if err := s.Close(); err != nil {
		slog.Error("failed to stop device tests", "error", err)
	}
}
