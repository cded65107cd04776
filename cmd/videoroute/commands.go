package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/video-route/internal/api"
	"github.com/nerrad567/video-route/internal/controller"
	"github.com/nerrad567/video-route/internal/dispatch"
	"github.com/nerrad567/video-route/internal/drivers/serial"
	"github.com/nerrad567/video-route/internal/infrastructure/logging"
	"github.com/nerrad567/video-route/internal/routing"
	"github.com/nerrad567/video-route/internal/scaling"
)

// newSerialNamesCmd lists the host's serial ports, one "device:description"
// per line, so operators can fill in the serial endpoints' port params.
// Ports without a description are hidden unless --all is given.
func newSerialNamesCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "serial-names",
		Short: "List serial ports as device:description",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ports, err := a.ports()
			if err != nil {
				return fmt.Errorf("listing serial ports: %w", err)
			}
			for _, p := range ports {
				if p.Description == serial.NoDescription && !all {
					continue
				}
				fmt.Fprintln(a.out, p.String())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include ports without a description")
	return cmd
}

// newSelectCmd fires one selection from the shell and prints the execution.
// Endpoint initialisation is never sent and nothing is recorded.
func newSelectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "select <address>",
		Short: "Dispatch one selection, e.g. select \"consoles|snes\"",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			log := logging.New(cfg.Logging, version)

			loader := routing.NewLoader(cfg.Routing.Document)
			loader.SetLogger(log)
			registry := controller.NewRegistry(controller.Builtin(log))
			registry.SetLogger(log)

			exec := dispatch.New(dispatch.Deps{
				Loader: loader,
				Sender: registry,
				Logger: log,
			}).ResolveAndDispatch(cmd.Context(), args[0], dispatch.SourceCLI)

			out, err := json.MarshalIndent(exec, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding execution: %w", err)
			}
			fmt.Fprintln(a.out, string(out))

			switch exec.Status {
			case dispatch.StatusNoMatch:
				return fmt.Errorf("selection %q: %s", args[0], exec.Error)
			case dispatch.StatusFailed:
				return fmt.Errorf("selection %q: every endpoint failed", args[0])
			}
			return nil
		},
	}
}

// newTokenCmd mints a bearer token for the API from security.jwt.secret.
func newTokenCmd(a *app) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token (a zero --ttl never expires)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			token, err := api.IssueToken(cfg.Security.JWT.Secret, subject, ttl)
			if err != nil {
				return fmt.Errorf("issuing token: %w", err)
			}
			fmt.Fprintln(a.out, token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "panel", "token subject, e.g. the panel's name")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime")
	return cmd
}

// newPixelDoubleCmd prints the integer scale and edge offset that fit a
// source resolution into an HD (or, with --uhd, UHD) frame, for entering
// into a scaler profile.
func newPixelDoubleCmd(a *app) *cobra.Command {
	var uhd, ignoreRatio bool
	cmd := &cobra.Command{
		Use:   "pixel-double <width> <height>",
		Short: "Compute integer scaling for a source resolution",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			var in scaling.Size
			var err error
			if in.Width, err = strconv.Atoi(args[0]); err != nil {
				return fmt.Errorf("width %q: %w", args[0], err)
			}
			if in.Height, err = strconv.Atoi(args[1]); err != nil {
				return fmt.Errorf("height %q: %w", args[1], err)
			}

			frame := scaling.FrameHD
			if uhd {
				frame = scaling.FrameUHD
			}
			res, err := scaling.Fit(in, frame, !ignoreRatio)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s to %s [%d:%d]\n", res.In, res.Out, res.ScaleX, res.ScaleY)
			fmt.Fprintf(a.out, "Offset from edge %d x %d\n", res.OffsetX, res.OffsetY)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&uhd, "uhd", "4", false, "fit a 3840x2160 frame instead of 1920x1080")
	cmd.Flags().BoolVarP(&ignoreRatio, "ratio", "r", false, "scale each axis independently, ignoring aspect ratio")
	return cmd
}
