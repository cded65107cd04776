package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nerrad567/video-route/internal/drivers/serial"
	"github.com/nerrad567/video-route/internal/infrastructure/config"
)

// defaultConfigPath is used when neither --config nor VIDEOROUTE_CONFIG is set.
const defaultConfigPath = "configs/config.yaml"

// app carries the command-line options and the collaborators the commands
// write to. Tests build their own instead of touching package state.
type app struct {
	out   io.Writer
	ports func() ([]serial.PortInfo, error)

	configPath string
	routing    string
	ip         string
	port       int
	resetSkip  bool
}

func newApp(out io.Writer) *app {
	return &app{out: out, ports: serial.ListPorts}
}

// newRootCmd builds the command tree. Running the root command serves.
func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "videoroute",
		Short:         "Source selection and video routing service",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", configPathFromEnv(), "service configuration file")
	flags.StringVar(&a.routing, "routing", "", "routing document (overrides routing.document)")

	local := root.Flags()
	local.StringVar(&a.ip, "ip", "", "listen address (overrides api.host)")
	local.IntVar(&a.port, "port", 0, "listen port (overrides api.port)")
	local.BoolVar(&a.resetSkip, "reset-skip", false, "do not send endpoint initialisation commands at startup")

	root.AddCommand(
		newSerialNamesCmd(a),
		newSelectCmd(a),
		newTokenCmd(a),
		newPixelDoubleCmd(a),
	)
	return root
}

// configPathFromEnv returns VIDEOROUTE_CONFIG, falling back to the default path.
func configPathFromEnv() string {
	if path := os.Getenv("VIDEOROUTE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadConfig loads the service configuration and applies the flags that
// were set explicitly on the command line.
//
// Parameters:
//   - flags: The invoked command's flag set (local and inherited)
//
// Returns:
//   - *config.Config: Validated configuration
//   - error: If loading or validation fails
func (a *app) loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if flags.Changed("routing") {
		cfg.Routing.Document = a.routing
	}
	if flags.Lookup("ip") != nil && flags.Changed("ip") {
		cfg.API.Host = a.ip
	}
	if flags.Lookup("port") != nil && flags.Changed("port") {
		cfg.API.Port = a.port
	}
	if flags.Lookup("reset-skip") != nil && flags.Changed("reset-skip") {
		cfg.Routing.SkipInit = a.resetSkip
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating flags: %w", err)
	}
	return cfg, nil
}
