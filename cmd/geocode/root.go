package main

import (
	"log/slog"
	"sync"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/fcc-block-geocoder/internal/config"
	"github.com/couchcryptid/fcc-block-geocoder/internal/observability"
)

// metrics registers with the default Prometheus registry, which allows a
// collector to be registered only once per process.
var metrics = sync.OnceValue(observability.NewMetrics)

type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "block-geocode",
		Short:         "Geocode coordinates to FCC census blocks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.load()
		},
	}
	root.AddCommand(newRunCmd(a), newCheckCmd(a))
	return root
}

// load reads the environment config and installs the process logger as the
// slog default, so failures reported by main share its level and format.
func (a *app) load() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	return nil
}
