package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/fcc-block-geocoder/internal/pipeline"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the FCC API answers a known point correctly",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := metrics()
			runner := pipeline.New(newGeocoder(a.cfg, a.logger, m), nil, a.logger, m)
			if err := runner.Preflight(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "preflight passed:", a.cfg.FCCBaseURL)
			return nil
		},
	}
}
