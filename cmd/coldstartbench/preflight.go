package main

import (
	"fmt"

	"k8s-coldstart-benchmark/pkg/logging"
	"k8s-coldstart-benchmark/pkg/service/preflight"

	"github.com/spf13/cobra"
)

var preflightCmd = &cobra.Command{
	Use:   "preflight",
	Short: "Verify the cluster and the tracked workloads before a run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, info, err := newClient(settings)
		if err != nil {
			return err
		}
		catalog, err := settings.Catalog()
		if err != nil {
			return err
		}

		logger := logging.GetLogger()
		svc := preflight.NewPreflightService(client, logger)
		result, err := svc.Check(cmd.Context(), settings.Namespace, catalog.Workloads())
		if err != nil {
			return err
		}
		for _, w := range result.Workloads {
			fmt.Fprintf(cmd.OutOrStdout(), "%-14s %d/%d ready  %s\n", w.Workload, w.Ready, w.Pods, w.Reasons)
		}
		if !result.Healthy() {
			logger.Warn("preflight found workloads that are not fully ready", logging.StringField("context", info.Context))
			return nil
		}
		logger.Info("preflight ok", logging.StringField("context", info.Context))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(preflightCmd)
}
