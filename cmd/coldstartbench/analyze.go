package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"k8s-coldstart-benchmark/pkg/coldstart"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [workload]",
	Short: "Measure the cold start of a single workload",
	Long:  "Measure the cold start of a single workload. Without an argument the workload is read from stdin.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := settings.Catalog()
		if err != nil {
			return err
		}
		var w coldstart.Workload
		if len(args) == 1 {
			w, err = catalog.Lookup(args[0])
		} else {
			w, err = selectWorkload(cmd.InOrStdin(), cmd.OutOrStdout(), catalog)
		}
		if err != nil {
			return err
		}
		return runMeasurement(cmd, w.Name)
	},
}

func init() {
	addRunFlags(analyzeCmd)
	rootCmd.AddCommand(analyzeCmd)
}

// selectWorkload prompts for one workload name and validates it before any
// cluster call is made.
func selectWorkload(in io.Reader, out io.Writer, catalog *coldstart.Catalog) (coldstart.Workload, error) {
	fmt.Fprintf(out, "Available workloads: %s\n", strings.Join(catalog.Names(), ", "))
	fmt.Fprint(out, "Workload to analyze: ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return coldstart.Workload{}, fmt.Errorf("read workload: %w", err)
	}
	name := strings.TrimSpace(line)
	if name == "" {
		return coldstart.Workload{}, fmt.Errorf("no workload given")
	}
	return catalog.Lookup(name)
}
