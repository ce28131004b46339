package cmd

import (
	"errors"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var errNotDetected = errors.New("no GCE metadata server detected")

func getCmdDetect(root *rootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Check whether a GCE metadata server is reachable",
		Long: "Probes the metadata server on both its link-local address and its DNS\n" +
			"name and reports the verdict. Exits 0 when a server was detected and 1\n" +
			"otherwise, so it is usable from shell scripts.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := root.newClient()
			if err != nil {
				return err
			}
			if !client.Available(cmd.Context()) {
				return errNotDetected
			}
			color.New(color.FgGreen).Fprintln(stdout, "GCE metadata server detected")
			return nil
		},
	}
}
