package cmd

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"go.gcemeta.io/gcemeta/metadata"
)

func getCmdGet(root *rootCommand) *cobra.Command {
	var (
		params  []string
		headers []string
	)

	makeRunE := func(resource string) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			client, err := root.newClient()
			if err != nil {
				return err
			}

			opts, err := buildGetOptions(args, params, headers)
			if err != nil {
				return err
			}

			val, err := client.Get(cmd.Context(), resource, opts...)
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, val.Text())
			return nil
		}
	}

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Fetch metadata from the metadata server",
	}
	getCmd.PersistentFlags().StringArrayVar(&params, "param", nil,
		"query parameter as key=value, repeatable, e.g. --param recursive=true")
	getCmd.PersistentFlags().StringArrayVar(&headers, "header", nil,
		"extra request header as key:value, repeatable")

	getCmd.AddCommand(&cobra.Command{
		Use:     "instance [property]",
		Short:   "Fetch instance metadata, optionally a single property",
		Example: "  gcemeta get instance network-interfaces/0/ip",
		Args:    cobra.MaximumNArgs(1),
		RunE:    makeRunE("instance"),
	})
	getCmd.AddCommand(&cobra.Command{
		Use:   "project [property]",
		Short: "Fetch project metadata, optionally a single property",
		Args:  cobra.MaximumNArgs(1),
		RunE:  makeRunE("project"),
	})
	return getCmd
}

func buildGetOptions(args, params, headers []string) ([]metadata.GetOption, error) {
	var opts []metadata.GetOption
	if len(args) > 0 {
		opts = append(opts, metadata.WithProperty(args[0]))
	}

	if len(params) > 0 {
		values := url.Values{}
		for _, p := range params {
			k, v, found := strings.Cut(p, "=")
			if !found || k == "" {
				return nil, fmt.Errorf("invalid query parameter %q, expected key=value", p)
			}
			values.Add(k, v)
		}
		opts = append(opts, metadata.WithParams(values))
	}

	if len(headers) > 0 {
		hdr := http.Header{}
		for _, h := range headers {
			k, v, found := strings.Cut(h, ":")
			if !found || k == "" {
				return nil, fmt.Errorf("invalid header %q, expected key:value", h)
			}
			hdr.Add(strings.TrimSpace(k), strings.TrimSpace(v))
		}
		opts = append(opts, metadata.WithHeaders(hdr))
	}
	return opts, nil
}
