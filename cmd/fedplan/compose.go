package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hanpama/fedplan/internal/schema"
)

func newComposeCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Validate the schema documents and print the client-facing schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gw, err := a.gateway()
			if err != nil {
				return err
			}
			sdl := schema.Render(gw.Schema())
			if out == "" {
				_, err = io.WriteString(cmd.OutOrStdout(), sdl)
				return err
			}
			return os.WriteFile(out, []byte(sdl), 0o644)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "write the schema to this file instead of standard output")
	return cmd
}
