package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hanpama/fedplan/internal/plan"
)

type planFlags struct {
	query     string
	operation string
	format    string
}

func newPlanCmd(a *app) *cobra.Command {
	var f planFlags
	cmd := &cobra.Command{
		Use:   "plan [file]",
		Short: "Print the plan of an operation",
		Long: `Plan reads an operation from --query, from the given file, or from
standard input, and prints its plan. Formats:
  text       indented plan tree (default)
  json       plan as JSON
  documents  the request document of every subgraph fetch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := readQuery(cmd, f.query, args)
			if err != nil {
				return err
			}
			gw, err := a.gateway()
			if err != nil {
				return err
			}
			res, err := gw.Plan(cmd.Context(), query, f.operation)
			if err != nil {
				return err
			}
			return writePlan(cmd.OutOrStdout(), res.Plan, f.format)
		},
	}
	cmd.Flags().StringVarP(&f.query, "query", "q", "", "operation text")
	cmd.Flags().StringVarP(&f.operation, "operation", "o", "", "operation name, required when the document has several")
	cmd.Flags().StringVarP(&f.format, "format", "f", "text", "text, json or documents")
	return cmd
}

func readQuery(cmd *cobra.Command, query string, args []string) (string, error) {
	if query != "" {
		return query, nil
	}
	var data []byte
	var err error
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", errors.Wrap(err, "read operation")
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", errors.New("empty operation")
	}
	return string(data), nil
}

func writePlan(w io.Writer, p *plan.Plan, format string) error {
	switch format {
	case "text":
		_, err := io.WriteString(w, plan.Print(p))
		return err
	case "json":
		data, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	case "documents":
		var err error
		plan.Walk(p.Root, func(n plan.Node) {
			f, ok := plan.FetchOf(n)
			if !ok || err != nil {
				return
			}
			_, err = fmt.Fprintf(w, "# %d %s\n%s\n", f.ID, f.Subgraph, f.Request.Document)
		})
		return err
	}
	return errors.Errorf("unknown format %q", format)
}
