// dslcheck validates ontology-linking DSL queries from the command line,
// printing diagnostics, the estimated query cost, and (optionally) the
// parsed trees. Handy for checking rule queries before pasting them into the
// review UI.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ontolink/ontolink/config"
	"github.com/ontolink/ontolink/dsl"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var showTrees bool

	cmd := &cobra.Command{
		Use:   "dslcheck [query]",
		Short: "Validate an ontology-linking DSL query",
		Long: `Validate a DSL query against the guardrail limits.

The query is taken from the first argument, or from stdin when no argument
is given. Macros are not resolved (there is no registry on the command
line), so macro references report as not found.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readQuery(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			cfg := config.Default()
			if configPath != "" {
				cfg, err = config.Load(configPath)
				if err != nil {
					return err
				}
			}

			engine := dsl.NewEngine(cfg.Guardrails.Limits(), nil, nil)
			result := engine.Validate(text)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "query cost: %d\n", result.QueryCost)
			for _, e := range result.Errors {
				if e.Position > 0 {
					fmt.Fprintf(out, "error at offset %d: %s\n", e.Position, e.Message)
				} else {
					fmt.Fprintf(out, "error: %s\n", e.Message)
				}
			}
			if showTrees {
				data, err := json.MarshalIndent(result.Trees, "", "  ")
				if err != nil {
					return fmt.Errorf("encoding trees: %w", err)
				}
				fmt.Fprintln(out, string(data))
			}
			if !result.Valid() {
				return fmt.Errorf("%d validation error(s)", len(result.Errors))
			}
			fmt.Fprintln(out, "ok")
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "YAML config file with guardrail limits")
	cmd.Flags().BoolVar(&showTrees, "trees", false, "print the parsed expression trees as JSON")
	cmd.SilenceUsage = true
	return cmd
}

func readQuery(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("reading query from stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("no query given: pass it as an argument or on stdin")
	}
	return text, nil
}
