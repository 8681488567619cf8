package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"leadflow/internal/workflow"
)

func newStagesCommand() *cobra.Command {
	var asJSON, reactivation bool
	cmd := &cobra.Command{
		Use:   "stages",
		Short: "Print the stage graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := workflow.NewRegistry(workflow.WithReactivation(reactivation))
			out := cmd.OutOrStdout()

			if asJSON {
				graph := map[string][]string{}
				for _, st := range reg.AllStages() {
					nexts, _ := reg.AllowedTransitions(st)
					names := make([]string, 0, len(nexts))
					for _, n := range nexts {
						names = append(names, string(n))
					}
					graph[string(st)] = names
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(graph)
			}

			rows := make([][]string, 0, len(reg.AllStages()))
			for _, st := range reg.AllStages() {
				nexts, _ := reg.AllowedTransitions(st)
				names := make([]string, 0, len(nexts))
				for _, n := range nexts {
					names = append(names, string(n))
				}
				next := strings.Join(names, ", ")
				if reg.IsTerminal(st) {
					next = "(terminal)"
					if targets, _ := reg.ReactivationTargets(st); len(targets) > 0 {
						next = fmt.Sprintf("(terminal, reopens to %v)", targets)
					}
				}
				rows = append(rows, []string{string(st), st.Label(), next})
			}
			_, err := fmt.Fprintln(out, renderTable([]string{"STAGE", "LABEL", "NEXT"}, rows))
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	cmd.Flags().BoolVar(&reactivation, "reactivation", false, "Show reactivation targets")
	return cmd
}
