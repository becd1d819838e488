package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/codeharness/internal/exitcode"
	"github.com/ShayCichocki/codeharness/internal/suite"
	"github.com/ShayCichocki/codeharness/pkg/models"
)

var tasksSuitePath string

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List the tasks in a suite and their test cases",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := suite.LoadOrBuiltin(tasksSuitePath)
		if err != nil {
			return exitcode.Usage(err)
		}
		printTasks(cmd.OutOrStdout(), s)
		return nil
	},
}

func init() {
	tasksCmd.Flags().StringVarP(&tasksSuitePath, "suite", "s", "", "Suite YAML file (default: built-in suite)")
}

func printTasks(w io.Writer, s *suite.Suite) {
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(w, "Suite: %s (%d tasks)\n", s.Name, len(s.Tasks))
	for _, t := range s.Tasks {
		fmt.Fprintf(w, "\n%s [%s]\n", bold(t.DisplayName()), t.Language.OrDefault())
		fmt.Fprintf(w, "  Prompt: %s\n", t.Prompt)
		if len(t.Tests) == 0 {
			fmt.Fprintf(w, "  (no test cases; only checks that %s is defined)\n", t.Function)
			continue
		}
		for _, tc := range t.Tests {
			fmt.Fprintf(w, "  %s → %s\n", models.FormatCall(t.Function, tc.Args), models.FormatValue(tc.Expected))
		}
	}
}
