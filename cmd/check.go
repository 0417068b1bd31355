package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	sqlpkg "github.com/ekaya-inc/ekaya-guard/pkg/sql"
)

// exitRejected is the status of check when the query would be blocked.
const exitRejected = 2

// CheckOptions holds options for the check command.
type CheckOptions struct {
	AllowModifications bool
	Format             string // table, json or yaml
}

type checkReport struct {
	Safe                 bool     `json:"is_safe" yaml:"is_safe"`
	Code                 string   `json:"code,omitempty" yaml:"code,omitempty"`
	Message              string   `json:"message" yaml:"message"`
	Offending            string   `json:"offending,omitempty" yaml:"offending,omitempty"`
	FirstCommand         string   `json:"first_command" yaml:"first_command"`
	DangerousCommands    []string `json:"dangerous_commands" yaml:"dangerous_commands"`
	DangerousPatterns    []string `json:"dangerous_patterns" yaml:"dangerous_patterns"`
	ModificationCommands []string `json:"modification_commands" yaml:"modification_commands"`
	ConditionalCommands  []string `json:"conditional_commands" yaml:"conditional_commands"`
	CleanedQuery         string   `json:"cleaned_query" yaml:"cleaned_query"`
}

func newCheckCommand() *cobra.Command {
	opts := &CheckOptions{}
	cmd := &cobra.Command{
		Use:   "check <sql>",
		Short: "Classify a query without executing it",
		Long: `Run a query through the same classifier execute_query uses and print the
findings. Nothing is sent to a database.

The command exits with status 2 when the query would be rejected.`,
		Example: `  ekaya-guard check "SELECT * FROM users"
  ekaya-guard check "DELETE FROM users" --allow-modifications
  ekaya-guard check "SELECT 1; DROP TABLE t" --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.AllowModifications, "allow-modifications", false, "Accept INSERT, UPDATE and other modification commands")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "table", "Output format: table, json, yaml")
	return cmd
}

func runCheck(w io.Writer, query string, opts *CheckOptions) error {
	verdict := sqlpkg.Classify(query, opts.AllowModifications)
	report := checkReport{
		Safe:                 verdict.IsSafe,
		Code:                 string(verdict.Code),
		Message:              verdict.Reason,
		Offending:            verdict.Offending,
		FirstCommand:         verdict.FirstCommand,
		DangerousCommands:    verdict.DangerousCommands,
		DangerousPatterns:    verdict.DangerousPatterns,
		ModificationCommands: verdict.ModificationCommands,
		ConditionalCommands:  verdict.ConditionalCommands,
		CleanedQuery:         sqlpkg.CleanQuery(query),
	}

	var err error
	switch strings.ToLower(opts.Format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(report)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		err = enc.Encode(report)
		if err == nil {
			err = enc.Close()
		}
	case "table", "":
		renderCheckTable(w, report)
	default:
		return fmt.Errorf("unknown format %q (expected table, json or yaml)", opts.Format)
	}
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if !report.Safe {
		return &exitError{code: exitRejected}
	}
	return nil
}

func renderCheckTable(w io.Writer, r checkReport) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	status := "ALLOWED"
	if !r.Safe {
		status = "REJECTED"
	}
	t.AppendHeader(table.Row{"Check", "Result"})
	t.AppendRow(table.Row{"Status", status})
	if r.Code != "" {
		t.AppendRow(table.Row{"Code", r.Code})
	}
	t.AppendRow(table.Row{"Message", r.Message})
	t.AppendRow(table.Row{"First command", r.FirstCommand})
	t.AppendSeparator()
	t.AppendRow(table.Row{"Dangerous commands", joinOrDash(r.DangerousCommands)})
	t.AppendRow(table.Row{"Dangerous patterns", joinOrDash(r.DangerousPatterns)})
	t.AppendRow(table.Row{"Modification commands", joinOrDash(r.ModificationCommands)})
	t.AppendRow(table.Row{"Conditional commands", joinOrDash(r.ConditionalCommands)})
	t.AppendSeparator()
	t.AppendRow(table.Row{"Cleaned query", r.CleanedQuery})
	t.Render()
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
