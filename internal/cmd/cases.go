package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aghaabbasq/wdio-testrail-cucumber-reporter/internal/caseid"
	"github.com/aghaabbasq/wdio-testrail-cucumber-reporter/internal/events"
	"github.com/aghaabbasq/wdio-testrail-cucumber-reporter/internal/gotest"
	"github.com/aghaabbasq/wdio-testrail-cucumber-reporter/internal/output"
)

var (
	casesJSON      bool
	casesUnmatched bool
)

var casesCmd = &cobra.Command{
	Use:   "cases [file|-]",
	Short: "List the case ids found in a go test -json stream",
	Long: `List every finished test of a "go test -json" stream with the case ids
taken from its name and testrail.Case tags. No configuration is needed
and nothing is sent to TestRail.

Examples:
  go test -json ./... | testrail-reporter cases
  testrail-reporter cases results.json --unmatched`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCases,
}

func init() {
	casesCmd.Flags().BoolVar(&casesJSON, "json", false, "output as JSON")
	casesCmd.Flags().BoolVar(&casesUnmatched, "unmatched", false, "only list tests without a case id")
}

// TestCases is one finished test and the case ids it maps to.
type TestCases struct {
	Test    string `json:"test"`
	Outcome string `json:"outcome"`
	CaseIDs []int  `json:"case_ids"`
}

func runCases(cmd *cobra.Command, args []string) error {
	in, closeIn, err := openStream(cmd, args)
	if err != nil {
		return err
	}
	defer closeIn()

	var found []TestCases
	bus := events.NewBus()
	for name, outcome := range map[string]string{
		events.TestPass:    "passed",
		events.TestFail:    "failed",
		events.TestPending: "pending",
	} {
		outcome := outcome
		bus.On(name, func(p interface{}) error {
			ev, ok := p.(events.Test)
			if !ok {
				return fmt.Errorf("unexpected payload %T", p)
			}
			ids := caseid.ExtractAll(append([]string{ev.Title}, ev.Tags...)...)
			if casesUnmatched && len(ids) > 0 {
				return nil
			}
			found = append(found, TestCases{Test: ev.Title, Outcome: outcome, CaseIDs: ids})
			return nil
		})
	}

	src := gotest.NewSource(bus, gotest.DefaultCapabilities(""), gotest.WithLogger(log))
	if err := src.Consume(in); err != nil {
		return err
	}

	if casesJSON {
		if found == nil {
			found = []TestCases{}
		}
		data, err := json.MarshalIndent(found, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal cases: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(found) == 0 {
		cmd.Println("No tests found.")
		return nil
	}

	table := output.NewTable("Test", "Outcome", "Cases")
	matched := 0
	for _, tc := range found {
		ids := make([]string, 0, len(tc.CaseIDs))
		for _, id := range tc.CaseIDs {
			ids = append(ids, fmt.Sprintf("C%d", id))
		}
		cell := strings.Join(ids, " ")
		if cell == "" {
			cell = output.Color("-", output.Dim)
		} else {
			matched++
		}
		table.AddRow(output.Truncate(tc.Test, 60), output.StatusLabel(tc.Outcome), cell)
	}
	cmd.Print(table.Render())
	cmd.Printf("\n%d of %d test(s) matched a case\n", matched, len(found))
	return nil
}
