package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"payoff/internal/core"
)

const twoDebts = `[
  {"id":"visa","name":"Visa","balance":"2500","minimumPayment":"75","interestRate":"19.99"},
  {"id":"store","name":"Store card","balance":"600","minimumPayment":"30","interestRate":"8.9"}
]`

func writeDebts(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "debts.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"simulate", "compare"} {
		if !names[want] {
			t.Errorf("missing subcommand %q", want)
		}
	}
}

func TestSimulateCommand_JSON(t *testing.T) {
	path := writeDebts(t, `[{"id":"loan","balance":"1000","minimumPayment":"100","interestRate":"0"}]`)

	out, err := run(t, "simulate", "--file", path, "--method", "snowball", "--json")
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	var got core.SimulationOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got.Aggregate.TotalMonthsToPayoff != 10 {
		t.Errorf("months = %d, want 10", got.Aggregate.TotalMonthsToPayoff)
	}
}

func TestSimulateCommand_Table(t *testing.T) {
	path := writeDebts(t, twoDebts)

	out, err := run(t, "simulate", "-f", path, "-m", "Avalanche", "-e", "100")
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	for _, want := range []string{"Method:", "avalanche", "Visa (visa)", "Months to payoff:", "Interest saved:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSimulateCommand_Errors(t *testing.T) {
	good := writeDebts(t, twoDebts)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing file flag", []string{"simulate"}, "required flag"},
		{"unknown method", []string{"simulate", "-f", good, "-m", "fastest"}, "must be one of"},
		{"bad extra", []string{"simulate", "-f", good, "-e", "lots"}, "invalid --extra"},
		{"negative extra", []string{"simulate", "-f", good, "--extra=-5"}, "invalid --extra"},
		{"missing file", []string{"simulate", "-f", filepath.Join(t.TempDir(), "none.json")}, "open debts file"},
		{"unknown field", []string{"simulate", "-f", writeDebts(t, `[{"id":"a","apr":"5"}]`)}, "parse debts file"},
		{"invalid debt", []string{"simulate", "-f", writeDebts(t, `[{"id":"a","balance":"100","minimumPayment":"0","interestRate":"5"}]`)}, "minimumPayment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestCompareCommand(t *testing.T) {
	path := writeDebts(t, twoDebts)

	out, err := run(t, "compare", "-f", path, "-e", "100")
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	for _, m := range core.Methods() {
		if !strings.Contains(out, string(m)) {
			t.Errorf("output missing %s:\n%s", m, out)
		}
	}
	if !strings.Contains(out, "best") {
		t.Errorf("best method not marked:\n%s", out)
	}

	out, err = run(t, "compare", "-f", path, "-e", "100", "--methods", "snowball,avalanche", "--json")
	if err != nil {
		t.Fatalf("compare --json: %v", err)
	}
	var cmp core.Comparison
	if err := json.Unmarshal([]byte(out), &cmp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cmp.Outputs) != 2 || cmp.Best != core.Avalanche {
		t.Errorf("unexpected comparison: best %s, %d outputs", cmp.Best, len(cmp.Outputs))
	}
}

func TestExecute(t *testing.T) {
	if code := Execute(context.Background(), []string{"simulate"}); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger("debug", "cli")
	if logger.Component() != "cli" {
		t.Errorf("component = %q", logger.Component())
	}
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug level should be enabled")
	}
}
