package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"payoff/internal/core"
	"payoff/internal/payoff"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// NewRootCommand creates the payoff-cli command tree.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "payoff-cli",
		Short:         "Project debt payoff plans offline",
		Long:          "payoff-cli reads a JSON array of debts and projects month by month how\nlong they take to pay off under the snowball, avalanche or custom method.",
		Version:       fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newSimulateCmd(), newCompareCmd())
	return cmd
}

// Execute runs the root command and reports errors on stderr.
func Execute(ctx context.Context, args []string) int {
	root := NewRootCommand()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
		return 1
	}
	return 0
}

func newSimulateCmd() *cobra.Command {
	var (
		file    string
		method  string
		extra   string
		asJSON  bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Project one payoff method",
		Example: "  payoff-cli simulate --file debts.json --method avalanche --extra 200\n" +
			"  payoff-cli simulate --file debts.json --method custom --json",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			debts, err := readDebtsFile(file)
			if err != nil {
				return err
			}
			strategy, err := parseStrategy(method, extra)
			if err != nil {
				return err
			}

			out, err := withTimeout(cmd.Context(), timeout, func() (core.SimulationOutput, error) {
				return payoff.Simulate(debts, strategy)
			})
			if err != nil {
				return fmt.Errorf("simulate: %w", err)
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), out)
			}
			return printSimulation(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file holding an array of debts (- for stdin) [REQUIRED]")
	cmd.Flags().StringVarP(&method, "method", "m", string(core.Avalanche), "payoff method (snowball, avalanche, custom)")
	cmd.Flags().StringVarP(&extra, "extra", "e", "0", "extra amount paid every month")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "give up after this long")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newCompareCmd() *cobra.Command {
	var (
		file    string
		extra   string
		methods []string
		asJSON  bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:     "compare",
		Short:   "Compare payoff methods side by side",
		Example: "  payoff-cli compare --file debts.json --extra 200",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			debts, err := readDebtsFile(file)
			if err != nil {
				return err
			}
			amount, err := core.ParseMoney(extra)
			if err != nil {
				return fmt.Errorf("invalid --extra %q: %w", extra, err)
			}
			parsed := make([]core.Method, 0, len(methods))
			for _, m := range methods {
				pm, err := core.ParseMethod(m)
				if err != nil {
					return err
				}
				parsed = append(parsed, pm)
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			cmp, err := payoff.Compare(ctx, debts, amount, parsed...)
			if err != nil {
				return fmt.Errorf("compare: %w", err)
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), cmp)
			}
			return printComparison(cmd.OutOrStdout(), cmp)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file holding an array of debts (- for stdin) [REQUIRED]")
	cmd.Flags().StringVarP(&extra, "extra", "e", "0", "extra amount paid every month")
	cmd.Flags().StringSliceVar(&methods, "methods", nil, "methods to compare (default all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "give up after this long")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func parseStrategy(method, extra string) (core.Strategy, error) {
	m, err := core.ParseMethod(method)
	if err != nil {
		return core.Strategy{}, err
	}
	amount, err := core.ParseMoney(extra)
	if err != nil {
		return core.Strategy{}, fmt.Errorf("invalid --extra %q: %w", extra, err)
	}
	return core.Strategy{Method: m, ExtraPayment: amount}, nil
}

func readDebtsFile(path string) ([]core.Debt, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open debts file: %w", err)
		}
		defer f.Close()
		r = f
	}

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var debts []core.Debt
	if err := dec.Decode(&debts); err != nil {
		return nil, fmt.Errorf("parse debts file %s: %w", path, err)
	}
	return debts, nil
}

// withTimeout runs fn and stops waiting for it once timeout passes.
func withTimeout[T any](ctx context.Context, timeout time.Duration, fn func() (T, error)) (T, error) {
	if timeout <= 0 {
		return fn()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()

	select {
	case res := <-ch:
		return res.v, res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSimulation(w io.Writer, out core.SimulationOutput) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Method:\t%s\n", out.Method)
	fmt.Fprintf(tw, "Extra payment:\t%s\n\n", out.ExtraPayment)

	fmt.Fprintln(tw, "DEBT\tPAID OFF\tMONTH\tINTEREST\tTOTAL PAID\tREMAINING")
	for _, r := range out.Results {
		month := "-"
		if r.PaidOff {
			month = fmt.Sprint(r.PayoffMonth)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			label(r), yesNo(r.PaidOff), month, r.TotalInterestPaid, r.TotalPaid, r.RemainingBalance)
	}

	fmt.Fprintf(tw, "\nMonths to payoff:\t%d\n", out.Aggregate.TotalMonthsToPayoff)
	fmt.Fprintf(tw, "Total interest:\t%s\n", out.Aggregate.TotalInterestPaid)
	fmt.Fprintf(tw, "Total paid:\t%s\n", out.Aggregate.TotalPaid)
	fmt.Fprintf(tw, "Interest saved:\t%s\n", out.Savings.InterestSaved)
	fmt.Fprintf(tw, "Months saved:\t%d\n", out.Savings.MonthsSaved)
	if err := tw.Flush(); err != nil {
		return err
	}
	return printWarnings(w, out.Warnings)
}

func printComparison(w io.Writer, cmp core.Comparison) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "METHOD\tMONTHS\tINTEREST\tTOTAL PAID\tCEILING\t")
	for _, m := range core.Methods() {
		out, ok := cmp.Outputs[m]
		if !ok {
			continue
		}
		best := ""
		if m == cmp.Best {
			best = "best"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n",
			m, out.Aggregate.TotalMonthsToPayoff, out.Aggregate.TotalInterestPaid,
			out.Aggregate.TotalPaid, yesNo(out.HitCeiling), best)
	}
	return tw.Flush()
}

func printWarnings(w io.Writer, warnings []core.Warning) error {
	if len(warnings) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString("\nWarnings:\n")
	for _, wn := range warnings {
		b.WriteString("  - ")
		if wn.DebtID != "" {
			b.WriteString(wn.DebtID + ": ")
		}
		b.WriteString(wn.Message + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func label(r core.PayoffResult) string {
	if r.Name != "" && r.Name != r.DebtID {
		return fmt.Sprintf("%s (%s)", r.Name, r.DebtID)
	}
	return r.DebtID
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
