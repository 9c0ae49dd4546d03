package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tripsplit/tripsplit/internal/cli/groupselect"
)

// Output formats
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

// NewBalancesCmd creates the balances command
func NewBalancesCmd() *cobra.Command {
	var groupID, output string
	var history bool

	cmd := &cobra.Command{
		Use:   "balances",
		Short: "Show who owes whom in a group",
		RunE: func(cmd *cobra.Command, args []string) error {
			if history {
				return runBalanceHistory(cmd.Context(), groupID, output)
			}
			return runBalances(cmd.Context(), groupID, output)
		},
	}

	cmd.Flags().StringVar(&groupID, "group", "", "Group ID (uses the selected group if not specified)")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table, json or yaml")
	cmd.Flags().BoolVar(&history, "history", false, "Show stored balance digests instead of live balances")

	return cmd
}

func checkOutput(output string) error {
	switch output {
	case outputTable, outputJSON, outputYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q (use table, json or yaml)", output)
}

func runBalances(ctx context.Context, groupID, output string, opts ...Option) error {
	if err := checkOutput(output); err != nil {
		return err
	}

	o, err := newOptions(opts)
	if err != nil {
		return err
	}
	api, _, err := requireSession(ctx, o)
	if err != nil {
		return err
	}
	groupID, err = groupselect.ResolveGroup(ctx, api, groupID, o.prompt)
	if err != nil {
		return err
	}

	summary, err := api.Balances(ctx, groupID)
	if err != nil {
		return err
	}

	switch output {
	case outputJSON:
		enc := json.NewEncoder(o.out)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	case outputYAML:
		enc := yaml.NewEncoder(o.out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(summary)
	}

	group, err := api.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	names := memberNames(group)

	fmt.Fprintf(o.out, "Balances in %s (%s):\n\n", group.Name, summary.Currency)
	w := tabwriter.NewWriter(o.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MEMBER\tNET")
	fmt.Fprintln(w, "──────\t───")
	for _, b := range summary.Balances {
		fmt.Fprintf(w, "%s\t%s\n", nameOr(names, b.UserID), formatCents(b.Net))
	}
	w.Flush()

	if len(summary.Settlements) == 0 {
		fmt.Fprintln(o.out, "\nEveryone is settled up.")
		return nil
	}

	fmt.Fprintln(o.out, "\nTo settle up:")
	for _, t := range summary.Settlements {
		fmt.Fprintf(o.out, "  %s pays %s %s %s\n",
			nameOr(names, t.From), nameOr(names, t.To), formatCents(t.Amount), summary.Currency)
	}
	return nil
}

func runBalanceHistory(ctx context.Context, groupID, output string, opts ...Option) error {
	if err := checkOutput(output); err != nil {
		return err
	}

	o, err := newOptions(opts)
	if err != nil {
		return err
	}
	api, _, err := requireSession(ctx, o)
	if err != nil {
		return err
	}
	groupID, err = groupselect.ResolveGroup(ctx, api, groupID, o.prompt)
	if err != nil {
		return err
	}

	snapshots, _, err := api.BalanceHistory(ctx, groupID, 1, 100)
	if err != nil {
		return err
	}

	switch output {
	case outputJSON:
		enc := json.NewEncoder(o.out)
		enc.SetIndent("", "  ")
		return enc.Encode(snapshots)
	case outputYAML:
		enc := yaml.NewEncoder(o.out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(snapshots)
	}

	if len(snapshots) == 0 {
		fmt.Fprintln(o.out, "No balance digests stored yet.")
		return nil
	}

	group, err := api.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	names := memberNames(group)

	w := tabwriter.NewWriter(o.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COMPUTED AT\tMEMBER\tNET")
	fmt.Fprintln(w, "───────────\t──────\t───")
	for _, s := range snapshots {
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			s.ComputedAt.Local().Format("2006-01-02 15:04"),
			nameOr(names, s.UserID),
			formatCents(s.NetCents),
		)
	}
	w.Flush()
	return nil
}
