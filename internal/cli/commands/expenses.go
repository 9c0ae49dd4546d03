package commands

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tripsplit/tripsplit/internal/cli/client"
	"github.com/tripsplit/tripsplit/internal/cli/groupselect"
)

// addExpenseInput is what the user typed for "expenses add"
type addExpenseInput struct {
	GroupID      string
	Description  string
	Amount       string
	Currency     string
	PaidBy       string
	Split        string
	Participants []string
	Shares       []string // user=amount
	Date         string   // YYYY-MM-DD
}

// NewExpensesCmd creates the expenses command and its subcommands
func NewExpensesCmd() *cobra.Command {
	var groupID string

	cmd := &cobra.Command{
		Use:     "expenses",
		Aliases: []string{"expense", "exp"},
		Short:   "Record and list shared expenses",
	}
	cmd.PersistentFlags().StringVar(&groupID, "group", "", "Group ID (uses the selected group if not specified)")

	var page, limit int
	ls := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List a group's expenses, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExpensesList(cmd.Context(), groupID, page, limit)
		},
	}
	ls.Flags().IntVar(&page, "page", 1, "Page number")
	ls.Flags().IntVar(&limit, "limit", 20, "Expenses per page")

	var in addExpenseInput
	add := &cobra.Command{
		Use:   "add <description> <amount>",
		Short: "Record an expense",
		Long: `Record an expense paid by you (or --paid-by) and split between members.

By default the amount is split equally between every member of the group.
Use --participant to restrict the equal split, or --split exact with one
--share user=amount per participant.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.GroupID = groupID
			in.Description = args[0]
			in.Amount = args[1]
			return runExpensesAdd(cmd.Context(), in)
		},
	}
	add.Flags().StringVar(&in.Currency, "currency", "", "Currency code (defaults to the group currency)")
	add.Flags().StringVar(&in.PaidBy, "paid-by", "", "User ID of the payer (defaults to you)")
	add.Flags().StringVar(&in.Split, "split", "equal", "Split method: equal or exact")
	add.Flags().StringArrayVar(&in.Participants, "participant", nil, "User ID sharing an equal split (repeatable)")
	add.Flags().StringArrayVar(&in.Shares, "share", nil, "Exact share as user=amount (repeatable)")
	add.Flags().StringVar(&in.Date, "date", "", "Date the money was spent (YYYY-MM-DD)")

	rm := &cobra.Command{
		Use:     "rm <expense-id>",
		Aliases: []string{"delete"},
		Short:   "Delete an expense you paid (group owners may delete any)",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExpensesDelete(cmd.Context(), groupID, args[0])
		},
	}

	cmd.AddCommand(ls, add, rm)
	return cmd
}

func runExpensesList(ctx context.Context, groupID string, page, limit int, opts ...Option) error {
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

	group, err := api.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	expenses, pagination, err := api.ListExpenses(ctx, groupID, page, limit)
	if err != nil {
		return err
	}

	if len(expenses) == 0 {
		fmt.Fprintf(o.out, "No expenses in %s yet.\n", group.Name)
		fmt.Fprintln(o.out, "\nRecord one with: tripsplit expenses add <description> <amount>")
		return nil
	}

	names := memberNames(group)

	fmt.Fprintf(o.out, "Expenses in %s:\n\n", group.Name)
	w := tabwriter.NewWriter(o.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tDESCRIPTION\tPAID BY\tAMOUNT\tSPLIT")
	fmt.Fprintln(w, "──\t────\t───────────\t───────\t──────\t─────")
	for _, e := range expenses {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s %s\t%s\n",
			e.ID,
			e.SpentAt.Local().Format("2006-01-02"),
			e.Description,
			nameOr(names, e.PaidByID),
			formatCents(e.AmountCents),
			e.Currency,
			e.SplitMethod,
		)
	}
	w.Flush()

	if pagination != nil && pagination.TotalPages > 1 {
		fmt.Fprintf(o.out, "\nPage %d of %d (%d expenses)\n", pagination.Page, pagination.TotalPages, pagination.Total)
	}
	return nil
}

// buildExpenseRequest turns command line input into an API request
func buildExpenseRequest(in addExpenseInput) (client.CreateExpenseRequest, error) {
	req := client.CreateExpenseRequest{
		Description:  strings.TrimSpace(in.Description),
		Currency:     strings.ToUpper(strings.TrimSpace(in.Currency)),
		PaidByID:     in.PaidBy,
		SplitMethod:  in.Split,
		Participants: in.Participants,
	}
	if req.Description == "" {
		return req, fmt.Errorf("description is required")
	}

	amount, err := parseAmount(in.Amount)
	if err != nil {
		return req, err
	}
	req.AmountCents = amount

	switch in.Split {
	case "", "equal":
		if len(in.Shares) > 0 {
			return req, fmt.Errorf("--share requires --split exact")
		}
	case "exact":
		if len(in.Shares) == 0 {
			return req, fmt.Errorf("--split exact needs at least one --share user=amount")
		}
		if len(in.Participants) > 0 {
			return req, fmt.Errorf("--participant cannot be combined with --split exact")
		}
		for _, raw := range in.Shares {
			userID, value, ok := strings.Cut(raw, "=")
			if !ok || strings.TrimSpace(userID) == "" {
				return req, fmt.Errorf("invalid share %q: expected user=amount", raw)
			}
			cents, err := parseAmount(value)
			if err != nil {
				return req, fmt.Errorf("invalid share %q: %w", raw, err)
			}
			req.Shares = append(req.Shares, client.Share{UserID: strings.TrimSpace(userID), Amount: cents})
		}
	default:
		return req, fmt.Errorf("unknown split method %q (use equal or exact)", in.Split)
	}

	if in.Date != "" {
		spentAt, err := time.ParseInLocation("2006-01-02", in.Date, time.Local)
		if err != nil {
			return req, fmt.Errorf("invalid date %q: use YYYY-MM-DD", in.Date)
		}
		req.SpentAt = &spentAt
	}
	return req, nil
}

func runExpensesAdd(ctx context.Context, in addExpenseInput, opts ...Option) error {
	req, err := buildExpenseRequest(in)
	if err != nil {
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
	groupID, err := groupselect.ResolveGroup(ctx, api, in.GroupID, o.prompt)
	if err != nil {
		return err
	}

	expense, err := api.CreateExpense(ctx, groupID, req)
	if err != nil {
		return fmt.Errorf("failed to record expense: %w", err)
	}

	fmt.Fprintf(o.out, "✓ Recorded %s: %s %s split %d ways\n",
		expense.Description, formatCents(expense.AmountCents), expense.Currency, len(expense.Splits))
	fmt.Fprintf(o.out, "  ID: %s\n", expense.ID)
	return nil
}

func runExpensesDelete(ctx context.Context, groupID, expenseID string, opts ...Option) error {
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

	if err := api.DeleteExpense(ctx, groupID, expenseID); err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}

	fmt.Fprintf(o.out, "✓ Deleted expense %s\n", expenseID)
	return nil
}
