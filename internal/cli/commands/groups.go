package commands

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tripsplit/tripsplit/internal/cli/client"
	"github.com/tripsplit/tripsplit/internal/cli/groupselect"
	"github.com/tripsplit/tripsplit/internal/cli/userconfig"
)

// NewGroupsCmd creates the groups command and its subcommands
func NewGroupsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "groups",
		Aliases: []string{"group"},
		Short:   "Manage trip groups",
	}

	var page, limit int
	ls := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List your groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGroupsList(cmd.Context(), page, limit)
		},
	}
	ls.Flags().IntVar(&page, "page", 1, "Page number")
	ls.Flags().IntVar(&limit, "limit", 20, "Groups per page")

	var description, currency, schedule string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a group and select it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGroupsCreate(cmd.Context(), client.CreateGroupRequest{
				Name:           args[0],
				Description:    description,
				Currency:       currency,
				DigestSchedule: schedule,
			})
		},
	}
	create.Flags().StringVar(&description, "description", "", "Optional description")
	create.Flags().StringVar(&currency, "currency", "EUR", "Three-letter currency code")
	create.Flags().StringVar(&schedule, "digest", "", "Cron schedule for balance digests, e.g. \"0 9 * * *\"")

	var groupID string
	addMember := &cobra.Command{
		Use:   "add-member <email>",
		Short: "Add a registered user to a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGroupsAddMember(cmd.Context(), groupID, args[0])
		},
	}
	addMember.Flags().StringVar(&groupID, "group", "", "Group ID (uses the selected group if not specified)")

	use := &cobra.Command{
		Use:   "use [group-id]",
		Short: "Select the group used by other commands",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return runGroupsUse(cmd.Context(), id)
		},
	}

	cmd.AddCommand(ls, create, addMember, use)
	return cmd
}

func runGroupsList(ctx context.Context, page, limit int, opts ...Option) error {
	o, err := newOptions(opts)
	if err != nil {
		return err
	}
	api, _, err := requireSession(ctx, o)
	if err != nil {
		return err
	}

	groups, pagination, err := api.ListGroups(ctx, page, limit)
	if err != nil {
		return err
	}

	if len(groups) == 0 {
		fmt.Fprintln(o.out, "No groups found.")
		fmt.Fprintln(o.out, "\nCreate a group with: tripsplit groups create <name>")
		return nil
	}

	selected, _ := userconfig.GetSelectedGroup()

	w := tabwriter.NewWriter(o.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tID\tNAME\tCURRENCY\tCREATED AT")
	fmt.Fprintln(w, "\t──\t────\t────────\t──────────")
	for _, g := range groups {
		marker := ""
		if g.ID == selected {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			marker,
			g.ID,
			g.Name,
			g.Currency,
			g.CreatedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	w.Flush()

	if pagination != nil && pagination.TotalPages > 1 {
		fmt.Fprintf(o.out, "\nPage %d of %d (%d groups)\n", pagination.Page, pagination.TotalPages, pagination.Total)
	}
	return nil
}

func runGroupsCreate(ctx context.Context, req client.CreateGroupRequest, opts ...Option) error {
	o, err := newOptions(opts)
	if err != nil {
		return err
	}
	api, _, err := requireSession(ctx, o)
	if err != nil {
		return err
	}

	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	group, err := api.CreateGroup(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	if err := userconfig.SetSelectedGroup(group.ID); err != nil {
		fmt.Fprintf(o.out, "Warning: failed to save selected group: %v\n", err)
	}

	fmt.Fprintf(o.out, "✓ Created group %s (%s)\n", group.Name, group.ID)
	if group.NextDigestAt != nil {
		fmt.Fprintf(o.out, "  Next balance digest: %s\n", group.NextDigestAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func runGroupsAddMember(ctx context.Context, groupID, email string, opts ...Option) error {
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

	member, err := api.AddMember(ctx, groupID, email)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}

	fmt.Fprintf(o.out, "✓ Added %s (%s) as %s\n", member.Name, member.Email, member.Role)
	return nil
}

func runGroupsUse(ctx context.Context, groupID string, opts ...Option) error {
	o, err := newOptions(opts)
	if err != nil {
		return err
	}
	api, _, err := requireSession(ctx, o)
	if err != nil {
		return err
	}

	if groupID == "" {
		// Force the picker even if a group is already selected
		if err := userconfig.SetSelectedGroup(""); err != nil {
			return err
		}
	}

	groupID, err = groupselect.ResolveGroup(ctx, api, groupID, o.prompt)
	if err != nil {
		return err
	}

	group, err := api.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if err := userconfig.SetSelectedGroup(group.ID); err != nil {
		return err
	}

	fmt.Fprintf(o.out, "✓ Selected group %s (%s)\n", group.Name, group.ID)
	return nil
}
