package groupselect

import (
	"context"
	"fmt"

	"github.com/manifoldco/promptui"

	"github.com/tripsplit/tripsplit/internal/cli/client"
	"github.com/tripsplit/tripsplit/internal/cli/userconfig"
)

// GroupLister is the part of the API client needed to pick a group
type GroupLister interface {
	ListGroups(ctx context.Context, page, limit int) ([]client.Group, *client.Pagination, error)
}

// PromptFunc asks the user to choose one of groups and returns its index
type PromptFunc func(groups []client.Group) (int, error)

// ResolveGroup determines which group to use based on the following priority:
// 1. If groupID flag is provided, use that group
// 2. If user has a selected group in their local config and it is still listed, use that
// 3. If the user belongs to exactly one group, use that
// 4. Otherwise, prompt user to select a group interactively
func ResolveGroup(ctx context.Context, lister GroupLister, groupID string, prompt PromptFunc) (string, error) {
	if groupID != "" {
		return groupID, nil
	}

	groups, _, err := lister.ListGroups(ctx, 1, 100)
	if err != nil {
		return "", fmt.Errorf("failed to list groups: %w", err)
	}
	if len(groups) == 0 {
		return "", fmt.Errorf("you are not a member of any group. Create one with 'tripsplit groups create'")
	}

	selectedID, err := userconfig.GetSelectedGroup()
	if err != nil {
		return "", fmt.Errorf("failed to load user config: %w", err)
	}
	if selectedID != "" {
		for _, g := range groups {
			if g.ID == selectedID {
				return g.ID, nil
			}
		}
		// Selected group is gone or no longer visible, clear it and continue
		_ = userconfig.SetSelectedGroup("")
	}

	var chosen client.Group
	if len(groups) == 1 {
		chosen = groups[0]
	} else {
		if prompt == nil {
			prompt = PromptGroupSelection
		}
		index, err := prompt(groups)
		if err != nil {
			return "", err
		}
		chosen = groups[index]
	}

	if err := userconfig.SetSelectedGroup(chosen.ID); err != nil {
		// Don't fail if we can't save, just continue
		fmt.Printf("Warning: failed to save selected group: %v\n", err)
	}
	return chosen.ID, nil
}

// PromptGroupSelection shows an interactive prompt for the user to select a group
func PromptGroupSelection(groups []client.Group) (int, error) {
	type groupOption struct {
		Label string
	}

	options := make([]groupOption, len(groups))
	for i, g := range groups {
		options[i] = groupOption{Label: fmt.Sprintf("%s (%s, %s)", g.Name, g.Currency, g.ID)}
	}

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ .Label | cyan }}",
		Inactive: "  {{ .Label }}",
		Selected: "{{ .Label | green }}",
	}

	prompt := promptui.Select{
		Label:     "Select a group",
		Items:     options,
		Templates: templates,
		Size:      10,
	}

	index, _, err := prompt.Run()
	if err != nil {
		return 0, fmt.Errorf("group selection cancelled: %w", err)
	}
	return index, nil
}
