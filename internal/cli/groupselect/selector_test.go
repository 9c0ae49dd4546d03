package groupselect

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripsplit/tripsplit/internal/cli/client"
	"github.com/tripsplit/tripsplit/internal/cli/userconfig"
)

type fakeLister struct {
	groups []client.Group
	err    error
	calls  int
}

func (f *fakeLister) ListGroups(ctx context.Context, page, limit int) ([]client.Group, *client.Pagination, error) {
	f.calls++
	return f.groups, nil, f.err
}

func noPrompt(t *testing.T) PromptFunc {
	return func([]client.Group) (int, error) {
		t.Fatal("prompt should not be shown")
		return 0, nil
	}
}

func TestResolveGroup_FlagWins(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	lister := &fakeLister{}

	id, err := ResolveGroup(context.Background(), lister, "g-flag", noPrompt(t))
	require.NoError(t, err)
	assert.Equal(t, "g-flag", id)
	assert.Zero(t, lister.calls)
}

func TestResolveGroup_SingleGroupIsSaved(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	lister := &fakeLister{groups: []client.Group{{ID: "g1", Name: "Lisbon"}}}

	id, err := ResolveGroup(context.Background(), lister, "", noPrompt(t))
	require.NoError(t, err)
	assert.Equal(t, "g1", id)

	saved, err := userconfig.GetSelectedGroup()
	require.NoError(t, err)
	assert.Equal(t, "g1", saved)
}

func TestResolveGroup_UsesSavedSelection(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	require.NoError(t, userconfig.SetSelectedGroup("g2"))
	lister := &fakeLister{groups: []client.Group{{ID: "g1"}, {ID: "g2"}}}

	id, err := ResolveGroup(context.Background(), lister, "", noPrompt(t))
	require.NoError(t, err)
	assert.Equal(t, "g2", id)
}

func TestResolveGroup_StaleSelectionPrompts(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	require.NoError(t, userconfig.SetSelectedGroup("gone"))
	lister := &fakeLister{groups: []client.Group{{ID: "g1"}, {ID: "g2"}}}

	prompted := false
	id, err := ResolveGroup(context.Background(), lister, "", func(groups []client.Group) (int, error) {
		prompted = true
		assert.Len(t, groups, 2)
		return 1, nil
	})
	require.NoError(t, err)
	assert.True(t, prompted)
	assert.Equal(t, "g2", id)

	saved, _ := userconfig.GetSelectedGroup()
	assert.Equal(t, "g2", saved)
}

func TestResolveGroup_NoGroups(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := ResolveGroup(context.Background(), &fakeLister{}, "", noPrompt(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a member of any group")
}

func TestResolveGroup_ListError(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := ResolveGroup(context.Background(), &fakeLister{err: errors.New("boom")}, "", noPrompt(t))
	assert.ErrorContains(t, err, "boom")
}

func TestResolveGroup_PromptCancelled(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	lister := &fakeLister{groups: []client.Group{{ID: "g1"}, {ID: "g2"}}}

	_, err := ResolveGroup(context.Background(), lister, "", func([]client.Group) (int, error) {
		return 0, errors.New("cancelled")
	})
	assert.ErrorContains(t, err, "cancelled")
}
