package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/tripsplit/tripsplit/internal/cli/client"
	"github.com/tripsplit/tripsplit/internal/cli/userconfig"
)

func signedIn(t *testing.T) (*mockAPI, *mockTokenStore) {
	t.Helper()
	setupTestEnvironment(t)
	api := newMockAPI(t)
	store := newMockTokenStore()
	store.tokens[api.URL] = validToken
	return api, store
}

func TestGroupsList(t *testing.T) {
	api, store := signedIn(t)
	if err := userconfig.SetSelectedGroup("g1"); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer

	if err := runGroupsList(context.Background(), 1, 20, WithServer(api.URL), WithTokenStore(store), WithOutput(&out)); err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	output := out.String()
	for _, want := range []string{"ID", "NAME", "CURRENCY", "Lisbon", "EUR", "*"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestGroupsCreate_SelectsGroup(t *testing.T) {
	api, store := signedIn(t)
	var out bytes.Buffer

	err := runGroupsCreate(context.Background(), client.CreateGroupRequest{Name: "Lisbon", Currency: " eur "},
		WithServer(api.URL), WithTokenStore(store), WithOutput(&out))
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	var sent client.CreateGroupRequest
	if err := json.Unmarshal(api.lastBody("POST /api/groups"), &sent); err != nil {
		t.Fatal(err)
	}
	if sent.Currency != "EUR" {
		t.Errorf("expected currency to be normalised, got %q", sent.Currency)
	}

	selected, _ := userconfig.GetSelectedGroup()
	if selected != "g1" {
		t.Errorf("expected new group to be selected, got %q", selected)
	}
}

func TestGroupsAddMember_UsesOnlyGroup(t *testing.T) {
	api, store := signedIn(t)
	var out bytes.Buffer

	err := runGroupsAddMember(context.Background(), "", "carol@example.com",
		WithServer(api.URL), WithTokenStore(store), WithOutput(&out),
		WithGroupPrompt(func([]client.Group) (int, error) {
			t.Fatal("prompt should not be shown for a single group")
			return 0, nil
		}))
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if !strings.Contains(out.String(), "Added Carol") {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestGroupsCommands_RequireLogin(t *testing.T) {
	setupTestEnvironment(t)
	api := newMockAPI(t)

	err := runGroupsList(context.Background(), 1, 20, WithServer(api.URL), WithTokenStore(newMockTokenStore()), WithOutput(&bytes.Buffer{}))
	if err == nil {
		t.Fatal("expected error without login")
	}
	if api.called("GET /api/groups") {
		t.Error("groups must not be fetched without a session")
	}
}
