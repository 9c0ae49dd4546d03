package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/tripsplit/tripsplit/internal/cli/client"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"12", 1200, false},
		{"12.5", 1250, false},
		{"12.34", 1234, false},
		{"0.01", 1, false},
		{".5", 50, false},
		{" 7. ", 700, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"1.234", 0, true},
		{"abc", 0, true},
		{"1.-2", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := parseAmount(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseAmount(%q): expected error, got %d", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseAmount(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseAmount(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestFormatCents(t *testing.T) {
	tests := map[int64]string{
		0:     "0.00",
		5:     "0.05",
		1234:  "12.34",
		-1234: "-12.34",
		-5:    "-0.05",
	}
	for cents, want := range tests {
		if got := formatCents(cents); got != want {
			t.Errorf("formatCents(%d) = %q, want %q", cents, got, want)
		}
	}
}

func TestBuildExpenseRequest(t *testing.T) {
	t.Run("equal split with participants", func(t *testing.T) {
		req, err := buildExpenseRequest(addExpenseInput{
			Description:  " Taxi ",
			Amount:       "20",
			Currency:     "eur",
			Split:        "equal",
			Participants: []string{"u-alice", "u-bob"},
			Date:         "2026-05-02",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.Description != "Taxi" || req.AmountCents != 2000 || req.Currency != "EUR" {
			t.Errorf("unexpected request: %+v", req)
		}
		if req.SpentAt == nil || req.SpentAt.Format("2006-01-02") != "2026-05-02" {
			t.Errorf("expected spent_at to be parsed, got %v", req.SpentAt)
		}
	})

	t.Run("exact shares", func(t *testing.T) {
		req, err := buildExpenseRequest(addExpenseInput{
			Description: "Hotel",
			Amount:      "300",
			Split:       "exact",
			Shares:      []string{"u-alice=200", "u-bob=100.00"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []client.Share{{UserID: "u-alice", Amount: 20000}, {UserID: "u-bob", Amount: 10000}}
		if len(req.Shares) != len(want) || req.Shares[0] != want[0] || req.Shares[1] != want[1] {
			t.Errorf("shares = %+v, want %+v", req.Shares, want)
		}
	})

	errorCases := map[string]addExpenseInput{
		"missing description":   {Amount: "10"},
		"bad amount":            {Description: "x", Amount: "ten"},
		"share without exact":   {Description: "x", Amount: "10", Split: "equal", Shares: []string{"a=10"}},
		"exact without shares":  {Description: "x", Amount: "10", Split: "exact"},
		"malformed share":       {Description: "x", Amount: "10", Split: "exact", Shares: []string{"a:10"}},
		"unknown split":         {Description: "x", Amount: "10", Split: "percent"},
		"bad date":              {Description: "x", Amount: "10", Date: "02/05/2026"},
		"exact and participant": {Description: "x", Amount: "10", Split: "exact", Shares: []string{"a=10"}, Participants: []string{"a"}},
	}
	for name, in := range errorCases {
		t.Run(name, func(t *testing.T) {
			if _, err := buildExpenseRequest(in); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestExpensesAdd(t *testing.T) {
	api, store := signedIn(t)
	var out bytes.Buffer

	err := runExpensesAdd(context.Background(), addExpenseInput{
		GroupID:     "g1",
		Description: "Taxi",
		Amount:      "20.00",
		Split:       "equal",
	}, WithServer(api.URL), WithTokenStore(store), WithOutput(&out))
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	var sent client.CreateExpenseRequest
	if err := json.Unmarshal(api.lastBody("POST /api/groups/g1/expenses"), &sent); err != nil {
		t.Fatal(err)
	}
	if sent.AmountCents != 2000 {
		t.Errorf("expected 2000 cents to be sent, got %d", sent.AmountCents)
	}
	if !strings.Contains(out.String(), "split 2 ways") {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestExpensesList(t *testing.T) {
	api, store := signedIn(t)
	var out bytes.Buffer

	if err := runExpensesList(context.Background(), "g1", 1, 20, WithServer(api.URL), WithTokenStore(store), WithOutput(&out)); err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	output := out.String()
	for _, want := range []string{"Expenses in Lisbon", "Dinner", "Alice", "45.50 EUR", "equal"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestExpensesDelete(t *testing.T) {
	api, store := signedIn(t)
	var out bytes.Buffer

	if err := runExpensesDelete(context.Background(), "g1", "e1", WithServer(api.URL), WithTokenStore(store), WithOutput(&out)); err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	err := runExpensesDelete(context.Background(), "g1", "e9", WithServer(api.URL), WithTokenStore(store), WithOutput(&out))
	if err == nil || !strings.Contains(err.Error(), "Expense not found") {
		t.Errorf("expected not found error, got %v", err)
	}
}
