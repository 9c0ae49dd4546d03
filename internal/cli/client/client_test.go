package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin_UnwrapsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "alice@example.com", body["email"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"message":"Logged in","data":{"token":"jwt-123","user":{"id":"u1","email":"alice@example.com","name":"Alice"}}}`))
	}))
	defer srv.Close()

	resp, err := New(srv.URL).Login(context.Background(), "alice@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "jwt-123", resp.Token)
	assert.Equal(t, "Alice", resp.User.Name)
}

func TestDo_SendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer jwt-123", r.Header.Get("Authorization"))
		w.Write([]byte(`{"success":true,"message":"Current user","data":{"id":"u1","email":"a@b.c","name":"A"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	c.SetToken("jwt-123")
	user, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
}

func TestDo_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success":false,"message":"Token has been revoked","error":{"code":"UNAUTHORIZED"}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Me(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "UNAUTHORIZED", apiErr.Code)
	assert.Contains(t, err.Error(), "Token has been revoked")
}

func TestDo_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL).GetGroup(context.Background(), "g1")
	require.Error(t, err)
	assert.False(t, IsUnauthorized(err))
	assert.Contains(t, err.Error(), "bad gateway")
}

func TestListExpenses_Pagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/groups/g1/expenses", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"success":true,"message":"Expenses","data":[{"id":"e1","amount_cents":1200}],
			"pagination":{"page":2,"limit":5,"total":6,"totalPages":2,"hasNext":false,"hasPrev":true}}`))
	}))
	defer srv.Close()

	expenses, page, err := New(srv.URL).ListExpenses(context.Background(), "g1", 2, 5)
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.Equal(t, int64(1200), expenses[0].AmountCents)
	require.NotNil(t, page)
	assert.Equal(t, int64(6), page.Total)
	assert.True(t, page.HasPrev)
}

func TestDeleteExpense(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/groups/g1/expenses/e1", r.URL.Path)
		w.Write([]byte(`{"success":true,"message":"Expense deleted","data":{"id":"e1"}}`))
	}))
	defer srv.Close()

	require.NoError(t, New(srv.URL).DeleteExpense(context.Background(), "g1", "e1"))
}
