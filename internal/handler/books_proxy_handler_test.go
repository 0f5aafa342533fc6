package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func newCatalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`[{"id":1,"title":"Godan","author":"Premchand"}]`))
		case http.MethodPost:
			var row map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&row))
			row["id"] = 2
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode([]map[string]any{row})
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestBooksProxy_ListAndAdd(t *testing.T) {
	p := newPortal(t, portalOptions{supabaseURL: newCatalogServer(t).URL})

	resp := p.do(t, jsonRequest(t, http.MethodGet, "/api/books", "", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var listed struct {
		Books []map[string]any `json:"books"`
	}
	decodeResponse(t, resp, &listed)
	require.Len(t, listed.Books, 1)
	require.Equal(t, "Godan", listed.Books[0]["title"])

	resp = p.do(t, jsonRequest(t, http.MethodPost, "/api/books", "", map[string]string{"title": "Nirmala", "author": "Premchand"}))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var added struct {
		Book map[string]any `json:"book"`
	}
	decodeResponse(t, resp, &added)
	require.Equal(t, "Nirmala", added.Book["title"])
	require.Equal(t, float64(2), added.Book["id"])
}

func TestBooksProxy_Errors(t *testing.T) {
	p := newPortal(t, portalOptions{supabaseURL: newCatalogServer(t).URL})

	resp := p.do(t, jsonRequest(t, http.MethodPost, "/api/books", "", map[string]string{"title": "Nirmala"}))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	var body map[string]string
	decodeResponse(t, resp, &body)
	require.Equal(t, "Missing title or author", body["error"])

	resp = p.do(t, jsonRequest(t, http.MethodPut, "/api/books", "", map[string]string{"title": "x"}))
	require.Equal(t, fiber.StatusMethodNotAllowed, resp.StatusCode)
	decodeResponse(t, resp, &body)
	require.Equal(t, "Method not allowed", body["error"])
}

func TestBooksProxy_Unconfigured(t *testing.T) {
	p := newPortal(t, portalOptions{})

	resp := p.do(t, jsonRequest(t, http.MethodGet, "/api/books", "", nil))
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	var body map[string]string
	decodeResponse(t, resp, &body)
	require.Equal(t, "Missing SUPABASE_URL or SUPABASE_KEY env vars", body["error"])
}
