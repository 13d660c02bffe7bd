package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diogenes-ai-code/ticketcore/internal/host"
	"github.com/diogenes-ai-code/ticketcore/internal/models"
	"github.com/diogenes-ai-code/ticketcore/internal/pgtest"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	db := pgtest.DB(t)
	schemaName := pgtest.Schema(t, db)
	deps := &host.Deps{
		GetDB: func(ctx context.Context, project string) (*sql.DB, error) {
			return db, nil
		},
		CheckProject: func(ctx context.Context, project string) error {
			if project == "ghost" {
				return fmt.Errorf("unknown project: %s", project)
			}
			return nil
		},
		GetProject: func(ctx context.Context, project string) (string, error) {
			return project, nil
		},
		ResolveSchema: func(project string) string {
			return schemaName
		},
	}

	mux := http.NewServeMux()
	Mount(mux, deps)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	}
	return resp, decoded
}

func createTicket(t *testing.T, srv *httptest.Server, p models.CreateParams) map[string]any {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/projects/alpha/tickets", p)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "create failed: %v", body)
	return body
}

func TestCreateAndGet(t *testing.T) {
	srv := testServer(t)

	created := createTicket(t, srv, models.CreateParams{
		Type:  models.TypeBug,
		Title: "http roundtrip",
		Tags:  []string{"net"},
	})
	assert.Equal(t, "triage", created["status"])
	id := int64(created["id"].(float64))

	resp, body := doJSON(t, http.MethodGet, fmt.Sprintf("%s/projects/alpha/tickets/%d", srv.URL, id), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http roundtrip", body["title"])
	assert.NotNil(t, body["history"])
	assert.NotNil(t, body["links"])
}

func TestGet_ErrorShapes(t *testing.T) {
	srv := testServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/projects/alpha/tickets/99999", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NotFound", body["error"])
	assert.NotEmpty(t, body["message"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/projects/alpha/tickets/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "ValidationError", body["error"])
}

func TestProjectValidationShortCircuits(t *testing.T) {
	srv := testServer(t)
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/projects/ghost/tickets", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "ValidationError", body["error"])
}

func TestListWithQueryFilters(t *testing.T) {
	srv := testServer(t)
	createTicket(t, srv, models.CreateParams{Title: "a", Priority: models.PriorityHigh})
	createTicket(t, srv, models.CreateParams{Title: "b"})

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/projects/alpha/tickets?priority=high", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["total"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/projects/alpha/tickets?limit=1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["has_more"])
}

func TestUpdateEndpoint(t *testing.T) {
	srv := testServer(t)
	created := createTicket(t, srv, models.CreateParams{Title: "before"})
	id := int64(created["id"].(float64))

	resp, body := doJSON(t, http.MethodPut,
		fmt.Sprintf("%s/projects/alpha/tickets/%d", srv.URL, id),
		map[string]any{"title": "after", "changed_by": "rose"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "after", body["title"])

	// Status changes must go through the move endpoint
	resp, body = doJSON(t, http.MethodPut,
		fmt.Sprintf("%s/projects/alpha/tickets/%d", srv.URL, id),
		map[string]any{"status": "done"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "ValidationError", body["error"])
}

func TestMoveEndpoint(t *testing.T) {
	srv := testServer(t)
	created := createTicket(t, srv, models.CreateParams{Title: "m"})
	id := int64(created["id"].(float64))

	resp, body := doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/projects/alpha/tickets/%d/move", srv.URL, id),
		map[string]any{"status": "in_progress"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "in_progress", body["status"])

	// Illegal edge maps to 409
	resp, body = doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/projects/alpha/tickets/%d/move", srv.URL, id),
		map[string]any{"status": "backlog"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "InvalidTransition", body["error"])
}

func TestBoardAndSearchEndpoints(t *testing.T) {
	srv := testServer(t)
	createTicket(t, srv, models.CreateParams{Title: "searchable gizmo"})

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/projects/alpha/tickets/board?view=summary&type=task", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	counts := body["counts"].(map[string]any)
	assert.Equal(t, float64(1), counts["backlog"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/projects/alpha/tickets/search?query=gizmo", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["total"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/projects/alpha/tickets/search?query=", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "ValidationError", body["error"])
}

func TestLinkEndpoints(t *testing.T) {
	srv := testServer(t)
	a := int64(createTicket(t, srv, models.CreateParams{Title: "a"})["id"].(float64))
	b := int64(createTicket(t, srv, models.CreateParams{Title: "b"})["id"].(float64))

	resp, body := doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/projects/alpha/tickets/%d/links", srv.URL, a),
		map[string]any{"target_id": b, "link_type": "blocks"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "link add failed: %v", body)
	linkID := int64(body["id"].(float64))

	// Duplicate triple is a conflict
	resp, body = doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/projects/alpha/tickets/%d/links", srv.URL, a),
		map[string]any{"target_id": b, "link_type": "blocks"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Conflict", body["error"])

	resp, body = doJSON(t, http.MethodGet,
		fmt.Sprintf("%s/projects/alpha/tickets/%d/links", srv.URL, a), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["outgoing"], 1)

	resp, _ = doJSON(t, http.MethodDelete,
		fmt.Sprintf("%s/projects/alpha/tickets/%d/links/%d", srv.URL, a, linkID), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = doJSON(t, http.MethodDelete,
		fmt.Sprintf("%s/projects/alpha/tickets/%d/links/%d", srv.URL, a, linkID), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NotFound", body["error"])
}
