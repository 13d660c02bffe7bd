package tools

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diogenes-ai-code/ticketcore/internal/host"
	"github.com/diogenes-ai-code/ticketcore/internal/pgtest"
)

// fakeRegistry records registered tools.
type fakeRegistry struct {
	handlers map[string]Handler
}

func (f *fakeRegistry) Register(name string, h Handler) {
	if f.handlers == nil {
		f.handlers = map[string]Handler{}
	}
	f.handlers[name] = h
}

// testDeps wires host callables around the shared test database, mapping
// every project onto one freshly migrated schema.
func testDeps(t *testing.T) *host.Deps {
	t.Helper()
	db := pgtest.DB(t)
	schemaName := pgtest.Schema(t, db)
	return &host.Deps{
		GetDB: func(ctx context.Context, project string) (*sql.DB, error) {
			return db, nil
		},
		CheckProject: func(ctx context.Context, project string) error {
			if project == "nope" {
				return fmt.Errorf("unknown project: %s", project)
			}
			return nil
		},
		GetProject: func(ctx context.Context, project string) (string, error) {
			if project == "" {
				return "default", nil
			}
			return project, nil
		},
		ResolveSchema: func(project string) string {
			return schemaName
		},
	}
}

func TestBind_RegistersAllTools(t *testing.T) {
	reg := &fakeRegistry{}
	Bind(reg, &host.Deps{})
	for _, name := range []string{ToolTicket, ToolBoard, ToolSearch, ToolLink} {
		assert.Contains(t, reg.handlers, name)
	}
}

func TestParseTicketAction(t *testing.T) {
	for _, s := range []string{"create", "get", "list", "update", "move", "close",
		"grep", "batch_move", "batch_close"} {
		_, err := parseTicketAction(s)
		assert.NoError(t, err, s)
	}
	_, err := parseTicketAction("destroy")
	assert.Error(t, err)
	_, err = parseTicketAction("")
	assert.Error(t, err)
}

func TestTicketTool_UnknownAction(t *testing.T) {
	h := ticketTool(&host.Deps{})
	res := h(context.Background(), map[string]any{"action": "explode"})
	assert.Equal(t, "ValidationError", res["error"])
	assert.Contains(t, res["message"], "explode")
}

func TestTicketTool_ProjectCheckFailure(t *testing.T) {
	deps := &host.Deps{
		GetDB:        func(ctx context.Context, p string) (*sql.DB, error) { return nil, nil },
		CheckProject: func(ctx context.Context, p string) error { return fmt.Errorf("no such project") },
		GetProject:   func(ctx context.Context, p string) (string, error) { return p, nil },
	}
	h := ticketTool(deps)
	res := h(context.Background(), map[string]any{"action": "list", "project": "ghost"})
	assert.Equal(t, "ValidationError", res["error"])
}

func TestTicketTool_CreateGetMove(t *testing.T) {
	deps := testDeps(t)
	h := ticketTool(deps)
	ctx := context.Background()

	res := h(ctx, map[string]any{
		"action":   "create",
		"type":     "task",
		"title":    "wire the relay",
		"priority": "high",
		"tags":     []any{"infra"},
	})
	require.NotContains(t, res, "error", "create failed: %v", res["message"])
	created := res["ticket"].(map[string]any)
	assert.Equal(t, "backlog", created["status"])
	id := created["id"].(float64)

	res = h(ctx, map[string]any{"action": "move", "id": id, "status": "in_progress"})
	require.NotContains(t, res, "error", "move failed: %v", res["message"])
	moved := res["ticket"].(map[string]any)
	assert.Equal(t, "in_progress", moved["status"])

	res = h(ctx, map[string]any{"action": "get", "id": id})
	require.NotContains(t, res, "error")
	got := res["ticket"].(map[string]any)
	assert.Equal(t, "wire the relay", got["title"])
	assert.Len(t, got["history"], 1)

	// Errors come back in-band, not as panics or transport failures
	res = h(ctx, map[string]any{"action": "move", "id": id, "status": "backlog"})
	assert.Equal(t, "InvalidTransition", res["error"])

	res = h(ctx, map[string]any{"action": "get", "id": float64(99999)})
	assert.Equal(t, "NotFound", res["error"])
}

func TestTicketTool_MoveRequiresIDAndStatus(t *testing.T) {
	deps := testDeps(t)
	h := ticketTool(deps)
	ctx := context.Background()

	res := h(ctx, map[string]any{"action": "move", "status": "done"})
	assert.Equal(t, "ValidationError", res["error"])

	res = h(ctx, map[string]any{"action": "move", "id": float64(1)})
	assert.Equal(t, "ValidationError", res["error"])
}

func TestTicketTool_UpdateThroughFields(t *testing.T) {
	deps := testDeps(t)
	h := ticketTool(deps)
	ctx := context.Background()

	res := h(ctx, map[string]any{"action": "create", "title": "before"})
	require.NotContains(t, res, "error")
	id := res["ticket"].(map[string]any)["id"].(float64)

	res = h(ctx, map[string]any{
		"action": "update",
		"id":     id,
		"fields": map[string]any{"title": "after", "priority": "urgent"},
	})
	require.NotContains(t, res, "error", "update failed: %v", res["message"])
	updated := res["ticket"].(map[string]any)
	assert.Equal(t, "after", updated["title"])
	assert.Equal(t, "urgent", updated["priority"])

	// Status sneaking in through fields is rejected
	res = h(ctx, map[string]any{
		"action": "update",
		"id":     id,
		"fields": map[string]any{"status": "done"},
	})
	assert.Equal(t, "ValidationError", res["error"])
}

func TestBoardTool(t *testing.T) {
	deps := testDeps(t)
	ctx := context.Background()

	res := ticketTool(deps)(ctx, map[string]any{"action": "create", "title": "x"})
	require.NotContains(t, res, "error")

	board := boardTool(deps)(ctx, map[string]any{"view": "summary", "type": "task"})
	require.NotContains(t, board, "error")
	counts := board["counts"].(map[string]any)
	assert.Equal(t, float64(1), counts["backlog"])

	bad := boardTool(deps)(ctx, map[string]any{"view": "gantt"})
	assert.Equal(t, "ValidationError", bad["error"])
}

func TestSearchTool(t *testing.T) {
	deps := testDeps(t)
	ctx := context.Background()

	res := ticketTool(deps)(ctx, map[string]any{"action": "create", "title": "solar flare watch"})
	require.NotContains(t, res, "error")

	found := searchTool(deps)(ctx, map[string]any{"query": "solar"})
	require.NotContains(t, found, "error")
	assert.Equal(t, float64(1), found["total"])

	empty := searchTool(deps)(ctx, map[string]any{"query": ""})
	assert.Equal(t, "ValidationError", empty["error"])
}

func TestLinkTool(t *testing.T) {
	deps := testDeps(t)
	ctx := context.Background()
	th := ticketTool(deps)
	lh := linkTool(deps)

	a := th(ctx, map[string]any{"action": "create", "title": "a"})["ticket"].(map[string]any)["id"].(float64)
	b := th(ctx, map[string]any{"action": "create", "title": "b"})["ticket"].(map[string]any)["id"].(float64)

	res := lh(ctx, map[string]any{"action": "add", "source_id": a, "target_id": b, "link_type": "blocks"})
	require.NotContains(t, res, "error", "add failed: %v", res["message"])
	linkID := res["link"].(map[string]any)["id"].(float64)

	res = lh(ctx, map[string]any{"action": "add", "source_id": a, "target_id": b, "link_type": "blocks"})
	assert.Equal(t, "Conflict", res["error"])

	res = lh(ctx, map[string]any{"action": "list", "id": a})
	require.NotContains(t, res, "error")
	assert.Len(t, res["outgoing"], 1)
	assert.Empty(t, res["incoming"])

	res = lh(ctx, map[string]any{"action": "remove", "link_id": linkID})
	require.NotContains(t, res, "error")
	assert.Equal(t, true, res["removed"])

	res = lh(ctx, map[string]any{"action": "remove", "link_id": linkID})
	assert.Equal(t, "NotFound", res["error"])

	res = lh(ctx, map[string]any{"action": "sever"})
	assert.Equal(t, "ValidationError", res["error"])
}
