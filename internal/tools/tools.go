// Package tools is the RPC facade: four named operations bound onto a
// host-supplied registry. Handlers never propagate errors; every failure is
// returned as an {error, message} map so the host's dispatcher stays dumb.
package tools

import (
	"context"
	"encoding/json"

	"github.com/diogenes-ai-code/ticketcore/internal/errors"
	"github.com/diogenes-ai-code/ticketcore/internal/host"
	"github.com/diogenes-ai-code/ticketcore/internal/models"
)

// Handler is one RPC tool: a serializable argument map in, a serializable
// result map out.
type Handler func(ctx context.Context, args map[string]any) map[string]any

// Registrar is the host's RPC registry.
type Registrar interface {
	Register(name string, h Handler)
}

// Tool names as registered on the host.
const (
	ToolTicket = "ticket"
	ToolBoard  = "ticket_board"
	ToolSearch = "ticket_search"
	ToolLink   = "ticket_link"
)

// Bind registers the four tools on the host's registry.
func Bind(reg Registrar, deps *host.Deps) {
	reg.Register(ToolTicket, ticketTool(deps))
	reg.Register(ToolBoard, boardTool(deps))
	reg.Register(ToolSearch, searchTool(deps))
	reg.Register(ToolLink, linkTool(deps))
}

// ticketAction enumerates the dispatch values of the ticket tool.
type ticketAction string

const (
	actionCreate     ticketAction = "create"
	actionGet        ticketAction = "get"
	actionList       ticketAction = "list"
	actionUpdate     ticketAction = "update"
	actionMove       ticketAction = "move"
	actionClose      ticketAction = "close"
	actionGrep       ticketAction = "grep"
	actionBatchMove  ticketAction = "batch_move"
	actionBatchClose ticketAction = "batch_close"
)

func parseTicketAction(s string) (ticketAction, error) {
	switch a := ticketAction(s); a {
	case actionCreate, actionGet, actionList, actionUpdate, actionMove,
		actionClose, actionGrep, actionBatchMove, actionBatchClose:
		return a, nil
	}
	return "", errors.Validation("unknown action: %q", s)
}

// linkAction enumerates the dispatch values of the ticket_link tool.
type linkAction string

const (
	linkAdd    linkAction = "add"
	linkList   linkAction = "list"
	linkRemove linkAction = "remove"
)

func parseLinkAction(s string) (linkAction, error) {
	switch a := linkAction(s); a {
	case linkAdd, linkList, linkRemove:
		return a, nil
	}
	return "", errors.Validation("unknown action: %q", s)
}

func ticketTool(deps *host.Deps) Handler {
	return func(ctx context.Context, args map[string]any) map[string]any {
		action, err := parseTicketAction(strArg(args, "action"))
		if err != nil {
			return errResult(err)
		}
		sess, err := deps.Acquire(ctx, strArg(args, "project"))
		if err != nil {
			return errResult(err)
		}
		defer sess.Release()

		switch action {
		case actionCreate:
			p := models.CreateParams{
				Type:        models.TicketType(strArg(args, "type")),
				Title:       strArg(args, "title"),
				Description: strArg(args, "description"),
				Priority:    models.Priority(strArg(args, "priority")),
				Assignee:    strArg(args, "assignee"),
				Reporter:    strArg(args, "reporter"),
				Tags:        strSliceArg(args, "tags"),
				Metadata:    mapArg(args, "metadata"),
			}
			t, err := sess.Svc.Create(ctx, p)
			if err != nil {
				return errResult(err)
			}
			return map[string]any{"ticket": toMap(t)}

		case actionGet:
			id, err := idArg(args, "id")
			if err != nil {
				return errResult(err)
			}
			d, err := sess.Svc.Get(ctx, id)
			if err != nil {
				return errResult(err)
			}
			return map[string]any{"ticket": toMap(d)}

		case actionList:
			f := models.ListFilter{
				Type:     models.TicketType(strArg(args, "type")),
				Status:   strArg(args, "status"),
				Priority: models.Priority(strArg(args, "priority")),
				Assignee: strArg(args, "assignee"),
				Limit:    intArg(args, "limit"),
				Offset:   intArg(args, "offset"),
			}
			if _, ok := args["tags"]; ok {
				tags := strSliceArg(args, "tags")
				f.Tags = tags
			}
			lr, err := sess.Svc.List(ctx, f)
			if err != nil {
				return errResult(err)
			}
			return toMap(lr)

		case actionUpdate:
			id, err := idArg(args, "id")
			if err != nil {
				return errResult(err)
			}
			p, err := updateParams(args)
			if err != nil {
				return errResult(err)
			}
			t, err := sess.Svc.Update(ctx, id, p, strArg(args, "changed_by"))
			if err != nil {
				return errResult(err)
			}
			return map[string]any{"ticket": toMap(t)}

		case actionMove:
			id, err := idArg(args, "id")
			if err != nil {
				return errResult(err)
			}
			to := strArg(args, "status")
			if to == "" {
				return errResult(errors.Validation("status is required for move"))
			}
			t, err := sess.Svc.Transition(ctx, id, to, strArg(args, "changed_by"))
			if err != nil {
				return errResult(err)
			}
			return map[string]any{"ticket": toMap(t)}

		case actionClose:
			id, err := idArg(args, "id")
			if err != nil {
				return errResult(err)
			}
			t, err := sess.Svc.Close(ctx, id, strArg(args, "changed_by"))
			if err != nil {
				return errResult(err)
			}
			return map[string]any{"ticket": toMap(t)}

		case actionGrep:
			matched, err := sess.Svc.Grep(ctx, strArg(args, "pattern"))
			if err != nil {
				return errResult(err)
			}
			return map[string]any{"tickets": toList(matched), "total": len(matched)}

		case actionBatchMove:
			ids, err := idsArg(args, "ids")
			if err != nil {
				return errResult(err)
			}
			to := strArg(args, "status")
			if to == "" {
				return errResult(errors.Validation("status is required for batch_move"))
			}
			br, err := sess.Svc.BatchTransition(ctx, ids, to, strArg(args, "changed_by"), boolArg(args, "confirm"))
			if err != nil {
				return errResult(err)
			}
			return toMap(br)

		case actionBatchClose:
			ids, err := idsArg(args, "ids")
			if err != nil {
				return errResult(err)
			}
			br, err := sess.Svc.BatchClose(ctx, ids, strArg(args, "changed_by"), boolArg(args, "confirm"))
			if err != nil {
				return errResult(err)
			}
			return toMap(br)
		}
		return errResult(errors.Validation("unknown action: %q", string(action)))
	}
}

func boardTool(deps *host.Deps) Handler {
	return func(ctx context.Context, args map[string]any) map[string]any {
		sess, err := deps.Acquire(ctx, strArg(args, "project"))
		if err != nil {
			return errResult(err)
		}
		defer sess.Release()

		view := models.BoardViewKind(strArg(args, "view"))
		typ := models.TicketType(strArg(args, "type"))
		b, err := sess.Svc.Board(ctx, view, typ)
		if err != nil {
			return errResult(err)
		}
		return toMap(b)
	}
}

func searchTool(deps *host.Deps) Handler {
	return func(ctx context.Context, args map[string]any) map[string]any {
		sess, err := deps.Acquire(ctx, strArg(args, "project"))
		if err != nil {
			return errResult(err)
		}
		defer sess.Release()

		r, err := sess.Svc.Search(ctx,
			strArg(args, "query"),
			models.TicketType(strArg(args, "type")),
			strArg(args, "status"),
			intArg(args, "limit"))
		if err != nil {
			return errResult(err)
		}
		return toMap(r)
	}
}

func linkTool(deps *host.Deps) Handler {
	return func(ctx context.Context, args map[string]any) map[string]any {
		action, err := parseLinkAction(strArg(args, "action"))
		if err != nil {
			return errResult(err)
		}
		sess, err := deps.Acquire(ctx, strArg(args, "project"))
		if err != nil {
			return errResult(err)
		}
		defer sess.Release()

		switch action {
		case linkAdd:
			source, err := idArg(args, "source_id")
			if err != nil {
				return errResult(err)
			}
			target, err := idArg(args, "target_id")
			if err != nil {
				return errResult(err)
			}
			l, err := sess.Svc.LinkAdd(ctx, source, target, models.LinkType(strArg(args, "link_type")))
			if err != nil {
				return errResult(err)
			}
			return map[string]any{"link": toMap(l)}

		case linkList:
			id, err := idArg(args, "id")
			if err != nil {
				return errResult(err)
			}
			set, err := sess.Svc.LinkList(ctx, id)
			if err != nil {
				return errResult(err)
			}
			return toMap(set)

		case linkRemove:
			id, err := idArg(args, "link_id")
			if err != nil {
				return errResult(err)
			}
			if err := sess.Svc.LinkRemove(ctx, id); err != nil {
				return errResult(err)
			}
			return map[string]any{"removed": true, "link_id": id}
		}
		return errResult(errors.Validation("unknown action: %q", string(action)))
	}
}

func updateParams(args map[string]any) (models.UpdateParams, error) {
	var p models.UpdateParams
	fields := mapArg(args, "fields")
	if fields == nil {
		return p, errors.Validation("fields is required for update")
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return p, errors.Validation("invalid fields: %v", err)
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, errors.Validation("invalid fields: %v", err)
	}
	return p, nil
}

// errResult is the uniform failure shape of every tool.
func errResult(err error) map[string]any {
	return map[string]any{
		"error":   errors.GetKind(err).String(),
		"message": err.Error(),
	}
}

// toMap flattens a struct into a plain map through its JSON form, so tool
// results stay serializable regardless of the host's codec.
func toMap(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	return m
}

func toList(v any) []any {
	raw, err := json.Marshal(v)
	if err != nil {
		return []any{}
	}
	var l []any
	if err := json.Unmarshal(raw, &l); err != nil {
		return []any{}
	}
	return l
}
