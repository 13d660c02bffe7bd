// Package httpapi mounts the ticketing endpoints onto a host-supplied
// router. Ten endpoints under /projects/{name}/tickets, JSON in and out,
// with the error taxonomy mapped to HTTP status codes.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/diogenes-ai-code/ticketcore/internal/errors"
	"github.com/diogenes-ai-code/ticketcore/internal/host"
	"github.com/diogenes-ai-code/ticketcore/internal/models"
)

// Router is the mux contract the host provides. *http.ServeMux satisfies it;
// patterns use Go 1.22 method and wildcard syntax.
type Router interface {
	HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request))
}

// Mount registers the ticket endpoints on the router.
func Mount(r Router, deps *host.Deps) {
	a := &api{deps: deps}

	r.HandleFunc("POST /projects/{name}/tickets", a.handleCreate)
	r.HandleFunc("GET /projects/{name}/tickets", a.handleList)
	r.HandleFunc("GET /projects/{name}/tickets/board", a.handleBoard)
	r.HandleFunc("GET /projects/{name}/tickets/search", a.handleSearch)
	r.HandleFunc("GET /projects/{name}/tickets/{id}", a.handleGet)
	r.HandleFunc("PUT /projects/{name}/tickets/{id}", a.handleUpdate)
	r.HandleFunc("POST /projects/{name}/tickets/{id}/move", a.handleMove)
	r.HandleFunc("POST /projects/{name}/tickets/{id}/links", a.handleLinkAdd)
	r.HandleFunc("GET /projects/{name}/tickets/{id}/links", a.handleLinkList)
	r.HandleFunc("DELETE /projects/{name}/tickets/{id}/links/{link_id}", a.handleLinkRemove)
}

type api struct {
	deps *host.Deps
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// session acquires a project-scoped session from the {name} path value.
// On failure it writes the error response and returns nil.
func (a *api) session(w http.ResponseWriter, r *http.Request) *host.Session {
	sess, err := a.deps.Acquire(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return nil
	}
	return sess
}

func (a *api) handleCreate(w http.ResponseWriter, r *http.Request) {
	var p models.CreateParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, errors.Validation("invalid request body: %v", err))
		return
	}
	sess := a.session(w, r)
	if sess == nil {
		return
	}
	defer sess.Release()

	t, err := sess.Svc.Create(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (a *api) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := models.ListFilter{
		Type:     models.TicketType(q.Get("type")),
		Status:   q.Get("status"),
		Priority: models.Priority(q.Get("priority")),
		Assignee: q.Get("assignee"),
		Limit:    atoiDefault(q.Get("limit"), 0),
		Offset:   atoiDefault(q.Get("offset"), 0),
	}
	if tags, ok := q["tags"]; ok {
		f.Tags = tags
	}

	sess := a.session(w, r)
	if sess == nil {
		return
	}
	defer sess.Release()

	lr, err := sess.Svc.List(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lr)
}

func (a *api) handleBoard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sess := a.session(w, r)
	if sess == nil {
		return
	}
	defer sess.Release()

	b, err := sess.Svc.Board(r.Context(),
		models.BoardViewKind(q.Get("view")), models.TicketType(q.Get("type")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (a *api) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sess := a.session(w, r)
	if sess == nil {
		return
	}
	defer sess.Release()

	res, err := sess.Svc.Search(r.Context(), q.Get("query"),
		models.TicketType(q.Get("type")), q.Get("status"),
		atoiDefault(q.Get("limit"), 0))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	sess := a.session(w, r)
	if sess == nil {
		return
	}
	defer sess.Release()

	d, err := sess.Svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type updateRequest struct {
	models.UpdateParams
	ChangedBy string `json:"changed_by"`
}

func (a *api) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Validation("invalid request body: %v", err))
		return
	}
	sess := a.session(w, r)
	if sess == nil {
		return
	}
	defer sess.Release()

	t, err := sess.Svc.Update(r.Context(), id, req.UpdateParams, req.ChangedBy)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type moveRequest struct {
	Status    string `json:"status"`
	ChangedBy string `json:"changed_by"`
}

func (a *api) handleMove(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Validation("invalid request body: %v", err))
		return
	}
	if req.Status == "" {
		writeError(w, errors.Validation("status is required"))
		return
	}
	sess := a.session(w, r)
	if sess == nil {
		return
	}
	defer sess.Release()

	t, err := sess.Svc.Transition(r.Context(), id, req.Status, req.ChangedBy)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type linkRequest struct {
	SourceID int64  `json:"source_id"`
	TargetID int64  `json:"target_id"`
	LinkType string `json:"link_type"`
}

func (a *api) handleLinkAdd(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Validation("invalid request body: %v", err))
		return
	}
	// The path ticket is the link source unless the body names one.
	if req.SourceID == 0 {
		req.SourceID = id
	}
	sess := a.session(w, r)
	if sess == nil {
		return
	}
	defer sess.Release()

	l, err := sess.Svc.LinkAdd(r.Context(), req.SourceID, req.TargetID,
		models.LinkType(req.LinkType))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (a *api) handleLinkList(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	sess := a.session(w, r)
	if sess == nil {
		return
	}
	defer sess.Release()

	set, err := sess.Svc.LinkList(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (a *api) handleLinkRemove(w http.ResponseWriter, r *http.Request) {
	if _, err := pathID(r, "id"); err != nil {
		writeError(w, err)
		return
	}
	linkID, err := pathID(r, "link_id")
	if err != nil {
		writeError(w, err)
		return
	}
	sess := a.session(w, r)
	if sess == nil {
		return
	}
	defer sess.Release()

	if err := sess.Svc.LinkRemove(r.Context(), linkID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response with the kind's status code.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errors.GetHTTPStatus(err), ErrorResponse{
		Error:   errors.GetKind(err).String(),
		Message: err.Error(),
	})
}

func pathID(r *http.Request, key string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(key), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Validation("%s must be a positive integer", key)
	}
	return id, nil
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
