package ticketd

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/diogenes-ai-code/ticketcore/internal/tools"
)

// rpcRegistry is a minimal tool dispatcher: tools register by name and are
// invoked over POST /rpc/{tool} with a JSON argument object.
type rpcRegistry struct {
	mu       sync.RWMutex
	handlers map[string]tools.Handler
}

func newRPCRegistry() *rpcRegistry {
	return &rpcRegistry{handlers: make(map[string]tools.Handler)}
}

// Register implements tools.Registrar.
func (r *rpcRegistry) Register(name string, h tools.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// handle serves POST /rpc/{tool}.
func (r *rpcRegistry) handle(w http.ResponseWriter, req *http.Request) {
	name := req.PathValue("tool")
	r.mu.RLock()
	h, ok := r.handlers[name]
	r.mu.RUnlock()
	if !ok {
		writeRPC(w, http.StatusNotFound, map[string]any{
			"error":   "NotFound",
			"message": "unknown tool: " + name,
		})
		return
	}

	args := map[string]any{}
	if err := json.NewDecoder(req.Body).Decode(&args); err != nil && !errors.Is(err, io.EOF) {
		writeRPC(w, http.StatusBadRequest, map[string]any{
			"error":   "ValidationError",
			"message": "invalid request body: " + err.Error(),
		})
		return
	}

	// Tool results carry errors in-band; the transport status stays 200.
	writeRPC(w, http.StatusOK, h(req.Context(), args))
}

func writeRPC(w http.ResponseWriter, status int, data map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
