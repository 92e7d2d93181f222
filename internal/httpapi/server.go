// Copyright 2024 The vault-plugin-secrets-vector-dpe Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/hashicorp/go-hclog"

	"github.com/lpassig/tiptoe-pir/internal/simplepir"
	"github.com/lpassig/tiptoe-pir/internal/tiptoe"
)

// Handler wraps a *tiptoe.Server behind the fixed three-route wire
// contract (spec.md §6). Each handler runs inside a panic-recovery
// wrapper grounded on internal/plugin/encrypt.go's handleEncryptVector,
// which wraps gonum matrix math in defer/recover specifically because the
// numeric-kernel code underneath panics on programmer error (a
// dimension-mismatch Matrix.Get/Set, say) rather than returning one —
// exactly the code path this handler also calls into.
type Handler struct {
	server *tiptoe.Server
	logger hclog.Logger
	mux    *http.ServeMux
}

// NewHandler builds the net/http.Handler for a tiptoe.Server. No
// third-party router is used: spec.md §1 places the HTTP transport out of
// scope as anything beyond a request/response contract, and three fixed
// routes need nothing a ServeMux doesn't already provide (see DESIGN.md's
// stdlib justification).
func NewHandler(server *tiptoe.Server, logger hclog.Logger) *Handler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	h := &Handler{server: server, logger: logger, mux: http.NewServeMux()}
	h.mux.HandleFunc("/db-config", h.recovered(h.handleDBConfig))
	h.mux.HandleFunc("/query/embedding", h.recovered(h.handleQueryEmbedding))
	h.mux.HandleFunc("/query/text", h.recovered(h.handleQueryText))
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) { h.mux.ServeHTTP(w, r) }

func (h *Handler) recovered(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("handler panic recovered", "path", r.URL.Path, "panic", rec)
				writeError(w, http.StatusInternalServerError, simplepir.ErrKindIO, "internal error")
			}
		}()
		next(w, r)
	}
}

func (h *Handler) handleDBConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, simplepir.ErrKindParameter, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, toConfigResponse(h.server.Config()))
}

func (h *Handler) handleQueryEmbedding(w http.ResponseWriter, r *http.Request) {
	h.handleQuery(w, r, h.server.AnswerEmbedding)
}

func (h *Handler) handleQueryText(w http.ResponseWriter, r *http.Request) {
	h.handleQuery(w, r, h.server.AnswerText)
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request, answer func([]uint64) ([]uint64, error)) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, simplepir.ErrKindParameter, "method not allowed")
		return
	}
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, simplepir.ErrKindParameter, "malformed request body: "+err.Error())
		return
	}

	a, err := answer(flexSliceToUint64(req.QueryCipher))
	if err != nil {
		status := http.StatusBadRequest
		kind := simplepir.KindOf(err)
		if kind == simplepir.ErrKindNotReady {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, kind, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{Answer: a})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind simplepir.ErrorKind, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind.String()})
}
