package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/flexiapi/flexiapi/pkg/apperrors"
	"github.com/flexiapi/flexiapi/pkg/jsonutil"
	"github.com/flexiapi/flexiapi/pkg/services"
)

// MaxBodyBytes bounds request bodies.
const MaxBodyBytes = 10 << 20

// TableHandler serves the generic CRUD endpoint. The HTTP verb selects the
// operation: GET selects, POST inserts (or runs a custom method when
// action=custom), PUT updates and DELETE deletes.
type TableHandler struct {
	tables  services.TableService
	methods services.CustomMethodRegistry
	logger  *zap.Logger
}

// NewTableHandler creates a TableHandler.
func NewTableHandler(tables services.TableService, methods services.CustomMethodRegistry, logger *zap.Logger) *TableHandler {
	return &TableHandler{tables: tables, methods: methods, logger: logger.Named("http")}
}

// RegisterRoutes registers the endpoint at / and /api.
func (h *TableHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/{$}", h)
	mux.Handle("/api", h)
	mux.HandleFunc("GET /methods", h.ListMethods)
}

func (h *TableHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.Select(w, r)
	case http.MethodPost:
		h.Create(w, r)
	case http.MethodPut:
		h.Update(w, r)
	case http.MethodDelete:
		h.Delete(w, r)
	default:
		w.Header().Set("Allow", "GET, POST, PUT, DELETE")
		h.write(Failure(w, http.StatusMethodNotAllowed, "Unsupported HTTP method"))
	}
}

// Select handles GET: the URL query string is the request mapping.
func (h *TableHandler) Select(w http.ResponseWriter, r *http.Request) {
	res, err := h.tables.Select(r.Context(), queryInput(r))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	h.write(Success(w, "Data retrieved successfully", res.Rows, &res.Pagination))
}

// Create handles POST: an insert, or a custom method call when action=custom.
func (h *TableHandler) Create(w http.ResponseWriter, r *http.Request) {
	input, ok := h.bodyInput(w, r)
	if !ok {
		return
	}

	if action, _ := input["action"].(string); strings.EqualFold(strings.TrimSpace(action), "custom") {
		h.runCustom(w, r, input)
		return
	}

	res, err := h.tables.Insert(r.Context(), input)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	message := "Rows inserted successfully"
	if res.Upsert {
		message = "Rows upserted successfully"
	}
	h.write(Success(w, message, res, nil))
}

// Update handles PUT.
func (h *TableHandler) Update(w http.ResponseWriter, r *http.Request) {
	input, ok := h.bodyInput(w, r)
	if !ok {
		return
	}
	res, err := h.tables.Update(r.Context(), input)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	h.write(Success(w, "Rows updated successfully", res, nil))
}

// Delete handles DELETE.
func (h *TableHandler) Delete(w http.ResponseWriter, r *http.Request) {
	input, ok := h.bodyInput(w, r)
	if !ok {
		return
	}
	res, err := h.tables.Delete(r.Context(), input)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	h.write(Success(w, "Rows deleted successfully", res, nil))
}

// ListMethods handles GET /methods.
func (h *TableHandler) ListMethods(w http.ResponseWriter, r *http.Request) {
	h.write(Success(w, "Custom methods retrieved successfully", h.methods.List(), nil))
}

func (h *TableHandler) runCustom(w http.ResponseWriter, r *http.Request, input map[string]any) {
	name, _ := input["method"].(string)

	var params map[string]any
	switch p := input["params"].(type) {
	case nil:
	case map[string]any:
		params = p
	default:
		WriteError(w, apperrors.Validation("params", "Custom method params must be an object"), h.logger)
		return
	}

	result, err := h.methods.Run(r.Context(), name, params)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	h.write(Success(w, fmt.Sprintf("Custom method '%s' executed successfully", name), result, nil))
}

// queryInput flattens the URL query into a request mapping, keeping the first
// value of repeated keys.
func queryInput(r *http.Request) map[string]any {
	query := r.URL.Query()
	input := make(map[string]any, len(query))
	for k, v := range query {
		if len(v) > 0 {
			input[k] = v[0]
		}
	}
	return input
}

// bodyInput decodes the JSON request body. Malformed JSON is a 400 and an
// empty body is an empty mapping.
func (h *TableHandler) bodyInput(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	input, err := jsonutil.DecodeObject(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.write(Failure(w, http.StatusRequestEntityTooLarge, "Request body too large"))
			return nil, false
		}
		WriteError(w, apperrors.ValidationWrap("body", err, "Invalid JSON body"), h.logger)
		return nil, false
	}
	return input, true
}

func (h *TableHandler) write(err error) {
	if err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
