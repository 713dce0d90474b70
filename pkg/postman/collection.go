// Package postman renders a Postman v2.1 collection describing the CRUD
// endpoint and the registered custom methods.
package postman

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/flexiapi/flexiapi/pkg/middleware"
)

// SchemaURL identifies the collection format.
const SchemaURL = "https://schema.getpostman.com/json/collection/v2.1.0/collection.json"

// Postman variables referenced by every request.
const (
	BaseURLVar = "{{baseUrl}}"
	APIKeyVar  = "{{apiKey}}"
)

type Collection struct {
	Info     Info       `json:"info"`
	Item     []Item     `json:"item"`
	Variable []Variable `json:"variable,omitempty"`
}

type Info struct {
	Name   string `json:"name"`
	Schema string `json:"schema"`
}

type Variable struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Item struct {
	Name    string  `json:"name"`
	Request Request `json:"request"`
}

type Request struct {
	Method string   `json:"method"`
	Header []Header `json:"header"`
	URL    URL      `json:"url"`
	Body   *Body    `json:"body,omitempty"`
}

type Header struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type URL struct {
	Raw   string     `json:"raw"`
	Host  []string   `json:"host"`
	Path  []string   `json:"path"`
	Query []Variable `json:"query,omitempty"`
}

type Body struct {
	Mode string `json:"mode"`
	Raw  string `json:"raw"`
}

// Options configures the generated collection.
type Options struct {
	Name    string
	BaseURL string // default value of the baseUrl variable
	Path    string // endpoint path, "api" by default
	Table   string // table used by the examples, "users" by default
}

// Generate builds the collection: one example per CRUD verb followed by one
// POST per custom method, in the order given.
func Generate(opts Options, methods []string) (*Collection, error) {
	if opts.Name == "" {
		opts.Name = "FlexiAPI Collection"
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "http://localhost:8080"
	}
	if opts.Path == "" {
		opts.Path = "api"
	}
	if opts.Table == "" {
		opts.Table = "users"
	}

	examples := []struct {
		name   string
		method string
		query  []Variable
		body   any
	}{
		{
			name:   "Create (Insert Rows)",
			method: "POST",
			body: map[string]any{
				"table": opts.Table,
				"data": []map[string]any{
					{"name": "Jane", "email": "jane@example.com", "age": 22},
					{"name": "Paul", "email": "paul@example.com", "age": 29},
				},
			},
		},
		{
			name:   "Get (Select Rows)",
			method: "GET",
			query: []Variable{
				{Key: "table", Value: opts.Table},
				{Key: "columns", Value: "id,name,email"},
				{Key: "condition", Value: `[{"field":"status","operator":"=","value":"active"}]`},
				{Key: "page", Value: "1"},
				{Key: "limit", Value: "5"},
			},
		},
		{
			name:   "Update Rows",
			method: "PUT",
			body: map[string]any{
				"table": opts.Table,
				"where": map[string]any{"field": "id", "operator": "=", "value": 1},
				"data":  map[string]any{"status": "inactive"},
			},
		},
		{
			name:   "Delete Rows",
			method: "DELETE",
			body: map[string]any{
				"table":  opts.Table,
				"column": "id",
				"values": []any{2},
				"limit":  1,
			},
		},
	}

	c := &Collection{
		Info:     Info{Name: opts.Name, Schema: SchemaURL},
		Variable: []Variable{{Key: "baseUrl", Value: opts.BaseURL}, {Key: "apiKey", Value: ""}},
	}

	for _, ex := range examples {
		item, err := newItem(ex.name, ex.method, opts.Path, ex.query, ex.body)
		if err != nil {
			return nil, err
		}
		c.Item = append(c.Item, item)
	}

	for _, m := range methods {
		item, err := newItem("Custom: "+m, "POST", opts.Path, nil, map[string]any{
			"action": "custom",
			"method": m,
			"params": map[string]any{},
		})
		if err != nil {
			return nil, err
		}
		c.Item = append(c.Item, item)
	}
	return c, nil
}

func newItem(name, method, path string, query []Variable, body any) (Item, error) {
	raw := BaseURLVar + "/" + path
	if len(query) > 0 {
		parts := make([]string, len(query))
		for i, q := range query {
			parts[i] = q.Key + "=" + url.QueryEscape(q.Value)
		}
		raw += "?" + strings.Join(parts, "&")
	}

	req := Request{
		Method: method,
		Header: []Header{{Key: middleware.APIKeyHeader, Value: APIKeyVar}},
		URL: URL{
			Raw:   raw,
			Host:  []string{BaseURLVar},
			Path:  strings.Split(path, "/"),
			Query: query,
		},
	}

	if body != nil {
		encoded, err := marshalIndent(body)
		if err != nil {
			return Item{}, fmt.Errorf("encode %q body: %w", name, err)
		}
		req.Body = &Body{Mode: "raw", Raw: strings.TrimSuffix(string(encoded), "\n")}
		req.Header = append(req.Header, Header{Key: "Content-Type", Value: "application/json"})
	}
	return Item{Name: name, Request: req}, nil
}

// Write encodes the collection as indented JSON.
func Write(w io.Writer, c *Collection) error {
	out, err := marshalIndent(c)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

func marshalIndent(v any) ([]byte, error) {
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}
