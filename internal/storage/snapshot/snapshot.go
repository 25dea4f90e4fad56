// Package snapshot implements storage.Adapter as one in-memory JSON
// document, persisted as `data`+`schemas` top-level keys (spec §4.3/§6).
//
// Grounded on the teacher's internal/api/storage.go Storage (an always-live
// in-memory map, never wrapped in a transaction), generalized here to a
// shadow-copy transaction model: Begin deep-copies the tree, Commit swaps it
// back in, Rollback discards the copy (see DESIGN.md).
package snapshot

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/kalita-labs/truss/internal/errs"
	"github.com/kalita-labs/truss/internal/schema"
	"github.com/kalita-labs/truss/internal/storage"
)

// docData is the "data" top-level key's shape: entity tables (pk -> row)
// alongside relation/junction tables (an ordered list of link rows), kept
// as sibling namespaces so the persisted document still has exactly the two
// top-level keys spec §6 names: "data" and "schemas".
type docData struct {
	Entities  map[string]map[string]map[string]any `json:"entities"`
	Relations map[string][]map[string]any          `json:"relations"`
}

type doc struct {
	Tables    map[string]map[string]map[string]any `json:"-"`
	Relations map[string][]map[string]any          `json:"-"`
	Schemas   map[string]*schema.EntityDef          `json:"-"`
}

func newDoc() *doc {
	return &doc{
		Tables:    make(map[string]map[string]map[string]any),
		Relations: make(map[string][]map[string]any),
		Schemas:   make(map[string]*schema.EntityDef),
	}
}

// MarshalJSON renders the two-top-level-key form spec §6 describes.
func (d *doc) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Data    docData                       `json:"data"`
		Schemas map[string]*schema.EntityDef `json:"schemas"`
	}{
		Data:    docData{Entities: d.Tables, Relations: d.Relations},
		Schemas: d.Schemas,
	})
}

func (d *doc) UnmarshalJSON(b []byte) error {
	var wire struct {
		Data    docData                       `json:"data"`
		Schemas map[string]*schema.EntityDef `json:"schemas"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	d.Tables = wire.Data.Entities
	d.Relations = wire.Data.Relations
	d.Schemas = wire.Schemas
	if d.Tables == nil {
		d.Tables = make(map[string]map[string]map[string]any)
	}
	if d.Relations == nil {
		d.Relations = make(map[string][]map[string]any)
	}
	if d.Schemas == nil {
		d.Schemas = make(map[string]*schema.EntityDef)
	}
	return nil
}

func (d *doc) clone() *doc {
	out := newDoc()
	for t, rows := range d.Tables {
		copied := make(map[string]map[string]any, len(rows))
		for pk, row := range rows {
			copied[pk] = cloneRow(row)
		}
		out.Tables[t] = copied
	}
	for t, rows := range d.Relations {
		copied := make([]map[string]any, len(rows))
		for i, row := range rows {
			copied[i] = cloneRow(row)
		}
		out.Relations[t] = copied
	}
	for k, v := range d.Schemas {
		out.Schemas[k] = v
	}
	return out
}

func cloneRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

// Adapter is the JSON-snapshot storage.Adapter implementation.
type Adapter struct {
	mu sync.RWMutex
	d  *doc
}

var _ storage.Adapter = (*Adapter)(nil)

// New builds an empty in-memory snapshot; call Init before use.
func New() *Adapter { return &Adapter{} }

// Load builds an Adapter from a previously-serialized document (raw is a
// JSON blob matching {"data": ..., "schemas": ...}); an empty/nil raw
// starts fresh.
func Load(raw []byte) (*Adapter, error) {
	d := newDoc()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, d); err != nil {
			return nil, errs.Wrap(errs.Storage, err, "loading snapshot")
		}
	}
	return &Adapter{d: d}, nil
}

func (a *Adapter) Init(ctx context.Context) error {
	if a.d == nil {
		a.d = newDoc()
	}
	return nil
}

func (a *Adapter) Close(ctx context.Context) error { return nil }

// Dump serializes the current in-memory document into the
// {"data": ..., "schemas": ...} form that Load reads back. Neither
// cmd/truss nor cmd/server calls it; their snapshot adapter lives only in
// memory for the life of the process.
func (a *Adapter) Dump() ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return json.MarshalIndent(a.d, "", "  ")
}

func pkString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return jsonScalar(v)
}

func jsonScalar(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func matches(row, criteria map[string]any) bool {
	for k, v := range criteria {
		if row[k] != v {
			return false
		}
	}
	return true
}
