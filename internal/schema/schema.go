// Package schema validates session documents and log records against the
// versioned JSON Schemas shipped with trace.
package schema

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"github.com/kaptinlin/jsonschema"
)

// Name identifies one of the record schemas.
type Name string

const (
	Session    Name = "session"
	Timeline   Name = "timeline"
	Marker     Name = "marker"
	VoiceNote  Name = "voice_note"
	Transcript Name = "transcript"
	Actions    Name = "actions"
)

// Version of the embedded schema set.
const Version = "1"

// Names lists every schema in a stable order.
func Names() []Name {
	return []Name{Session, Timeline, Marker, VoiceNote, Transcript, Actions}
}

//go:embed schemas/*.schema.json
var embedded embed.FS

// FieldError is one schema violation located by a JSON pointer.
type FieldError struct {
	Path    string
	Message string
}

// Result is the outcome of validating one value.
type Result struct {
	OK     bool
	Errors []FieldError
}

// String joins the errors as "path message; path message".
func (r Result) String() string {
	if r.OK {
		return "ok"
	}
	if len(r.Errors) == 0 {
		return "unknown validation error"
	}
	parts := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		parts[i] = e.Path + " " + e.Message
	}
	return strings.Join(parts, "; ")
}

// Cache compiles schemas on first use and keeps them for its own lifetime.
// Callers own the cache; there is no package-level compiled state.
type Cache struct {
	mu       sync.Mutex
	fsys     fs.FS
	compiled map[Name]*jsonschema.Schema
}

// NewCache reads "<name>.schema.json" files from fsys.
func NewCache(fsys fs.FS) *Cache {
	return &Cache{fsys: fsys, compiled: make(map[Name]*jsonschema.Schema)}
}

// NewEmbeddedCache returns a cache over the schemas compiled into the binary.
func NewEmbeddedCache() *Cache {
	sub, err := fs.Sub(embedded, "schemas")
	if err != nil {
		// The embed pattern guarantees the directory exists.
		panic(err)
	}
	return NewCache(sub)
}

// Schema returns the compiled schema for name.
func (c *Cache) Schema(name Name) (*jsonschema.Schema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.compiled[name]; ok {
		return s, nil
	}
	data, err := fs.ReadFile(c.fsys, string(name)+".schema.json")
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", name, err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	s, err := compiler.Compile(data)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	c.compiled[name] = s
	return s, nil
}

// Validate checks raw JSON against the named schema.
func (c *Cache) Validate(name Name, data []byte) Result {
	if !json.Valid(data) {
		return Result{Errors: []FieldError{{Path: "/", Message: "invalid JSON"}}}
	}
	s, err := c.Schema(name)
	if err != nil {
		return Result{Errors: []FieldError{{Path: "/", Message: err.Error()}}}
	}
	res := s.ValidateJSON(data)
	if res.IsValid() {
		return Result{OK: true}
	}
	errs := flatten(res.ToList(), nil)
	if len(errs) == 0 {
		errs = []FieldError{{Path: "/", Message: "invalid"}}
	}
	return Result{Errors: errs}
}

// ValidateValue encodes v and validates the encoding.
func (c *Cache) ValidateValue(name Name, v any) Result {
	data, err := json.Marshal(v)
	if err != nil {
		return Result{Errors: []FieldError{{Path: "/", Message: err.Error()}}}
	}
	return c.Validate(name, data)
}

func flatten(list *jsonschema.List, out []FieldError) []FieldError {
	if list == nil {
		return out
	}
	if len(list.Errors) > 0 {
		path := list.InstanceLocation
		if path == "" {
			path = "/"
		}
		keys := make([]string, 0, len(list.Errors))
		for k := range list.Errors {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, FieldError{Path: path, Message: list.Errors[k]})
		}
	}
	for i := range list.Details {
		out = flatten(&list.Details[i], out)
	}
	return out
}
