package schema

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestEmbeddedSchemasCompile(t *testing.T) {
	c := NewEmbeddedCache()
	for _, name := range Names() {
		if _, err := c.Schema(name); err != nil {
			t.Errorf("Schema(%s): %v", name, err)
		}
	}
}

func TestValidateRecords(t *testing.T) {
	c := NewEmbeddedCache()
	cases := []struct {
		name  string
		ok    bool
		input string
	}{
		{"timeline", true, `{"id":"01J","kind":"session_start","offset_ms":0,"wall_time":"2026-01-01T00:00:00.000Z","created_at":"2026-01-01T00:00:00.000Z","source":"system"}`},
		{"timeline", false, `{"id":"01J","kind":"lunch","offset_ms":0,"wall_time":"2026-01-01T00:00:00.000Z","created_at":"2026-01-01T00:00:00.000Z","source":"system"}`},
		{"marker", true, `{"id":"01J","offset_ms":1200,"created_at":"2026-01-01T00:00:00.000Z","source":"user","label":"Warmup","tags":["practice"]}`},
		{"marker", false, `{"id":"01J","offset_ms":-1,"created_at":"2026-01-01T00:00:00.000Z","source":"user"}`},
		{"voice_note", true, `{"id":"01J","created_at":"2026-01-01T00:00:00.000Z","media_path":"media/a.m4a","offset_ms":0,"duration_ms":10}`},
		{"voice_note", false, `{"id":"01J","created_at":"2026-01-01T00:00:00.000Z","offset_ms":0,"duration_ms":10}`},
		{"transcript", true, `{"id":"t1","offset_ms":100,"duration_ms":50,"text":"hello"}`},
		{"transcript", false, `{"id":"t1","offset_ms":"100","duration_ms":50,"text":"hello"}`},
		{"actions", true, `{"id":"a1","action":"generate_digest","created_at":"2026-01-01T00:00:00.000Z","status":"started"}`},
		{"actions", false, `{"id":"a1","action":"generate_digest","created_at":"2026-01-01T00:00:00.000Z","status":"pending"}`},
	}
	for _, tc := range cases {
		res := c.Validate(Name(tc.name), []byte(tc.input))
		if res.OK != tc.ok {
			t.Errorf("%s %s: OK = %v, want %v (%s)", tc.name, tc.input, res.OK, tc.ok, res)
		}
		if !res.OK && len(res.Errors) == 0 {
			t.Errorf("%s: invalid result without errors", tc.name)
		}
	}
}

func TestValidateInvalidJSON(t *testing.T) {
	res := NewEmbeddedCache().Validate(Marker, []byte("{nope"))
	if res.OK {
		t.Fatal("expected invalid JSON to fail")
	}
	if !strings.Contains(res.String(), "invalid JSON") {
		t.Errorf("unexpected message %q", res.String())
	}
}

func TestCachesAreIndependent(t *testing.T) {
	permissive := NewCache(fstest.MapFS{
		"marker.schema.json": {Data: []byte(`{"$schema":"https://json-schema.org/draft/2020-12/schema","type":"object"}`)},
	})
	strict := NewEmbeddedCache()

	input := []byte(`{"anything":true}`)
	if !permissive.Validate(Marker, input).OK {
		t.Error("permissive cache should accept any object")
	}
	if strict.Validate(Marker, input).OK {
		t.Error("embedded cache should reject a marker without required fields")
	}
}

func TestMissingSchemaIsReported(t *testing.T) {
	c := NewCache(fstest.MapFS{})
	res := c.Validate(Session, []byte(`{}`))
	if res.OK {
		t.Fatal("expected failure when schema file is absent")
	}
	if !strings.Contains(res.String(), "read schema session") {
		t.Errorf("unexpected message %q", res.String())
	}
}
