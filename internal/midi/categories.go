package midi

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Category is a marker tag a controller can be bound to.
type Category string

const (
	Highlight     Category = "highlight"
	Structure     Category = "structure"
	TextureSample Category = "texture-sample"
	FixReview     Category = "fix-review"
)

// Categories lists the vocabulary in display order.
func Categories() []Category {
	return []Category{Highlight, Structure, TextureSample, FixReview}
}

func (c Category) Valid() bool {
	switch c {
	case Highlight, Structure, TextureSample, FixReview:
		return true
	}
	return false
}

// CategoryMap binds "channel:controller" keys to categories. Callers build
// and hold their own map.
type CategoryMap struct {
	m map[string]Category
}

// Key formats the lookup key for a channel and controller.
func Key(channel, controller int) string {
	return strconv.Itoa(channel) + ":" + strconv.Itoa(controller)
}

// NewCategoryMap validates raw and returns a map over it.
func NewCategoryMap(raw map[string]string) (*CategoryMap, error) {
	m := make(map[string]Category, len(raw))
	for k, v := range raw {
		if err := checkKey(k); err != nil {
			return nil, err
		}
		c := Category(v)
		if !c.Valid() {
			return nil, fmt.Errorf("midi category %q for %s is not one of %s", v, k, vocabulary())
		}
		m[k] = c
	}
	return &CategoryMap{m: m}, nil
}

// DefaultCategoryMap binds controllers 20-23 on channel 0 to the four
// categories.
func DefaultCategoryMap() *CategoryMap {
	return &CategoryMap{m: map[string]Category{
		"0:20": Highlight,
		"0:21": Structure,
		"0:22": TextureSample,
		"0:23": FixReview,
	}}
}

// LoadCategoryMap reads a JSON object of "channel:controller" -> category.
func LoadCategoryMap(path string) (*CategoryMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read midi categories: %w", err)
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse midi categories %s: %w", path, err)
	}
	return NewCategoryMap(raw)
}

// Lookup returns the category bound to channel and controller.
func (m *CategoryMap) Lookup(channel, controller int) (Category, bool) {
	if m == nil {
		return "", false
	}
	c, ok := m.m[Key(channel, controller)]
	return c, ok
}

// Keys returns the bound keys in sorted order.
func (m *CategoryMap) Keys() []string {
	keys := make([]string, 0, len(m.m))
	for k := range m.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func checkKey(k string) error {
	ch, cc, ok := strings.Cut(k, ":")
	if !ok {
		return fmt.Errorf("midi category key %q is not channel:controller", k)
	}
	c, err := strconv.Atoi(ch)
	if err != nil || c < 0 || c > 15 {
		return fmt.Errorf("midi category key %q: channel must be 0-15", k)
	}
	n, err := strconv.Atoi(cc)
	if err != nil || n < 0 || n > 127 {
		return fmt.Errorf("midi category key %q: controller must be 0-127", k)
	}
	return nil
}

func vocabulary() string {
	names := make([]string, 0, 4)
	for _, c := range Categories() {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}
