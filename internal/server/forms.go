package server

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dlovans/formwork/pkg/formwork"
)

// Registry holds the form documents the server can mount, keyed by form id.
type Registry struct {
	mu    sync.RWMutex
	forms map[string]*formwork.Document
}

func NewRegistry() *Registry {
	return &Registry{forms: make(map[string]*formwork.Document)}
}

// LoadDir registers every .json, .yaml and .yml document in dir. A document
// without an id is registered under its file name stem.
func (r *Registry) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read forms: %w", err)
	}
	n := 0
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".json" && ext != ".yaml" && ext != ".yml") {
			continue
		}
		doc, err := formwork.LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return n, fmt.Errorf("load %s: %w", e.Name(), err)
		}
		id := doc.ID
		if id == "" {
			id = strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		}
		r.Register(id, doc)
		n++
	}
	return n, nil
}

// Register adds or replaces a form.
func (r *Registry) Register(id string, doc *formwork.Document) {
	r.mu.Lock()
	r.forms[id] = doc
	r.mu.Unlock()
}

// Get returns the form registered under id.
func (r *Registry) Get(id string) (*formwork.Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.forms[id]
	return doc, ok
}

// IDs lists registered form ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.forms))
	for id := range r.forms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
