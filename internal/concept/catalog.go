// Package concept loads the catalog of learnable concepts from YAML files.
package concept

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Concept is a discrete unit of learnable material.
type Concept struct {
	ID            string   `yaml:"id" json:"id"`
	Name          string   `yaml:"name" json:"name"`
	Subject       string   `yaml:"subject" json:"subject,omitempty"`
	Description   string   `yaml:"description" json:"description,omitempty"`
	Prerequisites []string `yaml:"prerequisites" json:"prerequisites,omitempty"`
}

// file is the on-disk layout: either a single concept or a list.
type file struct {
	Concept  `yaml:",inline"`
	Concepts []Concept `yaml:"concepts"`
}

// Catalog holds concepts loaded from a directory tree.
type Catalog struct {
	rootDir  string
	concepts map[string]Concept
	mu       sync.RWMutex
}

// NewCatalog returns an empty catalog. Lookups on it always miss.
func NewCatalog() *Catalog {
	return &Catalog{concepts: make(map[string]Concept)}
}

// Load reads every *.yaml / *.yml file under rootDir. A missing directory
// yields an empty catalog.
func Load(rootDir string) (*Catalog, error) {
	c := NewCatalog()
	c.rootDir = rootDir

	if rootDir == "" {
		return c, nil
	}
	if _, err := os.Stat(rootDir); os.IsNotExist(err) {
		slog.Warn("concept catalog directory not found", "path", rootDir)
		return c, nil
	}

	if err := c.loadAll(); err != nil {
		return nil, fmt.Errorf("loading concepts: %w", err)
	}

	slog.Info("concept catalog loaded", "concepts", c.Len())
	return c, nil
}

// Get returns a concept by ID.
func (c *Catalog) Get(id string) (Concept, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	con, ok := c.concepts[id]
	return con, ok
}

// Name returns the display name for id, or "" when unknown.
func (c *Catalog) Name(id string) string {
	con, _ := c.Get(id)
	return con.Name
}

// All returns all concepts ordered by ID.
func (c *Catalog) All() []Concept {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Concept, 0, len(c.concepts))
	for _, con := range c.concepts {
		out = append(out, con)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of concepts.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.concepts)
}

// Add registers a concept, replacing any with the same ID.
func (c *Catalog) Add(con Concept) {
	if con.ID == "" {
		return
	}
	c.mu.Lock()
	c.concepts[con.ID] = con
	c.mu.Unlock()
}

func (c *Catalog) loadAll() error {
	return filepath.Walk(c.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
			return c.loadFile(path)
		}
		return nil
	})
}

func (c *Catalog) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		slog.Warn("skipping invalid concept YAML", "path", path, "error", err)
		return nil
	}

	c.Add(f.Concept)
	for _, con := range f.Concepts {
		c.Add(con)
	}
	return nil
}
