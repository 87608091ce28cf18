// Package seed implements the file-backed seed source registry.
package seed

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/newsforge/newsforge/internal/news"
)

// Registry errors.
var (
	ErrExists   = errors.New("seed already exists")
	ErrNotFound = errors.New("seed not found")
)

// Entry is the on-disk shape of one named source.
type Entry struct {
	RSS      string   `yaml:"rss,omitempty"`
	Sitemap  string   `yaml:"sitemap,omitempty"`
	Sections []string `yaml:"sections,omitempty"`
}

// Registry reads and writes the seeds file. The file holds a top-level
// mapping of source name to Entry.
type Registry struct {
	path string
}

// NewRegistry creates a Registry for the given file path.
func NewRegistry(path string) *Registry {
	return &Registry{path: path}
}

func (r *Registry) load() (map[string]Entry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Entry{}, nil
		}
		return nil, fmt.Errorf("read seeds file: %w", err)
	}
	seeds := map[string]Entry{}
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("parse seeds file: %w", err)
	}
	return seeds, nil
}

func (r *Registry) save(seeds map[string]Entry) error {
	data, err := yaml.Marshal(seeds)
	if err != nil {
		return fmt.Errorf("marshal seeds: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		return fmt.Errorf("write seeds file: %w", err)
	}
	return nil
}

// Add registers a new named source. At least one URL must be supplied.
func (r *Registry) Add(name string, entry Entry) error {
	if entry.RSS == "" && entry.Sitemap == "" && len(entry.Sections) == 0 {
		return errors.New("seed entry needs at least one of rss, sitemap, or sections")
	}
	seeds, err := r.load()
	if err != nil {
		return err
	}
	if _, ok := seeds[name]; ok {
		return fmt.Errorf("%q: %w", name, ErrExists)
	}
	seeds[name] = entry
	return r.save(seeds)
}

// Remove deletes a named source.
func (r *Registry) Remove(name string) error {
	seeds, err := r.load()
	if err != nil {
		return err
	}
	if _, ok := seeds[name]; !ok {
		return fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	delete(seeds, name)
	return r.save(seeds)
}

// List returns all entries keyed by name.
func (r *Registry) List() (map[string]Entry, error) {
	return r.load()
}

// ListSeedTargets flattens the registry into targets for the fetcher,
// ordered by name for deterministic runs.
func (r *Registry) ListSeedTargets() ([]news.SeedTarget, error) {
	seeds, err := r.load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(seeds))
	for name := range seeds {
		names = append(names, name)
	}
	sort.Strings(names)

	var targets []news.SeedTarget
	for _, name := range names {
		entry := seeds[name]
		if entry.RSS != "" {
			targets = append(targets, news.SeedTarget{Name: name, Kind: news.KindRSS, URL: entry.RSS})
		}
		if entry.Sitemap != "" {
			targets = append(targets, news.SeedTarget{Name: name, Kind: news.KindSitemap, URL: entry.Sitemap})
		}
		for _, section := range entry.Sections {
			targets = append(targets, news.SeedTarget{Name: name, Kind: news.KindSection, URL: section})
		}
	}
	return targets, nil
}
