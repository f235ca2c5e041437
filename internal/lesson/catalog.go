package lesson

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// DefaultCategories are the module sub-directories listed by a Catalog.
var DefaultCategories = []string{"energizer", "refresher", "achiver"}

// #region catalog

// Catalog lists module ids ("category/file.json") under a modules root. The
// listing is cached until a watched directory changes.
type Catalog struct {
	dir        string
	categories []string

	mu     sync.RWMutex
	cached []string
	valid  bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewCatalog creates a catalog. Nil categories means DefaultCategories.
func NewCatalog(dir string, categories []string) *Catalog {
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	return &Catalog{dir: dir, categories: categories}
}

// List returns every module id, sorted.
func (c *Catalog) List() ([]string, error) {
	c.mu.RLock()
	if c.valid {
		out := append([]string(nil), c.cached...)
		c.mu.RUnlock()
		return out, nil
	}
	c.mu.RUnlock()

	var ids []string
	for _, cat := range c.categories {
		entries, err := os.ReadDir(filepath.Join(c.dir, cat))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("list %s: %w", cat, err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			ids = append(ids, path.Join(cat, e.Name()))
		}
	}
	sort.Strings(ids)

	c.mu.Lock()
	c.cached = ids
	c.valid = true
	c.mu.Unlock()
	return append([]string(nil), ids...), nil
}

// Invalidate drops the cached listing.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}

// #endregion

// #region watch

// Watch starts an fsnotify watcher over the category directories. Missing
// directories are skipped. Call Close to stop it.
func (c *Catalog) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog watcher: %w", err)
	}
	watched := 0
	for _, cat := range c.categories {
		p := filepath.Join(c.dir, cat)
		if err := w.Add(p); err != nil {
			log.Printf("[LESSON] catalog: not watching %s: %v", p, err)
			continue
		}
		watched++
	}
	c.watcher = w
	c.done = make(chan struct{})
	go c.loop()
	log.Printf("[LESSON] catalog: watching %d categories under %s", watched, c.dir)
	return nil
}

func (c *Catalog) loop() {
	for {
		select {
		case ev, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				c.Invalidate()
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[LESSON] catalog watcher: %v", err)
		case <-c.done:
			return
		}
	}
}

// Close stops the watcher if one is running.
func (c *Catalog) Close() error {
	if c.watcher == nil {
		return nil
	}
	close(c.done)
	err := c.watcher.Close()
	c.watcher = nil
	return err
}

// #endregion
