package util

import (
	"fmt"
	"path/filepath"
	"slices"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/boyter/gocodewalker"
)

// DefaultPagePatterns match saved web pages.
var DefaultPagePatterns = []string{"**/*.html", "**/*.htm"}

// DefaultPageExclusions are directories that never hold pages worth importing.
// They are passed to gocodewalker's ExcludeDirectory.
var DefaultPageExclusions = []string{
	"node_modules",
	".git",
}

// DefaultExcludePatterns skip the asset folders browsers write next to a saved page.
var DefaultExcludePatterns = []string{"**/*_files/**"}

// PageWalkOptions configures FindPages.
type PageWalkOptions struct {
	// Patterns are doublestar globs matched against slash-separated paths
	// relative to the root. Empty means DefaultPagePatterns.
	Patterns        []string
	ExcludeDefaults bool // If true, don't apply DefaultPageExclusions
	IncludeHidden   bool
}

// WalkStats tracks what FindPages saw.
type WalkStats struct {
	mu            sync.Mutex
	FilesMatched  int
	FilesSkipped  int
	FilesExcluded int
}

func (s *WalkStats) addMatched() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FilesMatched++
}

func (s *WalkStats) addExcluded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FilesExcluded++
}

func (s *WalkStats) addSkipped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FilesSkipped++
}

// FindPages walks root and returns the files matching the options' patterns,
// sorted by path. Ignore files (.gitignore, .ignore) are honored.
func FindPages(root string, opts *PageWalkOptions) ([]string, *WalkStats, error) {
	if opts == nil {
		opts = &PageWalkOptions{}
	}
	patterns := opts.Patterns
	if len(patterns) == 0 {
		patterns = DefaultPagePatterns
	}
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, nil, fmt.Errorf("invalid pattern %q", p)
		}
	}

	stats := &WalkStats{}

	fileQueue := make(chan *gocodewalker.File, 256)
	walker := gocodewalker.NewFileWalker(root, fileQueue)
	walker.IncludeHidden = opts.IncludeHidden
	var excludes []string
	if !opts.ExcludeDefaults {
		walker.ExcludeDirectory = append(walker.ExcludeDirectory, DefaultPageExclusions...)
		excludes = DefaultExcludePatterns
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- walker.Start()
	}()

	var pages []string
	var relErr error
	for f := range fileQueue {
		if relErr != nil {
			continue
		}
		rel, err := filepath.Rel(root, f.Location)
		if err != nil {
			relErr = err
			continue
		}
		rel = filepath.ToSlash(rel)
		switch {
		case matchAny(excludes, rel):
			stats.addExcluded()
		case matchAny(patterns, rel):
			pages = append(pages, f.Location)
			stats.addMatched()
		default:
			stats.addSkipped()
		}
	}

	if err := <-errChan; err != nil {
		return nil, stats, fmt.Errorf("directory walk failed: %w", err)
	}
	if relErr != nil {
		return nil, stats, relErr
	}

	slices.Sort(pages)
	return pages, stats, nil
}

func matchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}
