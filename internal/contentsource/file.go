package contentsource

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// FileSource reads documents from a local (or mounted) filesystem tree. It
// is the one source type this repository ships a full adapter for; the
// remaining nine source types are registered as stubs.
type FileSource struct {
	basePath   string
	extensions map[string]bool // lowercase, with leading dot; empty means "all files"
	recursive  bool
}

// FileSourceConfig configures a FileSource.
type FileSourceConfig struct {
	BasePath   string
	Extensions []string // e.g. [".md", ".txt"]; empty means every file
	Recursive  bool
}

// NewFileSource builds a FileSource from a generic settings map, the shape
// the factory passes every adapter.
func NewFileSource(settings map[string]any) (Source, error) {
	cfg := FileSourceConfig{Recursive: true}
	if v, ok := settings["base_path"].(string); ok {
		cfg.BasePath = v
	}
	if cfg.BasePath == "" {
		return nil, fmt.Errorf("contentsource: file source requires base_path")
	}
	if v, ok := settings["recursive"].(bool); ok {
		cfg.Recursive = v
	}
	if raw, ok := settings["extensions"].([]string); ok {
		cfg.Extensions = raw
	} else if raw, ok := settings["extensions"].([]any); ok {
		for _, e := range raw {
			if s, ok := e.(string); ok {
				cfg.Extensions = append(cfg.Extensions, s)
			}
		}
	}
	return NewFileSourceFromConfig(cfg), nil
}

// NewFileSourceFromConfig builds a FileSource from a typed config, for
// callers that already have one (e.g. tests) rather than a raw settings map.
func NewFileSourceFromConfig(cfg FileSourceConfig) *FileSource {
	exts := make(map[string]bool, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		exts[strings.ToLower(e)] = true
	}
	return &FileSource{basePath: cfg.BasePath, extensions: exts, recursive: cfg.Recursive}
}

func (s *FileSource) accepts(path string) bool {
	if len(s.extensions) == 0 {
		return true
	}
	return s.extensions[strings.ToLower(filepath.Ext(path))]
}

// List walks the base path and returns every matching file, with its
// modification time as metadata.
func (s *FileSource) List(ctx context.Context) ([]DocumentInfo, error) {
	var out []DocumentInfo
	walk := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if !s.recursive && path != s.basePath {
				return filepath.SkipDir
			}
			return nil
		}
		if !s.accepts(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, DocumentInfo{
			ID: path,
			Metadata: map[string]any{
				"last_modified": info.ModTime(),
				"size":          info.Size(),
			},
		})
		return nil
	}
	if err := filepath.WalkDir(s.basePath, walk); err != nil {
		return nil, fmt.Errorf("contentsource: list %s: %w", s.basePath, err)
	}
	return out, nil
}

// Fetch reads one file's content from disk.
func (s *FileSource) Fetch(ctx context.Context, id string) (FetchedDocument, error) {
	if ctx.Err() != nil {
		return FetchedDocument{}, ctx.Err()
	}
	content, err := os.ReadFile(id)
	if err != nil {
		if os.IsNotExist(err) {
			return FetchedDocument{}, fmt.Errorf("contentsource: %s: %w", id, ErrNotFound)
		}
		return FetchedDocument{}, fmt.Errorf("contentsource: read %s: %w", id, err)
	}
	info, err := os.Stat(id)
	if err != nil {
		return FetchedDocument{}, fmt.Errorf("contentsource: stat %s: %w", id, err)
	}

	return FetchedDocument{
		ID:      id,
		Content: content,
		Metadata: map[string]any{
			"last_modified": info.ModTime(),
			"size":          info.Size(),
		},
		ContentHash: contentHash(content),
		ContentType: contentTypeFor(id),
	}, nil
}

// HasChanged compares the file's current mtime against lastModified. A zero
// lastModified means no prior baseline, so the document counts as changed.
func (s *FileSource) HasChanged(ctx context.Context, id string, lastModified time.Time) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	info, err := os.Stat(id)
	if err != nil {
		if os.IsNotExist(err) {
			return false, fmt.Errorf("contentsource: %s: %w", id, ErrNotFound)
		}
		return false, fmt.Errorf("contentsource: stat %s: %w", id, err)
	}
	if lastModified.IsZero() {
		return true, nil
	}
	return info.ModTime().After(lastModified), nil
}

// markdownLinkPattern matches `[text](target)` links; only relative,
// non-URL targets are treated as documents to follow.
var markdownLinkPattern = regexp.MustCompile(`\]\(([^)]+)\)`)

// FollowLinks extracts relative markdown links from content and resolves
// them against the source file's directory, returning the ones that exist
// on disk under basePath.
func (s *FileSource) FollowLinks(ctx context.Context, content []byte, sourceID string, currentDepth int, visited map[string]bool) ([]LinkedDocument, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	dir := filepath.Dir(sourceID)
	var out []LinkedDocument
	for _, m := range markdownLinkPattern.FindAllStringSubmatch(string(content), -1) {
		target := m[1]
		if strings.Contains(target, "://") || strings.HasPrefix(target, "#") {
			continue
		}
		target = strings.SplitN(target, "#", 2)[0]
		if target == "" {
			continue
		}
		resolved := filepath.Clean(filepath.Join(dir, target))
		if !strings.HasPrefix(resolved, filepath.Clean(s.basePath)) {
			continue
		}
		if visited[resolved] {
			continue
		}
		if _, err := os.Stat(resolved); err != nil {
			continue
		}
		out = append(out, LinkedDocument{ID: resolved})
	}
	return out, nil
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func contentTypeFor(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
