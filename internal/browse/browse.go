// Package browse lists directories for the front-end's file picker, showing
// only the media files a conversion kind accepts.
package browse

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gwlsn/mediaconv/internal/ffmpeg"
	"github.com/gwlsn/mediaconv/internal/formats"
)

// maxConcurrentProbes bounds ffprobe processes started by one Browse call.
const maxConcurrentProbes = 4

// ErrOutsideRoot is returned for paths that escape the browse root.
var ErrOutsideRoot = errors.New("path is outside the browse root")

// Prober reads media metadata. *ffmpeg.Prober implements it.
type Prober interface {
	Probe(ctx context.Context, path string) (*ffmpeg.ProbeResult, error)
}

// Entry represents a file or directory in the browser
type Entry struct {
	Name    string              `json:"name"`
	Path    string              `json:"path"`
	IsDir   bool                `json:"is_dir"`
	Kind    formats.Kind        `json:"kind,omitempty"`
	Size    int64               `json:"size"`
	ModTime time.Time           `json:"mod_time"`
	Media   *ffmpeg.ProbeResult `json:"media,omitempty"`
}

// Result contains the result of browsing a directory
type Result struct {
	Path       string   `json:"path"`
	Parent     string   `json:"parent,omitempty"`
	Entries    []*Entry `json:"entries"`
	MediaCount int      `json:"media_count"`
	TotalSize  int64    `json:"total_size"` // Total size of listed media files
}

// Browser handles file system browsing with media metadata
type Browser struct {
	prober Prober // may be nil
	root   string

	// Cache for probe results (path -> result)
	cacheMu sync.RWMutex
	cache   map[string]*ffmpeg.ProbeResult
}

// NewBrowser creates a Browser confined to root. prober may be nil, in
// which case entries carry no media metadata.
func NewBrowser(prober Prober, root string) *Browser {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = filepath.Clean(root)
	}
	return &Browser{
		prober: prober,
		root:   absRoot,
		cache:  make(map[string]*ffmpeg.ProbeResult),
	}
}

// Root returns the directory browsing is confined to.
func (b *Browser) Root() string {
	return b.root
}

// Browse lists path. Directories are always listed; files are listed when
// their extension belongs to kind, or always when kind is KindOther. An
// empty path browses the root.
func (b *Browser) Browse(ctx context.Context, path string, kind formats.Kind) (*Result, error) {
	dir, err := b.resolve(path)
	if err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Path:    dir,
		Entries: make([]*Entry, 0, len(dirEntries)),
	}
	if dir != b.root {
		result.Parent = filepath.Dir(dir)
	}

	var toProbe []*Entry
	for _, e := range dirEntries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}

		entry := &Entry{
			Name:    e.Name(),
			Path:    filepath.Join(dir, e.Name()),
			IsDir:   e.IsDir(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		if !e.IsDir() {
			entry.Kind = kindOfFile(e.Name())
			if kind != formats.KindOther && entry.Kind != kind {
				continue
			}
			if entry.Kind != formats.KindOther {
				result.MediaCount++
				result.TotalSize += entry.Size
			}
			if entry.Kind == formats.KindAudio || entry.Kind == formats.KindVideo {
				toProbe = append(toProbe, entry)
			}
		}
		result.Entries = append(result.Entries, entry)
	}

	b.probeAll(ctx, toProbe)

	// Directories first, then by name
	slices.SortFunc(result.Entries, func(x, y *Entry) int {
		if x.IsDir != y.IsDir {
			if x.IsDir {
				return -1
			}
			return 1
		}
		return strings.Compare(strings.ToLower(x.Name), strings.ToLower(y.Name))
	})

	return result, nil
}

// resolve makes path absolute and checks it stays under the root.
func (b *Browser) resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return b.root, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(b.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrOutsideRoot
	}
	return abs, nil
}

// probeAll fills in Media for each entry. Probe failures leave it nil.
func (b *Browser) probeAll(ctx context.Context, entries []*Entry) {
	if b.prober == nil || len(entries) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrentProbes)
	for _, entry := range entries {
		entry := entry
		g.Go(func() error {
			if res := b.probe(ctx, entry.Path); res != nil {
				entry.Media = res
			}
			return nil
		})
	}
	_ = g.Wait()
}

// probe returns a cached or fresh probe result
func (b *Browser) probe(ctx context.Context, path string) *ffmpeg.ProbeResult {
	b.cacheMu.RLock()
	if result, ok := b.cache[path]; ok {
		b.cacheMu.RUnlock()
		return result
	}
	b.cacheMu.RUnlock()

	result, err := b.prober.Probe(ctx, path)
	if err != nil {
		return nil
	}

	b.cacheMu.Lock()
	b.cache[path] = result
	b.cacheMu.Unlock()
	return result
}

// ClearCache drops every cached probe result.
func (b *Browser) ClearCache() {
	b.cacheMu.Lock()
	b.cache = make(map[string]*ffmpeg.ProbeResult)
	b.cacheMu.Unlock()
}

// InvalidateCache removes a specific path from the cache, e.g. after a
// conversion overwrote it.
func (b *Browser) InvalidateCache(path string) {
	b.cacheMu.Lock()
	delete(b.cache, path)
	b.cacheMu.Unlock()
}

func kindOfFile(name string) formats.Kind {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return formats.KindOther
	}
	return formats.KindOf(ext)
}
