package media

import (
	"net/http"
	"path"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultPreviewEntries bounds the preview cache when no size is configured.
const DefaultPreviewEntries = 256

type preview struct {
	contentType string
	data        []byte
	stagedAt    time.Time
}

// PreviewCache keeps staged image bytes in memory so a Reference can be
// resolved for local preview. Least recently used entries are evicted first.
type PreviewCache struct {
	cache   *lru.Cache[string, preview]
	onEvict func(id string)
}

// PreviewOption configures a preview cache.
type PreviewOption func(*PreviewCache)

// WithEvictHook is called with the reference ID of every evicted or released
// preview.
func WithEvictHook(fn func(id string)) PreviewOption {
	return func(pc *PreviewCache) {
		pc.onEvict = fn
	}
}

// NewPreviewCache creates a cache holding up to size previews.
func NewPreviewCache(size int, opts ...PreviewOption) (*PreviewCache, error) {
	if size <= 0 {
		size = DefaultPreviewEntries
	}
	pc := &PreviewCache{}
	for _, opt := range opts {
		opt(pc)
	}
	cache, err := lru.NewWithEvict[string, preview](size, func(id string, _ preview) {
		if pc.onEvict != nil {
			pc.onEvict(id)
		}
	})
	if err != nil {
		return nil, err
	}
	pc.cache = cache
	return pc, nil
}

// Put stores the bytes for a reference.
func (pc *PreviewCache) Put(ref Reference, data []byte) {
	pc.cache.Add(ref.ID, preview{
		contentType: ref.ContentType,
		data:        data,
		stagedAt:    ref.StagedAt,
	})
}

// Get returns the staged bytes and content type for id.
func (pc *PreviewCache) Get(id string) ([]byte, string, bool) {
	p, ok := pc.cache.Get(id)
	if !ok {
		return nil, "", false
	}
	return p.data, p.contentType, true
}

// Contains reports whether id is still resolvable.
func (pc *PreviewCache) Contains(id string) bool {
	return pc.cache.Contains(id)
}

// Release forgets a preview. Releasing an unknown id is a no-op.
func (pc *PreviewCache) Release(id string) {
	if id == "" {
		return
	}
	pc.cache.Remove(id)
}

// Len returns the number of cached previews.
func (pc *PreviewCache) Len() int {
	return pc.cache.Len()
}

// Handler serves previews by reference ID. Mount it on a pattern with an
// {id} wildcard, e.g. "GET /preview/{id}".
func (pc *PreviewCache) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "" {
			id = path.Base(r.URL.Path)
		}
		p, ok := pc.cache.Get(id)
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", p.contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(p.data)))
		w.Header().Set("Cache-Control", "private, max-age=300")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		if !p.stagedAt.IsZero() {
			w.Header().Set("Last-Modified", p.stagedAt.UTC().Format(http.TimeFormat))
		}
		_, _ = w.Write(p.data)
	})
}
