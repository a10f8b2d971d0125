package application

import (
	"context"
	"path"
	"crypto/md5" //nolint:gosec // identity hash, not a security boundary
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ericfisherdev/runledger/internal/domain/model"
	"github.com/ericfisherdev/runledger/internal/domain/port/driven"
)

// IdentityVersion tags the TestID derivation. Changing the hash input breaks
// case continuity with every stored run, so any change must bump this.
const IdentityVersion = 1

// TestID derives the stable case identifier: hex MD5 of filePath + "::" + titlePath.
func TestID(filePath, titlePath string) string {
	sum := md5.Sum([]byte(filePath + "::" + titlePath)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// InferTestType classifies a test from path conventions. The first matching
// marker wins; anything unmatched is e2e.
func InferTestType(filePath string) model.TestType {
	// Leading slash so directory markers match relative paths too.
	p := "/" + strings.ToLower(filePath)

	switch {
	case containsAny(p, "/api/", ".api.", "-api.", "_api."):
		return model.TestTypeAPI
	case containsAny(p, "/ui/", ".ui.", "-ui.", "_ui."):
		return model.TestTypeUI
	case containsAny(p, "/perf/", "/performance/", ".perf.", ".performance.", "-perf."):
		return model.TestTypePerformance
	case containsAny(p, "/component/", "/components/", ".component.", ".ct."):
		return model.TestTypeComponent
	case containsAny(p, "storybook", ".stories."):
		return model.TestTypeStorybook
	default:
		return model.TestTypeE2E
	}
}

func containsAny(s string, markers ...string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// NormalizeFilePath returns file relative to rootDir with forward slashes, so
// the absolute paths a live reporter sends and the root-relative paths of a
// JSON report resolve to the same case. Paths outside rootDir are only cleaned.
func NormalizeFilePath(rootDir, file string) string {
	p := strings.ReplaceAll(file, `\`, "/")
	if p == "" {
		return ""
	}

	if rootDir != "" {
		root := strings.TrimSuffix(strings.ReplaceAll(rootDir, `\`, "/"), "/")
		if rel, ok := strings.CutPrefix(p, root+"/"); ok {
			p = rel
		}
	}

	return path.Clean(p)
}

// CaseRef is everything needed to resolve one test to its case row.
type CaseRef struct {
	FilePath    string
	TitlePath   string // Describe blocks and title joined by model.TitleSeparator.
	Title       string
	ProjectName string
	Browser     string
	Tags        []string
}

// CaseRefFromEvent builds the case reference for a runner event.
func CaseRefFromEvent(ev model.TestEvent) CaseRef {
	return CaseRef{
		FilePath:    ev.FilePath,
		TitlePath:   ev.JoinedTitlePath(),
		Title:       ev.DisplayTitle(),
		ProjectName: ev.ProjectName,
		Browser:     ev.Browser,
		Tags:        ev.Tags,
	}
}

func (r CaseRef) key() string {
	return strings.Join([]string{r.FilePath, r.TitlePath, r.ProjectName, r.Browser}, "\x00")
}

// CaseCache maps case references to row IDs for the lifetime of one run.
// Concurrent misses for the same key share a single upsert.
type CaseCache struct {
	mu    sync.RWMutex
	ids   map[string]int64
	group singleflight.Group
}

// NewCaseCache creates an empty cache.
func NewCaseCache() *CaseCache {
	return &CaseCache{ids: make(map[string]int64)}
}

// Len returns the number of cached cases.
func (c *CaseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ids)
}

func (c *CaseCache) get(key string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.ids[key]
	return id, ok
}

func (c *CaseCache) put(key string, id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids[key] = id
}

// Resolver maps test references to stable case row IDs, creating rows on
// first sighting.
type Resolver struct {
	cases   driven.CaseStore
	cache   *CaseCache
	timeout time.Duration
}

// NewResolver creates a Resolver. A nil cache disables caching. Each upsert is
// bounded by timeout when it is positive.
func NewResolver(cases driven.CaseStore, cache *CaseCache, timeout time.Duration) *Resolver {
	return &Resolver{cases: cases, cache: cache, timeout: timeout}
}

// ResolveCase returns the row ID of the case, upserting it on a cache miss.
func (r *Resolver) ResolveCase(ctx context.Context, ref CaseRef) (int64, error) {
	if ref.FilePath == "" || ref.TitlePath == "" {
		return 0, fmt.Errorf("resolve test case: %w: file path and title path are required", ErrInvalidEvent)
	}
	if r.cases == nil {
		return 0, fmt.Errorf("resolve test case: %w", ErrNotConfigured)
	}

	if r.cache == nil {
		return r.upsert(ctx, ref)
	}

	key := ref.key()
	if id, ok := r.cache.get(key); ok {
		return id, nil
	}

	v, err, _ := r.cache.group.Do(key, func() (any, error) {
		if id, ok := r.cache.get(key); ok {
			return id, nil
		}
		id, err := r.upsert(ctx, ref)
		if err != nil {
			return int64(0), err
		}
		r.cache.put(key, id)
		return id, nil
	})
	if err != nil {
		return 0, err
	}

	return v.(int64), nil
}

func (r *Resolver) upsert(ctx context.Context, ref CaseRef) (int64, error) {
	title := ref.Title
	if title == "" {
		title = ref.TitlePath
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	id, err := r.cases.Upsert(ctx, model.TestCase{
		TestID:      TestID(ref.FilePath, ref.TitlePath),
		Title:       title,
		FilePath:    ref.FilePath,
		ProjectName: ref.ProjectName,
		Browser:     ref.Browser,
		TestType:    InferTestType(ref.FilePath),
		Tags:        ref.Tags,
	})
	if err != nil {
		return 0, fmt.Errorf("resolve test case %s: %w", ref.TitlePath, err)
	}

	return id, nil
}
