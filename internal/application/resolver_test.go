package application_test

import (
	"context"
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/runledger/internal/application"
	"github.com/ericfisherdev/runledger/internal/domain/model"
)

func TestTestID_HashContract(t *testing.T) {
	sum := md5.Sum([]byte("tests/cart.spec.ts::cart > adds item")) //nolint:gosec
	want := hex.EncodeToString(sum[:])

	assert.Equal(t, want, application.TestID("tests/cart.spec.ts", "cart > adds item"))
	assert.Len(t, want, 32)
	assert.Equal(t, 1, application.IdentityVersion)
}

func TestTestID_Deterministic(t *testing.T) {
	a := application.TestID("tests/cart.spec.ts", "cart > adds item")
	b := application.TestID("tests/cart.spec.ts", "cart > adds item")
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, application.TestID("tests/cart.spec.ts", "cart > removes item"))
	assert.NotEqual(t, a, application.TestID("tests/other.spec.ts", "cart > adds item"))
}

func TestInferTestType(t *testing.T) {
	tests := []struct {
		path string
		want model.TestType
	}{
		{"tests/api/users.spec.ts", model.TestTypeAPI},
		{"tests/users.api.spec.ts", model.TestTypeAPI},
		{"tests/ui/header.spec.ts", model.TestTypeUI},
		{"tests/perf/dashboard.spec.ts", model.TestTypePerformance},
		{"perf/dashboard.spec.ts", model.TestTypePerformance},
		{"api/users.spec.ts", model.TestTypeAPI},
		{"tests/performance/search.spec.ts", model.TestTypePerformance},
		{"src/components/Button.ct.spec.tsx", model.TestTypeComponent},
		{"tests/storybook/button.spec.ts", model.TestTypeStorybook},
		{"src/Button.stories.spec.ts", model.TestTypeStorybook},
		{"tests/checkout.spec.ts", model.TestTypeE2E},
		{"", model.TestTypeE2E},
		{"Tests/API/Users.spec.ts", model.TestTypeAPI},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, application.InferTestType(tt.path))
		})
	}
}

func TestResolver_CachesWithinRecorder(t *testing.T) {
	store := newCountingCaseStore()
	r := application.NewResolver(store, application.NewCaseCache(), 0)
	ctx := context.Background()

	ref := application.CaseRefFromEvent(event("tests/cart.spec.ts", "adds item", model.TestStatusFailed, 0))

	first, err := r.ResolveCase(ctx, ref)
	require.NoError(t, err)
	second, err := r.ResolveCase(ctx, ref)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.count(), "a retried test resolves its case once")
}

func TestResolver_ConcurrentMissesShareUpsert(t *testing.T) {
	store := newCountingCaseStore()
	store.delay = 20 * time.Millisecond
	cache := application.NewCaseCache()
	r := application.NewResolver(store, cache, 0)

	ref := application.CaseRefFromEvent(event("tests/cart.spec.ts", "adds item", model.TestStatusPassed, 0))

	var wg sync.WaitGroup
	ids := make([]int64, 50)
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := r.ResolveCase(context.Background(), ref)
			assert.NoError(t, err)
			ids[i] = id
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, store.count())
	assert.Equal(t, 1, cache.Len())
}

func TestResolver_KeyIncludesBrowser(t *testing.T) {
	store := newCountingCaseStore()
	r := application.NewResolver(store, application.NewCaseCache(), 0)
	ctx := context.Background()

	chromium := event("tests/cart.spec.ts", "adds item", model.TestStatusPassed, 0)
	firefox := chromium
	firefox.ProjectName, firefox.Browser = "firefox", "firefox"

	a, err := r.ResolveCase(ctx, application.CaseRefFromEvent(chromium))
	require.NoError(t, err)
	b, err := r.ResolveCase(ctx, application.CaseRefFromEvent(firefox))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, store.count())
}

func TestResolver_RejectsEmptyReference(t *testing.T) {
	r := application.NewResolver(newCountingCaseStore(), nil, 0)

	_, err := r.ResolveCase(context.Background(), application.CaseRef{FilePath: "tests/a.spec.ts"})
	assert.ErrorIs(t, err, application.ErrInvalidEvent)
}

// Scenario: a live run and a later re-ingestion of the same report use
// separate case caches, yet the case row is shared and its ID stable.
func TestResolver_SameCaseAcrossIngestions(t *testing.T) {
	stores, db := setupStores(t)
	ctx := context.Background()

	ev := event("tests/cart.spec.ts", "adds item", model.TestStatusPassed, 0)

	live := application.NewResolver(stores.Cases, application.NewCaseCache(), 0)
	first, err := live.ResolveCase(ctx, application.CaseRefFromEvent(ev))
	require.NoError(t, err)

	ev.Title = "adds item (renamed)"
	reingest := application.NewResolver(stores.Cases, application.NewCaseCache(), 0)
	second, err := reingest.ResolveCase(ctx, application.CaseRefFromEvent(ev))
	require.NoError(t, err)

	assert.Equal(t, first, second)

	var rows int
	require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM test_cases`).Scan(&rows))
	assert.Equal(t, 1, rows)

	tc, err := stores.Cases.GetByID(ctx, first)
	require.NoError(t, err)
	require.NotNil(t, tc)
	assert.Equal(t, "adds item (renamed)", tc.Title)
	assert.Equal(t, application.TestID("tests/cart.spec.ts", "checkout > adds item"), tc.TestID)
}

func TestResolver_UpsertBoundedByTimeout(t *testing.T) {
	r := application.NewResolver(&blockingCaseStore{}, application.NewCaseCache(), 20*time.Millisecond)
	ref := application.CaseRefFromEvent(event("tests/cart.spec.ts", "adds item", model.TestStatusPassed, 0))

	start := time.Now()
	_, err := r.ResolveCase(context.Background(), ref)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestResolver_NoCaseStore(t *testing.T) {
	r := application.NewResolver(nil, nil, 0)
	ref := application.CaseRefFromEvent(event("tests/cart.spec.ts", "adds item", model.TestStatusPassed, 0))

	_, err := r.ResolveCase(context.Background(), ref)
	assert.ErrorIs(t, err, application.ErrNotConfigured)
}

func TestNormalizeFilePath(t *testing.T) {
	tests := []struct {
		name    string
		rootDir string
		file    string
		want    string
	}{
		{"relative kept", "/repo", "tests/a.spec.ts", "tests/a.spec.ts"},
		{"absolute under root", "/repo", "/repo/tests/a.spec.ts", "tests/a.spec.ts"},
		{"root with trailing slash", "/repo/", "/repo/tests/a.spec.ts", "tests/a.spec.ts"},
		{"outside root kept", "/repo", "/other/a.spec.ts", "/other/a.spec.ts"},
		{"sibling prefix not stripped", "/repo", "/repository/a.spec.ts", "/repository/a.spec.ts"},
		{"windows separators", `C:\repo`, `C:\repo\tests\a.spec.ts`, "tests/a.spec.ts"},
		{"no root", "", "./tests//a.spec.ts", "tests/a.spec.ts"},
		{"empty", "/repo", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, application.NormalizeFilePath(tt.rootDir, tt.file))
		})
	}
}
