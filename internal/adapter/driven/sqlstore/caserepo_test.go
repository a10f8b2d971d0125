package sqlstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/runledger/internal/adapter/driven/sqlstore"
	"github.com/ericfisherdev/runledger/internal/domain/model"
)

func TestCaseRepo_Upsert_Insert(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlstore.NewCaseRepo(db)
	ctx := context.Background()

	id, err := repo.Upsert(ctx, makeCase("abc123", "applies coupon"))
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "abc123", got.TestID)
	assert.Equal(t, "applies coupon", got.Title)
	assert.Equal(t, "tests/checkout.spec.ts", got.FilePath)
	assert.Equal(t, "chromium", got.ProjectName)
	assert.Equal(t, "chromium", got.Browser)
	assert.Equal(t, model.TestTypeE2E, got.TestType)
	assert.Equal(t, []string{"@smoke", "@checkout"}, got.Tags)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestCaseRepo_Upsert_ConflictUpdatesTitleOnly(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlstore.NewCaseRepo(db)
	ctx := context.Background()

	first, err := repo.Upsert(ctx, makeCase("abc123", "applies coupon"))
	require.NoError(t, err)

	renamed := makeCase("abc123", "applies coupon @regression")
	renamed.TestType = model.TestTypeAPI
	renamed.Tags = []string{"@regression"}
	second, err := repo.Upsert(ctx, renamed)
	require.NoError(t, err)

	assert.Equal(t, first, second, "row id must stay stable on conflict")

	got, err := repo.GetByID(ctx, first)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "applies coupon @regression", got.Title)
	assert.Equal(t, model.TestTypeE2E, got.TestType, "type is not rewritten on conflict")
	assert.Equal(t, []string{"@smoke", "@checkout"}, got.Tags, "tags are not rewritten on conflict")

	var rows int
	require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM test_cases`).Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestCaseRepo_Upsert_DistinctBrowser(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlstore.NewCaseRepo(db)
	ctx := context.Background()

	chromium, err := repo.Upsert(ctx, makeCase("abc123", "applies coupon"))
	require.NoError(t, err)

	ff := makeCase("abc123", "applies coupon")
	ff.ProjectName, ff.Browser = "firefox", "firefox"
	firefox, err := repo.Upsert(ctx, ff)
	require.NoError(t, err)

	assert.NotEqual(t, chromium, firefox)
}

func TestCaseRepo_GetByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlstore.NewCaseRepo(db)

	got, err := repo.GetByID(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, got)
}
