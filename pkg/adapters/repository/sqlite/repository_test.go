package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/atf-link-tracker/pkg/core/domain"
)

func newMemRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	repo, err := NewSQLiteRepository(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func insertVisitAt(t *testing.T, repo *SQLiteRepository, at time.Time, urls ...string) int64 {
	t.Helper()
	ctx := context.Background()
	v := &domain.Visit{VisitTime: at, ScreenWidth: 1920, ScreenHeight: 1080, Context: "Chrome"}
	require.NoError(t, repo.InsertVisit(ctx, v))
	for _, u := range urls {
		require.NoError(t, repo.InsertLink(ctx, &domain.TrackedLink{VisitID: v.ID, URL: u, Text: "t"}))
	}
	return v.ID
}

func TestInsertVisit_AssignsIncreasingIDs(t *testing.T) {
	repo := newMemRepo(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := insertVisitAt(t, repo, now)
	second := insertVisitAt(t, repo, now)
	assert.Greater(t, second, first)
}

func TestInsertVisit_DefaultsContext(t *testing.T) {
	repo := newMemRepo(t)
	v := &domain.Visit{VisitTime: time.Now(), ScreenWidth: 1, ScreenHeight: 1}
	require.NoError(t, repo.InsertVisit(context.Background(), v))
	assert.Equal(t, domain.UnknownContext, v.Context)
}

func TestListSince_JoinsAndOrders(t *testing.T) {
	repo := newMemRepo(t)
	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	older := insertVisitAt(t, repo, base.Add(-time.Hour), "https://a.test/1", "https://a.test/2")
	sameTimeLow := insertVisitAt(t, repo, base, "https://b.test/1")
	sameTimeHigh := insertVisitAt(t, repo, base, "https://c.test/1", "https://c.test/2")
	insertVisitAt(t, repo, base) // visit without links is not reported

	rows, err := repo.ListSince(context.Background(), base.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 5)

	gotVisits := []int64{}
	gotURLs := []string{}
	for _, r := range rows {
		gotVisits = append(gotVisits, r.VisitID)
		gotURLs = append(gotURLs, r.URL)
	}
	assert.Equal(t, []int64{sameTimeHigh, sameTimeHigh, sameTimeLow, older, older}, gotVisits)
	assert.Equal(t, []string{"https://c.test/1", "https://c.test/2", "https://b.test/1", "https://a.test/1", "https://a.test/2"}, gotURLs)
	assert.Equal(t, base, rows[0].VisitTime)
	assert.Equal(t, "Chrome", rows[0].Context)
	assert.Equal(t, 1920, rows[0].ScreenWidth)
}

func TestListSince_BoundaryIsInclusive(t *testing.T) {
	repo := newMemRepo(t)
	cutoff := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)

	insertVisitAt(t, repo, cutoff, "https://edge.test/")
	insertVisitAt(t, repo, cutoff.Add(-time.Microsecond), "https://old.test/")

	rows, err := repo.ListSince(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "https://edge.test/", rows[0].URL)
}

func TestListSince_EmptyIsNotNil(t *testing.T) {
	repo := newMemRepo(t)
	rows, err := repo.ListSince(context.Background(), time.Now())
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestDeleteVisitsBefore_StrictBoundary(t *testing.T) {
	repo := newMemRepo(t)
	ctx := context.Background()
	cutoff := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)

	kept := insertVisitAt(t, repo, cutoff, "https://edge.test/")
	insertVisitAt(t, repo, cutoff.Add(-time.Second), "https://old.test/")

	n, err := repo.DeleteVisitsBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rows, err := repo.ListSince(ctx, cutoff.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, kept, rows[0].VisitID)

	n, err = repo.DeleteVisitsBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteOrphanLinks_RemovesOnlyOrphans(t *testing.T) {
	repo := newMemRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	live := insertVisitAt(t, repo, now, "https://live.test/1", "https://live.test/2")
	require.NoError(t, repo.InsertLink(ctx, &domain.TrackedLink{VisitID: live + 1000, URL: "https://orphan.test/", Text: "o"}))

	n, err := repo.DeleteOrphanLinks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var remaining int
	require.NoError(t, repo.db.QueryRow(`SELECT COUNT(*) FROM tracked_links`).Scan(&remaining))
	assert.Equal(t, 2, remaining)

	n, err = repo.DeleteOrphanLinks(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteVisitsBefore_LeavesLinksForPruning(t *testing.T) {
	repo := newMemRepo(t)
	ctx := context.Background()
	cutoff := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)

	insertVisitAt(t, repo, cutoff.Add(-time.Hour), "https://old.test/1", "https://old.test/2")

	_, err := repo.DeleteVisitsBefore(ctx, cutoff)
	require.NoError(t, err)

	n, err := repo.DeleteOrphanLinks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func setupMockRepo(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *SQLiteRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create mock database")
	return db, mock, NewWithDB(db)
}

func TestInsertVisit_DatabaseError(t *testing.T) {
	db, mock, repo := setupMockRepo(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO visits`).WillReturnError(sql.ErrConnDone)

	err := repo.InsertVisit(context.Background(), &domain.Visit{VisitTime: time.Now(), ScreenWidth: 1, ScreenHeight: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrConnDone))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertLink_PassesFields(t *testing.T) {
	db, mock, repo := setupMockRepo(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO tracked_links \(visit_id, url, text\)`).
		WithArgs(int64(7), "https://x.test/", "X").
		WillReturnResult(sqlmock.NewResult(42, 1))

	link := &domain.TrackedLink{VisitID: 7, URL: "https://x.test/", Text: "X"}
	require.NoError(t, repo.InsertLink(context.Background(), link))
	assert.Equal(t, int64(42), link.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteVisitsBefore_FormatsCutoff(t *testing.T) {
	db, mock, repo := setupMockRepo(t)
	defer db.Close()

	cutoff := time.Date(2026, 1, 2, 3, 4, 5, 6000, time.FixedZone("X", 3600))
	mock.ExpectExec(`DELETE FROM visits WHERE visit_time < \?`).
		WithArgs("2026-01-02 02:04:05.000006").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteVisitsBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSince_BadTimestamp(t *testing.T) {
	db, mock, repo := setupMockRepo(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT v.id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "visit_time", "w", "h", "context", "lid", "url", "text"}).
			AddRow(1, "yesterday", 1, 1, "Chrome", 1, "https://x.test/", "x"))

	_, err := repo.ListSince(context.Background(), time.Now())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
