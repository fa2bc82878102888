package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/atf-link-tracker/pkg/core/domain"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/core/services"
)

type acceptAll struct{}

func (acceptAll) Verify(string, string) error { return nil }

func TestWithLocalPragmas(t *testing.T) {
	assert.Equal(t, "file:a.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", withLocalPragmas("file:a.db"))
	assert.Equal(t, "file:a?mode=memory&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", withLocalPragmas("file:a?mode=memory"))
	assert.Equal(t, "file:a.db?_pragma=busy_timeout(100)", withLocalPragmas("file:a.db?_pragma=busy_timeout(100)"))
}

func TestConcurrentIngestAndRetention_FileDB(t *testing.T) {
	repo, err := NewSQLiteRepository("file:" + filepath.Join(t.TempDir(), "atf.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	ctx := context.Background()
	ingestion := services.NewIngestionService(repo, acceptAll{})
	retention := services.NewRetentionService(repo)

	const batches = 50
	errs := make(chan error, batches+5)
	var wg sync.WaitGroup
	for i := 0; i < batches; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			links := make([]domain.LinkInput, 5)
			for j := range links {
				links[j] = domain.LinkInput{
					URL: fmt.Sprintf("https://site.test/%d/%d", i, j), Text: "x",
					HasURL: true, HasText: true,
				}
			}
			res, err := ingestion.Ingest(ctx, domain.Batch{
				Action: domain.TrackAction, Nonce: "n",
				ScreenWidth: 1280, ScreenHeight: 720,
				Links: links,
			})
			if err == nil && res.LinksSaved != len(links) {
				err = fmt.Errorf("batch %d saved %d of %d links", i, res.LinksSaved, len(links))
			}
			errs <- err
		}(i)
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := retention.Run(ctx)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	rows, err := repo.ListSince(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, rows, batches*5)
}
