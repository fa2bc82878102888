package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	_ "modernc.org/sqlite"                               // Local SQLite driver

	"github.com/wadjakorntonsri/atf-link-tracker/pkg/core/domain"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/ports"
)

// Fixed-width UTC layout so that text comparison orders like time.
const timeLayout = "2006-01-02 15:04:05.000000"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbURL string) (*SQLiteRepository, error) {
	driverName := "sqlite"
	if strings.Contains(dbURL, "libsql://") || strings.Contains(dbURL, "wss://") {
		driverName = "libsql"
	}

	if driverName == "sqlite" {
		dbURL = withLocalPragmas(dbURL)
	}

	db, err := sql.Open(driverName, dbURL)
	if err != nil {
		return nil, err
	}
	if driverName == "sqlite" {
		// One writer at a time; overlapping ingest and retention calls queue
		// on the pool instead of failing with SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// withLocalPragmas makes other processes sharing the file (the cli cleanup
// command next to a running server) wait for locks rather than fail.
func withLocalPragmas(dsn string) string {
	if strings.Contains(dsn, "busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// NewWithDB wraps an already opened and migrated handle.
func NewWithDB(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// tracked_links.visit_id has no foreign key. Deletes never cascade; the
// retention job prunes orphans itself.
func migrate(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS visits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		visit_time TEXT NOT NULL,
		screen_width INTEGER NOT NULL,
		screen_height INTEGER NOT NULL,
		context TEXT NOT NULL DEFAULT 'Unknown'
	);
	CREATE INDEX IF NOT EXISTS idx_visits_visit_time ON visits(visit_time);

	CREATE TABLE IF NOT EXISTS tracked_links (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		visit_id INTEGER NOT NULL,
		url TEXT NOT NULL,
		text TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_tracked_links_visit_id ON tracked_links(visit_id);
	`
	_, err := db.Exec(query)
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func (r *SQLiteRepository) InsertVisit(ctx context.Context, visit *domain.Visit) error {
	if visit.Context == "" {
		visit.Context = domain.UnknownContext
	}
	query := `INSERT INTO visits (visit_time, screen_width, screen_height, context) VALUES (?, ?, ?, ?)`

	res, err := r.db.ExecContext(ctx, query, formatTime(visit.VisitTime), visit.ScreenWidth, visit.ScreenHeight, visit.Context)
	if err != nil {
		return fmt.Errorf("insert visit: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert visit: %w", err)
	}
	visit.ID = id
	return nil
}

func (r *SQLiteRepository) InsertLink(ctx context.Context, link *domain.TrackedLink) error {
	query := `INSERT INTO tracked_links (visit_id, url, text) VALUES (?, ?, ?)`

	res, err := r.db.ExecContext(ctx, query, link.VisitID, link.URL, link.Text)
	if err != nil {
		return fmt.Errorf("insert link: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert link: %w", err)
	}
	link.ID = id
	return nil
}

func (r *SQLiteRepository) ListSince(ctx context.Context, cutoff time.Time) ([]domain.ReportRow, error) {
	query := `SELECT v.id, v.visit_time, v.screen_width, v.screen_height, v.context, l.id, l.url, l.text
			  FROM visits v
			  JOIN tracked_links l ON l.visit_id = v.id
			  WHERE v.visit_time >= ?
			  ORDER BY v.visit_time DESC, v.id DESC, l.id ASC`

	rows, err := r.db.QueryContext(ctx, query, formatTime(cutoff))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.ReportRow{}
	for rows.Next() {
		var row domain.ReportRow
		var visitTime string
		var text sql.NullString
		if err := rows.Scan(&row.VisitID, &visitTime, &row.ScreenWidth, &row.ScreenHeight, &row.Context,
			&row.LinkID, &row.URL, &text); err != nil {
			return nil, err
		}
		row.VisitTime, err = time.ParseInLocation(timeLayout, visitTime, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("visit %d: bad visit_time %q: %w", row.VisitID, visitTime, err)
		}
		row.Text = text.String
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeleteOrphanLinks(ctx context.Context) (int64, error) {
	query := `DELETE FROM tracked_links
			  WHERE NOT EXISTS (SELECT 1 FROM visits v WHERE v.id = tracked_links.visit_id)`

	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) DeleteVisitsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM visits WHERE visit_time < ?`, formatTime(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Ensure interface compliance
var _ ports.TrackingRepository = (*SQLiteRepository)(nil)
