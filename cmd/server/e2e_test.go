package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/atf-link-tracker/pkg/adapters/client"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/config"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/core/domain"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/core/scanner"
)

const testJWTSecret = "e2e-secret"

func startServer(t *testing.T, dbName string) (*httptest.Server, *App) {
	t.Helper()

	repo, err := sqlite.NewSQLiteRepository("file:" + dbName + "?mode=memory&cache=shared")
	require.NoError(t, err, "Failed to init db")
	t.Cleanup(func() { _ = repo.Close() })

	var mux http.Handler
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)

	cfg := &config.Config{
		BaseURL:     server.URL,
		JWTSecret:   testJWTSecret,
		NonceSecret: "e2e-nonce",
		NonceTTL:    time.Hour,
	}
	app := NewApp(cfg, repo)
	mux = app.Server.Handler
	return server, app
}

func adminCookie(t *testing.T) *http.Cookie {
	claims := &jwt.RegisteredClaims{
		Subject:   "admin@example.com",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return &http.Cookie{Name: "auth_token", Value: token}
}

func fetchReport(t *testing.T, server *httptest.Server) []domain.ReportRow {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, server.URL+"/atf/v1/report", nil)
	require.NoError(t, err)
	req.AddCookie(adminCookie(t))

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Rows []domain.ReportRow `json:"rows"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Data.Rows
}

func anchor(href, text string, top float64) scanner.AnchorSnapshot {
	return scanner.AnchorSnapshot{
		RawHref: href, Href: href,
		Display: "block", Visibility: "visible", Opacity: 1,
		Rect: scanner.Rect{Top: top, Left: 0, Bottom: top + 20, Right: 200, Width: 200, Height: 20},
		Text: text,
	}
}

func TestIntegration_ScanTransmitReport(t *testing.T) {
	server, _ := startServer(t, "e2e_roundtrip")
	ctx := context.Background()

	trackerCfg, err := client.FetchTrackerConfig(ctx, server.Client(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/atf/v1/track", trackerCfg.Endpoint)

	page := scanner.PageSnapshot{
		InnerWidth: 1280, InnerHeight: 720, ScreenWidth: 1920, ScreenHeight: 1080,
		Anchors: []scanner.AnchorSnapshot{
			anchor("https://site.test/a", "A", 10),
			anchor("https://site.test/b", "B", 40),
			anchor("#section", "skip me", 70),
			anchor("https://site.test/below", "below the fold", 900),
			anchor("https://site.test/c", "C", 100),
			anchor("ftp://", "broken", 130),
		},
	}
	res := scanner.Scan(page)
	require.Len(t, res.Links, 4, "3 valid links and 1 with an invalid URL reach the server")

	tx := client.NewTransmitter(trackerCfg, server.Client())
	require.True(t, tx.Send(ctx, res))

	rows := fetchReport(t, server)
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.Equal(t, rows[0].VisitID, r.VisitID, "all rows join to one visit")
		assert.Equal(t, 1920, r.ScreenWidth)
		assert.Equal(t, 1080, r.ScreenHeight)
	}
	assert.Equal(t, []string{"https://site.test/a", "https://site.test/b", "https://site.test/c"},
		[]string{rows[0].URL, rows[1].URL, rows[2].URL})
}

func TestIntegration_ForgedNonceRejected(t *testing.T) {
	server, _ := startServer(t, "e2e_forged")

	tx := client.NewTransmitter(domain.TrackerConfig{
		Endpoint: server.URL + "/atf/v1/track",
		Action:   domain.TrackAction,
		Nonce:    "forged",
	}, server.Client())
	ok := tx.Send(context.Background(), scanner.Result{
		ScreenWidth: 1, ScreenHeight: 1,
		Links: []scanner.Candidate{{URL: "https://site.test/", Text: "x"}},
	})
	assert.False(t, ok)
	assert.Empty(t, fetchReport(t, server))
}

func TestIntegration_RetentionPrunesOrphansIdempotently(t *testing.T) {
	server, app := startServer(t, "e2e_retention")
	ctx := context.Background()

	live := &domain.Visit{VisitTime: time.Now().UTC(), ScreenWidth: 800, ScreenHeight: 600, Context: "Chrome"}
	require.NoError(t, app.Repo.InsertVisit(ctx, live))
	require.NoError(t, app.Repo.InsertLink(ctx, &domain.TrackedLink{VisitID: live.ID, URL: "https://live.test/", Text: "live"}))
	require.NoError(t, app.Repo.InsertLink(ctx, &domain.TrackedLink{VisitID: live.ID + 99, URL: "https://orphan.test/", Text: "orphan"}))

	expired := &domain.Visit{VisitTime: time.Now().UTC().Add(-8 * 24 * time.Hour), ScreenWidth: 800, ScreenHeight: 600}
	require.NoError(t, app.Repo.InsertVisit(ctx, expired))

	runRetention := func() domain.RetentionResult {
		req, err := http.NewRequest(http.MethodPost, server.URL+"/atf/v1/retention", nil)
		require.NoError(t, err)
		req.AddCookie(adminCookie(t))
		resp, err := server.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Data domain.RetentionResult `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return body.Data
	}

	first := runRetention()
	assert.Equal(t, domain.RetentionResult{OrphansPruned: 1, VisitsDeleted: 1}, first)

	second := runRetention()
	assert.Zero(t, second.OrphansPruned)
	assert.Zero(t, second.VisitsDeleted)

	rows := fetchReport(t, server)
	require.Len(t, rows, 1)
	assert.Equal(t, "https://live.test/", rows[0].URL)
}
