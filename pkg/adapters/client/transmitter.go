// Package client sends scanner results to the tracking endpoint.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wadjakorntonsri/atf-link-tracker/pkg/core/domain"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/core/scanner"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/logger"
)

// Transmitter posts one batch per page. It never retries: a lost batch is
// logged and dropped.
type Transmitter struct {
	cfg        domain.TrackerConfig
	httpClient *http.Client
}

func NewTransmitter(cfg domain.TrackerConfig, httpClient *http.Client) *Transmitter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Transmitter{cfg: cfg, httpClient: httpClient}
}

// Send posts res as a form and reports whether the server accepted it.
// An empty result sends nothing. Failures are logged, not returned.
func (t *Transmitter) Send(ctx context.Context, res scanner.Result) bool {
	if res.Empty() {
		return false
	}
	log := logger.WithCtx(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.Endpoint,
		strings.NewReader(EncodeForm(t.cfg, res).Encode()))
	if err != nil {
		log.Warn().Err(err).Str("endpoint", t.cfg.Endpoint).Msg("atf: building request failed")
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("endpoint", t.cfg.Endpoint).Msg("atf: network error sending link data")
		return false
	}
	defer resp.Body.Close()

	var body envelope
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		log.Warn().Err(err).Int("status", resp.StatusCode).Msg("atf: unreadable server response")
		return false
	}
	if resp.StatusCode != http.StatusOK || !body.Success {
		log.Warn().Int("status", resp.StatusCode).Str("message", body.Data.Message).Msg("atf: server rejected link data")
		return false
	}

	log.Info().Int64("visit_id", body.Data.VisitID).Str("message", body.Data.Message).Msg("atf: link data sent")
	return true
}

// EncodeForm lays a result out the way the tracking endpoint reads it:
// links[i][url] and links[i][text] for each link in order.
func EncodeForm(cfg domain.TrackerConfig, res scanner.Result) url.Values {
	form := url.Values{}
	form.Set("action", cfg.Action)
	form.Set("nonce", cfg.Nonce)
	form.Set("screen_width", strconv.Itoa(res.ScreenWidth))
	form.Set("screen_height", strconv.Itoa(res.ScreenHeight))
	for i, l := range res.Links {
		form.Set(fmt.Sprintf("links[%d][url]", i), l.URL)
		form.Set(fmt.Sprintf("links[%d][text]", i), l.Text)
	}
	return form
}

type envelope struct {
	Success bool `json:"success"`
	Data    struct {
		Message string `json:"message"`
		VisitID int64  `json:"visit_id"`
	} `json:"data"`
}

// FetchTrackerConfig asks the server at baseURL for the endpoint, action and a fresh nonce.
func FetchTrackerConfig(ctx context.Context, httpClient *http.Client, baseURL string) (domain.TrackerConfig, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/atf/v1/tracker-config", nil)
	if err != nil {
		return domain.TrackerConfig{}, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return domain.TrackerConfig{}, fmt.Errorf("fetch tracker config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.TrackerConfig{}, fmt.Errorf("fetch tracker config: status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var body struct {
		Success bool                 `json:"success"`
		Data    domain.TrackerConfig `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.TrackerConfig{}, fmt.Errorf("decode tracker config: %w", err)
	}
	if body.Data.Endpoint == "" {
		return domain.TrackerConfig{}, fmt.Errorf("tracker config has no endpoint")
	}
	return body.Data, nil
}
