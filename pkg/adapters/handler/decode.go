package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/wadjakorntonsri/atf-link-tracker/pkg/core/domain"
)

const maxBatchBytes = 1 << 20

var linkFieldRe = regexp.MustCompile(`^links\[(\d+)\]\[(url|text)\]$`)

// decodeBatch reads a batch from either a form post (links[i][url],
// links[i][text]) or a JSON body. The user agent comes from the request.
func decodeBatch(w http.ResponseWriter, r *http.Request) (domain.Batch, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBatchBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var (
		batch domain.Batch
		err   error
	)
	if mediaType == "application/json" {
		batch, err = decodeJSONBatch(r)
	} else {
		batch, err = decodeFormBatch(r)
	}
	if err != nil {
		return domain.Batch{}, err
	}
	batch.UserAgent = r.UserAgent()
	return batch, nil
}

func decodeFormBatch(r *http.Request) (domain.Batch, error) {
	if err := r.ParseMultipartForm(maxBatchBytes); err != nil && err != http.ErrNotMultipart {
		return domain.Batch{}, fmt.Errorf("parse form: %w", err)
	}
	form := r.PostForm

	byIndex := map[int]*domain.LinkInput{}
	for key, values := range form {
		m := linkFieldRe.FindStringSubmatch(key)
		if m == nil || len(values) == 0 {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		in := byIndex[idx]
		if in == nil {
			in = &domain.LinkInput{}
			byIndex[idx] = in
		}
		if m[2] == "url" {
			in.URL, in.HasURL = values[0], true
		} else {
			in.Text, in.HasText = values[0], true
		}
	}

	indexes := make([]int, 0, len(byIndex))
	for idx := range byIndex {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	links := make([]domain.LinkInput, 0, len(indexes))
	for _, idx := range indexes {
		links = append(links, *byIndex[idx])
	}

	return domain.Batch{
		Action:       form.Get("action"),
		Nonce:        form.Get("nonce"),
		ScreenWidth:  absInt(form.Get("screen_width")),
		ScreenHeight: absInt(form.Get("screen_height")),
		Links:        links,
	}, nil
}

type jsonLink struct {
	URL  *string `json:"url"`
	Text *string `json:"text"`
}

type jsonBatch struct {
	Action       string          `json:"action"`
	Nonce        string          `json:"nonce"`
	ScreenWidth  json.RawMessage `json:"screen_width"`
	ScreenHeight json.RawMessage `json:"screen_height"`
	Links        []jsonLink      `json:"links"`
}

func decodeJSONBatch(r *http.Request) (domain.Batch, error) {
	var req jsonBatch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return domain.Batch{}, fmt.Errorf("invalid JSON body: %w", err)
	}

	links := make([]domain.LinkInput, 0, len(req.Links))
	for _, l := range req.Links {
		in := domain.LinkInput{HasURL: l.URL != nil, HasText: l.Text != nil}
		if l.URL != nil {
			in.URL = *l.URL
		}
		if l.Text != nil {
			in.Text = *l.Text
		}
		links = append(links, in)
	}

	return domain.Batch{
		Action:       req.Action,
		Nonce:        req.Nonce,
		ScreenWidth:  absInt(rawScalar(req.ScreenWidth)),
		ScreenHeight: absInt(rawScalar(req.ScreenHeight)),
		Links:        links,
	}, nil
}

// rawScalar turns a JSON number or string into its text form.
func rawScalar(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// absInt reads the leading integer of s and drops its sign. Anything
// without a leading integer is 0: "1440px" is 1440, "-900" is 900,
// "12.9" is 12, "abc" is 0.
func absInt(s string) int {
	s = strings.TrimSpace(s)
	if s != "" && (s[0] == '-' || s[0] == '+') {
		s = s[1:]
	}
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
