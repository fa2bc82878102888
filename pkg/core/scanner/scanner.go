// Package scanner decides which links on a rendered page were visible
// above the fold. It works on a measured snapshot of the page and has no
// browser dependency of its own.
package scanner

import (
	"strings"
	"unicode/utf8"

	"github.com/wadjakorntonsri/atf-link-tracker/pkg/core/domain"
)

// Default container selectors for host admin/debug UI and for notices.
var (
	DefaultChromeSelectors = []string{"#wpadminbar", "#query-monitor"}
	DefaultNoticeSelectors = []string{
		".notice", ".error", ".warning", ".updated",
		".notice-error", ".notice-warning", ".notice-info", ".notice-success",
		".xdebug-error", ".php-error",
	}
)

// Rect is an element's bounding box relative to the viewport, in CSS pixels.
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Bottom float64 `json:"bottom"`
	Right  float64 `json:"right"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// AnchorSnapshot is one measured a[href] element.
type AnchorSnapshot struct {
	RawHref    string  `json:"rawHref"`
	Href       string  `json:"href"`
	InChrome   bool    `json:"inChrome"`
	InNotice   bool    `json:"inNotice"`
	Display    string  `json:"display"`
	Visibility string  `json:"visibility"`
	Opacity    float64 `json:"opacity"`
	Rect       Rect    `json:"rect"`
	Text       string  `json:"text"`
	ImageAlt   string  `json:"imageAlt"`
	AriaLabel  string  `json:"ariaLabel"`
}

// PageSnapshot is the page state captured once all resources have loaded.
type PageSnapshot struct {
	InnerWidth   float64          `json:"innerWidth"`
	InnerHeight  float64          `json:"innerHeight"`
	ClientWidth  float64          `json:"clientWidth"`
	ClientHeight float64          `json:"clientHeight"`
	ScreenWidth  int              `json:"screenWidth"`
	ScreenHeight int              `json:"screenHeight"`
	Anchors      []AnchorSnapshot `json:"anchors"`
}

// Candidate is a link to report.
type Candidate struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// Result is one page's batch: screen size plus qualifying links in document order.
type Result struct {
	ScreenWidth  int         `json:"screen_width"`
	ScreenHeight int         `json:"screen_height"`
	Links        []Candidate `json:"links"`
}

// Empty reports whether there is nothing to transmit.
func (r Result) Empty() bool { return len(r.Links) == 0 }

// Scan applies the exclusion rules, the visibility predicate and text
// extraction to every anchor. Duplicate URLs are kept.
func Scan(page PageSnapshot) Result {
	vw, vh := viewport(page)
	res := Result{
		ScreenWidth:  page.ScreenWidth,
		ScreenHeight: page.ScreenHeight,
		Links:        []Candidate{},
	}
	for _, a := range page.Anchors {
		if excluded(a) || !visible(a, vw, vh) {
			continue
		}
		res.Links = append(res.Links, Candidate{URL: a.Href, Text: ExtractText(a)})
	}
	return res
}

func viewport(page PageSnapshot) (float64, float64) {
	w, h := page.InnerWidth, page.InnerHeight
	if w <= 0 {
		w = page.ClientWidth
	}
	if h <= 0 {
		h = page.ClientHeight
	}
	return w, h
}

func excluded(a AnchorSnapshot) bool {
	if a.InChrome || a.InNotice {
		return true
	}
	return !TrackableHref(a.RawHref)
}

// TrackableHref reports whether a raw href attribute value may be tracked.
// A bare "#" is trackable; "#section" is not. The fragment rule looks at the
// attribute as written, so " #section" passes and "# " does not.
func TrackableHref(raw string) bool {
	href := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case href == "":
		return false
	case strings.HasPrefix(href, "javascript:"):
		return false
	case strings.HasPrefix(raw, "#") && len(raw) > 1:
		return false
	case strings.HasPrefix(href, "tel:"), strings.HasPrefix(href, "mailto:"):
		return false
	}
	return true
}

func visible(a AnchorSnapshot, vw, vh float64) bool {
	if a.Display == "none" || a.Visibility == "hidden" || a.Opacity <= 0 {
		return false
	}
	if a.Rect.Width <= 0 || a.Rect.Height <= 0 {
		return false
	}
	return a.Rect.Top < vh && a.Rect.Bottom > 0 &&
		a.Rect.Left < vw && a.Rect.Right > 0
}

// ExtractText picks the anchor's label: rendered text, then image alt,
// then aria-label, then the no-text sentinel. The result is cut to
// domain.MaxTextLength characters.
func ExtractText(a AnchorSnapshot) string {
	text := strings.TrimSpace(a.Text)
	if text == "" {
		if alt := strings.TrimSpace(a.ImageAlt); alt != "" {
			text = "Image: " + alt
		}
	}
	if text == "" {
		text = strings.TrimSpace(a.AriaLabel)
	}
	if text == "" {
		text = domain.NoTextSentinel
	}
	if utf8.RuneCountInString(text) > domain.MaxTextLength {
		text = string([]rune(text)[:domain.MaxTextLength])
	}
	return text
}
