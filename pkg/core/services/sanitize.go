package services

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/wadjakorntonsri/atf-link-tracker/pkg/core/domain"
)

// Schemes a stored link may use. Anything else (javascript:, data:, ...) is dropped.
var allowedSchemes = map[string]bool{
	"http": true, "https": true, "ftp": true, "ftps": true, "mailto": true,
	"news": true, "irc": true, "irc6": true, "ircs": true, "gopher": true,
	"nntp": true, "feed": true, "telnet": true, "mms": true, "rtsp": true,
	"sms": true, "svn": true, "tel": true, "fax": true, "xmpp": true,
	"webcal": true, "urn": true,
}

// Schemes that need a host to be a valid absolute URL.
var hostSchemes = map[string]bool{
	"http": true, "https": true, "ftp": true, "ftps": true,
}

// SanitizeURL escapes a submitted URL for storage and reports whether the
// result is still a valid absolute URL. Valid results longer than
// domain.MaxURLLength are truncated, not rejected.
func SanitizeURL(raw string) (string, bool) {
	u := strings.TrimSpace(raw)
	if u == "" {
		return "", false
	}
	u = escapeURLChars(strings.ReplaceAll(u, " ", "%20"))
	if u == "" {
		return "", false
	}

	// Bare host names get a scheme; relative references stay relative and fail below.
	if !strings.Contains(u, ":") && !strings.HasPrefix(u, "/") &&
		!strings.HasPrefix(u, "#") && !strings.HasPrefix(u, "?") {
		u = "http://" + u
	}

	parsed, err := url.Parse(u)
	if err != nil || parsed.Scheme == "" {
		return "", false
	}
	scheme := strings.ToLower(parsed.Scheme)
	if !allowedSchemes[scheme] {
		return "", false
	}
	if hostSchemes[scheme] {
		if parsed.Host == "" {
			return "", false
		}
	} else if parsed.Opaque == "" && parsed.Host == "" && parsed.Path == "" {
		return "", false
	}

	if len(u) > domain.MaxURLLength {
		u = u[:domain.MaxURLLength]
	}
	return u, true
}

// escapeURLChars drops characters that never belong in a URL and
// percent-encodes non-ASCII bytes.
func escapeURLChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 0x80:
			fmt.Fprintf(&b, "%%%02X", c)
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case strings.IndexByte("-~+_.?#=!&;,/:%@$|*'()[]", c) >= 0:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// SanitizeText reduces submitted link text to plain text: markup removed,
// entities decoded, control characters other than newline and tab dropped,
// trimmed, and cut to domain.MaxTextLength characters.
func SanitizeText(raw string) string {
	s := stripTags(strings.ToValidUTF8(raw, ""))
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return truncateRunes(strings.TrimSpace(s), domain.MaxTextLength)
}

func stripTags(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.StartTagToken:
			if name, _ := z.TagName(); isRawTextTag(name) {
				skip++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); isRawTextTag(name) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func isRawTextTag(name []byte) bool {
	tag := string(name)
	return tag == "script" || tag == "style"
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
