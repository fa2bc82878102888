package services

import (
	"strings"

	"github.com/wadjakorntonsri/atf-link-tracker/pkg/core/domain"
)

// Order matters: Edge and Opera user agents also carry "Chrome/", and
// Chrome's also carries "Safari/".
var browserSignatures = []struct {
	label   string
	markers []string
}{
	{"Edge", []string{"Edg/", "Edge/", "EdgA/", "EdgiOS/"}},
	{"Opera", []string{"OPR/", "Opera"}},
	{"Chrome", []string{"Chrome/", "CriOS/"}},
	{"Firefox", []string{"Firefox/", "FxiOS/"}},
	{"Internet Explorer", []string{"MSIE ", "Trident/"}},
	{"Safari", []string{"Safari/"}},
}

// ClassifyUserAgent maps a raw user agent to a short browser label.
// The raw string itself is never stored.
func ClassifyUserAgent(ua string) string {
	for _, sig := range browserSignatures {
		for _, m := range sig.markers {
			if strings.Contains(ua, m) {
				return sig.label
			}
		}
	}
	return domain.UnknownContext
}
