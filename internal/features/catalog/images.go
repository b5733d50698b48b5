// Package catalog resolves the display image of catalog items whose image
// fields come in several shapes.
package catalog

import (
	"encoding/json"
	"strings"
)

// Placeholder is served when no usable image exists.
const Placeholder = "/placeholder.svg"

// ImageSource is one stored representation of an item's images.
type ImageSource interface {
	urls() []string
}

// ImageList is a plain list of URLs.
type ImageList []string

func (l ImageList) urls() []string { return l }

// DelimitedImages is a single string holding one or more URLs separated by
// commas, semicolons, pipes or newlines.
type DelimitedImages string

func (d DelimitedImages) urls() []string {
	return strings.FieldsFunc(string(d), func(r rune) bool {
		return r == ',' || r == ';' || r == '|' || r == '\n' || r == '\r'
	})
}

// JSONImages is a JSON document: an array of URLs or a single URL string.
// Anything else yields no URL.
type JSONImages []byte

func (j JSONImages) urls() []string {
	if len(j) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(j, &list); err == nil {
		return list
	}
	var one string
	if err := json.Unmarshal(j, &one); err == nil {
		// Some rows hold a JSON string that itself encodes the array.
		if strings.HasPrefix(strings.TrimSpace(one), "[") {
			return JSONImages(one).urls()
		}
		return []string{one}
	}
	return nil
}

// ValidImageURL accepts absolute http(s) URLs and site-relative paths.
func ValidImageURL(u string) bool {
	u = strings.TrimSpace(u)
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "/")
}

// ResolveImage returns the first valid URL across sources in order, or Placeholder.
func ResolveImage(sources ...ImageSource) string {
	for _, src := range sources {
		if src == nil {
			continue
		}
		for _, u := range src.urls() {
			if ValidImageURL(u) {
				return strings.TrimSpace(u)
			}
		}
	}
	return Placeholder
}

// ResolveImages returns every valid URL across sources, or just Placeholder.
func ResolveImages(sources ...ImageSource) []string {
	var out []string
	for _, src := range sources {
		if src == nil {
			continue
		}
		for _, u := range src.urls() {
			if ValidImageURL(u) {
				out = append(out, strings.TrimSpace(u))
			}
		}
	}
	if len(out) == 0 {
		return []string{Placeholder}
	}
	return out
}
