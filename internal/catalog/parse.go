package catalog

import (
	"path"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const driveHost = "drive.google.com"

// ParsePrice parses a spreadsheet price cell. Both "12.50" and "12,50" are
// accepted; when both separators appear the last one is the decimal mark.
// Unparsable input yields an invalid NullDecimal, never zero.
func ParsePrice(raw string) decimal.NullDecimal {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" || isNullToken(s) {
		return decimal.NullDecimal{}
	}

	dot := strings.LastIndex(s, ".")
	comma := strings.LastIndex(s, ",")
	switch {
	case dot >= 0 && comma >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case dot >= 0 && comma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// ResolveImageURL turns an IMAGEN cell into a URL the storefront can render.
func ResolveImageURL(raw, staticPrefix, placeholder string) string {
	s := strings.TrimSpace(raw)
	if s == "" || isNullToken(s) {
		return placeholder
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return directDriveURL(s)
	}
	return path.Join("/", staticPrefix, strings.TrimLeft(s, "/"))
}

// directDriveURL rewrites a Drive share link (.../file/d/<id>/view) to its
// direct-view form. Other URLs are returned unchanged.
func directDriveURL(u string) string {
	if !strings.Contains(u, driveHost) {
		return u
	}
	_, rest, found := strings.Cut(u, "/d/")
	if !found {
		return u
	}
	id, _, _ := strings.Cut(rest, "/")
	id, _, _ = strings.Cut(id, "?")
	if id == "" {
		return u
	}
	return "https://" + driveHost + "/uc?export=view&id=" + id
}

func isNullToken(s string) bool {
	switch strings.ToLower(s) {
	case "nan", "none", "null":
		return true
	}
	return false
}

// normalizeHeader makes column matching case, accent and padding insensitive.
func normalizeHeader(h string) string {
	h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, h); err == nil {
		h = folded
	}
	return strings.ToUpper(h)
}
