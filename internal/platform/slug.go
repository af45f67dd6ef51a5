package platform

import (
	"regexp"
	"strings"
)

var (
	slugJunk  = regexp.MustCompile(`[^a-zA-Z0-9_]+`)
	linkRe    = regexp.MustCompile(`(?:https?://)?t\.me/(addstickers|addemoji)/([A-Za-z0-9_]+)`)
	underRuns = regexp.MustCompile(`_{2,}`)
)

// NormalizeSlug lowercases the name and collapses everything outside
// [a-zA-Z0-9_] into single underscores. The result is what the platform
// accepts as a set name component.
func NormalizeSlug(name string) string {
	s := slugJunk.ReplaceAllString(name, "_")
	s = underRuns.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	return strings.ToLower(s)
}

// FreeSlug appends the mandatory bot suffix to a free pack's slug. Paid packs
// keep the bare slug.
func FreeSlug(slug, botUsername string) string {
	return slug + "_by_" + strings.ToLower(botUsername)
}

// BuildPackLink returns the public t.me URL for a set of the given kind.
func BuildPackLink(slug string, sticker bool) string {
	if sticker {
		return "https://t.me/addstickers/" + slug
	}
	return "https://t.me/addemoji/" + slug
}

// ParsePackLink extracts the slug from an addstickers/addemoji URL. The
// second result reports whether the link names a sticker set.
func ParsePackLink(raw string) (slug string, sticker bool, ok bool) {
	m := linkRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", false, false
	}
	return m[2], m[1] == "addstickers", true
}
