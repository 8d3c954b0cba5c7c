// Package fuzzy normalizes track metadata into text suitable for
// catalog search queries.
package fuzzy

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	featRegex       = regexp.MustCompile(`(?i)\s*[\(\[]?\s*(?:feat\.?|ft\.?|featuring)\s+[^\)\]]*[\)\]]?\s*`)
	versionRegex    = regexp.MustCompile(`(?i)\s*[\(\[]\s*(remaster|remastered|deluxe|extended|radio edit|clean|explicit|live|mono|stereo)[^\)\]]*[\)\]]\s*`)
	punctRegex      = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// NormalizeTitle strips featuring credits and version tags so a search
// for the plain title matches the canonical catalog entry.
func (n *Normalizer) NormalizeTitle(title string) string {
	title = featRegex.ReplaceAllString(title, " ")
	title = versionRegex.ReplaceAllString(title, " ")
	return n.basicNormalize(title)
}

// NormalizeArtist keeps only the primary artist: everything after a
// featuring or versus separator is dropped.
func (n *Normalizer) NormalizeArtist(artist string) string {
	artist = n.basicNormalize(artist)

	for _, sep := range []string{" feat ", " ft ", " featuring ", " vs ", " x "} {
		if i := strings.Index(artist, sep); i > 0 {
			artist = artist[:i]
		}
	}

	return strings.TrimSpace(artist)
}

func (n *Normalizer) basicNormalize(text string) string {
	text = norm.NFKD.String(text)

	var b strings.Builder
	for _, r := range text {
		if !unicode.IsMark(r) {
			b.WriteRune(r)
		}
	}
	text = b.String()

	text = punctRegex.ReplaceAllString(text, " ")
	text = whitespaceRegex.ReplaceAllString(text, " ")

	return strings.TrimSpace(strings.ToLower(text))
}
