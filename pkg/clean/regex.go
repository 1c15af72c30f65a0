// Package clean removes publisher boilerplate from legal text. A generative
// service does the heavy lifting when available; a deterministic regex
// cleaner is always there as the fallback.
package clean

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/coolbeans/safetylex/pkg/corpus"
)

type replacement struct {
	pattern *regexp.Regexp
	with    string
}

func remove(expr string) replacement {
	return replacement{pattern: regexp.MustCompile(expr), with: ""}
}

// Boilerplate of the official publication portals, per jurisdiction, applied in order.
var boilerplate = map[string][]replacement{
	corpus.JurisdictionAT: {
		remove(`(?m)^[ \t]*Bundesrecht konsolidiert[ \t]*$`),
		remove(`(?m)^[ \t]*Gesamte Rechtsvorschrift für .*Fassung vom \d{2}\.\d{2}\.\d{4}[ \t]*$`),
		remove(`(?i)(https?://)?www\.ris\.bka\.gv\.at\S*`),
		remove(`(?m)^[ \t]*Seite \d+ von \d+[ \t]*$`),
		remove(`(?m)^[ \t]*(Text|Beachte|Zum Text)[ \t]*$`),
	},
	corpus.JurisdictionDE: {
		remove(`(?m)^[ \t]*Ein Service des Bundesministeriums der Justiz.*$`),
		remove(`(?i)(https?://)?www\.gesetze-im-internet\.de\S*`),
		remove(`(?m)^[ \t]*- Seite \d+ von \d+ -[ \t]*$`),
		remove(`(?m)^[ \t]*(Nichtamtliches Inhaltsverzeichnis|Zum Seitenanfang|Impressum|Datenschutz|Barrierefreiheitserklärung)[ \t]*$`),
	},
	corpus.JurisdictionNL: {
		remove(`(?i)(https?://)?wetten\.overheid\.nl\S*`),
		remove(`(?m)^[ \t]*Geldend van \d{2}-\d{2}-\d{4}( t/m (\d{2}-\d{2}-\d{4}|heden))?[ \t]*$`),
		remove(`(?m)^[ \t]*(Toon relaties in LiDO|Maak een permanente link|Toon wetstechnische informatie|Druk het regelingonderdeel af|Sla het regelingonderdeel op)[ \t]*$`),
	},
}

var (
	lineBreaks          = regexp.MustCompile(`\r\n?`)
	horizontalSpace     = regexp.MustCompile(`[ \t\x{00a0}\x{2000}-\x{200a}\x{202f}\x{205f}\x{3000}]+`)
	lineEdgeSpace       = regexp.MustCompile(`[ \t]*\n[ \t]*`)
	repeatedCommas      = regexp.MustCompile(`,(\s*,)+`)
	excessiveLineBreaks = regexp.MustCompile(`\n{3,}`)
)

// maxPasses bounds the fixpoint loop; real input settles after one or two passes.
const maxPasses = 8

// RegexCleaner is the deterministic cleaning strategy. It never fails and
// Clean(Clean(x)) == Clean(x).
type RegexCleaner struct {
	patterns map[string][]replacement
}

// NewRegexCleaner creates a cleaner with the built-in boilerplate lists.
func NewRegexCleaner() *RegexCleaner {
	return &RegexCleaner{patterns: boilerplate}
}

// Clean removes the jurisdiction's boilerplate and normalizes whitespace.
// Unknown jurisdictions only get the normalization.
func (c *RegexCleaner) Clean(jurisdiction string, text string) string {
	patterns := c.patterns[corpus.NormalizeJurisdiction(jurisdiction)]

	current := text
	for pass := 0; pass < maxPasses; pass++ {
		next := current
		for _, r := range patterns {
			next = r.pattern.ReplaceAllString(next, r.with)
		}
		next = Normalize(next)
		if next == current {
			break
		}
		current = next
	}
	return current
}

// Normalize is the universal pass run on every cleaned unit, whichever
// strategy produced it.
func Normalize(text string) string {
	text = norm.NFC.String(text)
	text = lineBreaks.ReplaceAllString(text, "\n")
	text = horizontalSpace.ReplaceAllString(text, " ")
	text = lineEdgeSpace.ReplaceAllString(text, "\n")
	text = repeatedCommas.ReplaceAllString(text, ",")
	text = excessiveLineBreaks.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
