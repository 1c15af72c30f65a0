package clean

import (
	"strings"
	"testing"
)

var regexSamples = []struct {
	jurisdiction string
	input        string
}{
	{"AT", "Bundesrecht konsolidiert\nGesamte Rechtsvorschrift für ArbeitnehmerInnenschutzgesetz, Fassung vom 01.01.2024\n\n§ 1. (1) Dieses Bundesgesetz gilt für die Beschäftigung von Arbeitnehmern.\n\nwww.ris.bka.gv.at\nSeite 1 von 87"},
	{"DE", "§ 3 Grundpflichten des Arbeitgebers\n\n\n\n(1) Der Arbeitgeber ist verpflichtet,,  die erforderlichen Maßnahmen zu treffen.\n- Seite 2 von 14 -\nEin Service des Bundesministeriums der Justiz sowie des Bundesamts für Justiz ‒ www.gesetze-im-internet.de"},
	{"NL", "Artikel 3\nGeldend van 01-01-2024 t/m heden\nToon relaties in LiDO\n1. De werkgever zorgt voor de veiligheid en de gezondheid van de werknemers.\nhttps://wetten.overheid.nl/BWBR0010346"},
	{"DE", "   \t  \n\n   "},
	{"DE", ""},
	{"XX", "plain  text ,  , with\r\ncommas\n\n\n\nand lines"},
	{"AT", "Nichtamtlich  getrennt    Wörter é"},
}

func TestRegexCleanIdempotent(t *testing.T) {
	cleaner := NewRegexCleaner()
	for _, sample := range regexSamples {
		once := cleaner.Clean(sample.jurisdiction, sample.input)
		twice := cleaner.Clean(sample.jurisdiction, once)
		if once != twice {
			t.Errorf("%s: not idempotent:\nonce:  %q\ntwice: %q", sample.jurisdiction, once, twice)
		}
	}
}

func TestRegexCleanRemovesBoilerplate(t *testing.T) {
	cleaner := NewRegexCleaner()

	tests := []struct {
		name       string
		index      int
		mustKeep   []string
		mustRemove []string
	}{
		{"AT RIS", 0, []string{"§ 1. (1) Dieses Bundesgesetz"}, []string{"Bundesrecht konsolidiert", "ris.bka", "Seite 1 von 87", "Fassung vom"}},
		{"DE gesetze-im-internet", 1, []string{"§ 3 Grundpflichten des Arbeitgebers", "(1) Der Arbeitgeber ist verpflichtet, die"}, []string{"Seite 2 von 14", "Ein Service", "gesetze-im-internet"}},
		{"NL wetten.overheid.nl", 2, []string{"Artikel 3", "veiligheid en de gezondheid"}, []string{"Geldend van", "LiDO", "wetten.overheid.nl"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sample := regexSamples[tt.index]
			cleaned := cleaner.Clean(sample.jurisdiction, sample.input)
			for _, keep := range tt.mustKeep {
				if !strings.Contains(cleaned, keep) {
					t.Errorf("missing %q in %q", keep, cleaned)
				}
			}
			for _, gone := range tt.mustRemove {
				if strings.Contains(cleaned, gone) {
					t.Errorf("still contains %q: %q", gone, cleaned)
				}
			}
		})
	}
}

func TestRegexCleanEmptyAndWhitespace(t *testing.T) {
	cleaner := NewRegexCleaner()
	for _, input := range []string{"", " ", "\n\n\t", " "} {
		if got := cleaner.Clean("DE", input); got != "" {
			t.Errorf("Clean(%q) = %q, want empty", input, got)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"a  b\t\tc", "a b c"},
		{"a,,b", "a,b"},
		{"a, , ,b", "a,b"},
		{"one\n\n\n\ntwo", "one\n\ntwo"},
		{"line  \n  next", "line\nnext"},
		{"crlf\r\nline", "crlf\nline"},
		{"  padded  ", "padded"},
		{"é", "é"},
		{"§ 1", "§ 1"},
	}

	for _, tt := range tests {
		if got := Normalize(tt.input); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestRegexCleanUnknownJurisdictionOnlyNormalizes(t *testing.T) {
	input := "Bundesrecht konsolidiert\nText"
	if got := NewRegexCleaner().Clean("CH", input); got != input {
		t.Errorf("unknown jurisdiction changed content: %q", got)
	}
}
