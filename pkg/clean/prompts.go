package clean

import (
	"github.com/coolbeans/safetylex/pkg/corpus"
)

const promptRules = `
Rules:
- Return only the cleaned text. No commentary, no Markdown, no code fences.
- Never summarize, paraphrase, translate or shorten the legal content.
- Keep section and paragraph numbering, enumerations (1., 2., a), b), Z 1, lit. a) and cross references exactly as written.
- Join words hyphenated across line breaks and lines broken in the middle of a sentence.
- Separate paragraphs with one blank line.
- If nothing is left after removing boilerplate, return the input unchanged.`

var systemInstructions = map[string]string{
	corpus.JurisdictionAT: `You clean Austrian federal law text exported from the RIS (Rechtsinformationssystem des Bundes).
Remove: "Bundesrecht konsolidiert" headers, "Gesamte Rechtsvorschrift für ..." banners, "Fassung vom" lines, www.ris.bka.gv.at links, page numbers, "Beachte" navigation labels, repeated document titles and table-of-contents fragments.
Keep: § numbers and headings, Absatz numbers in parentheses, Ziffern and litera, in-force notes that belong to a section.
The text is German.` + promptRules,

	corpus.JurisdictionDE: `You clean German federal law text exported from gesetze-im-internet.de.
Remove: "Ein Service des Bundesministeriums der Justiz" footers, www.gesetze-im-internet.de links, "- Seite x von y -" page markers, "Nichtamtliches Inhaltsverzeichnis", "Zum Seitenanfang", Impressum and Datenschutz navigation, repeated document titles.
Keep: § numbers and headings, Absatz numbers in parentheses, Nummern and Buchstaben, footnotes that amend the text.
The text is German.` + promptRules,

	corpus.JurisdictionNL: `You clean Dutch law text exported from wetten.overheid.nl.
Remove: wetten.overheid.nl links, "Geldend van ... t/m ..." validity lines, "Toon relaties in LiDO", "Maak een permanente link", "Toon wetstechnische informatie", print and save controls, repeated regulation titles.
Keep: Artikel numbers and headings, leden numbering, onderdelen, and references to other articles.
The text is Dutch.` + promptRules,
}

const genericInstruction = `You clean legal text exported from an official publication portal.
Remove: website navigation, headers and footers, page numbers, links to the portal and repeated document titles.
Keep: every provision, its numbering and its headings.` + promptRules

// SystemInstruction returns the fixed instruction sent with every request for the jurisdiction.
func SystemInstruction(jurisdiction string) string {
	if instruction, ok := systemInstructions[corpus.NormalizeJurisdiction(jurisdiction)]; ok {
		return instruction
	}
	return genericInstruction
}
