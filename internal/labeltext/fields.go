// Package labeltext turns raw OCR text from PSA labels into structured
// fields and splits a stitched composite's text back across its member
// scans. Parsing is tolerant: garbled text yields partial fields, never an
// error, so a bad read degrades one scan instead of failing its batch.
package labeltext

import (
	"regexp"
	"strconv"
	"strings"

	"cardvault/internal/models"
)

var (
	yearPattern   = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	certPattern   = regexp.MustCompile(`\b\d{7,10}\b`)
	numberPattern = regexp.MustCompile(`#\s*(\d{1,4}[a-zA-Z]?)|\b(\d{1,3})\s*/\s*\d{1,3}\b`)
	gradePattern  = regexp.MustCompile(`\b(GEM\s*(?:MT|MINT)|MINT|NM\s*-?\s*MT|NM|EX\s*-?\s*MT|EX|VG\s*-?\s*EX|VG|GOOD|FR|PR|AUTHENTIC)\s*(10|[1-9](?:\.5)?)?\b`)
)

var knownModifiers = []string{
	"1ST EDITION", "1ST ED", "SHADOWLESS", "REVERSE HOLO", "REVERSE",
	"HOLO", "STAFF", "PROMO", "FULL ART", "SECRET", "RAINBOW", "DELTA SPECIES",
}

var knownLanguages = map[string]string{
	"JAPANESE": "ja", "JPN": "ja",
	"GERMAN": "de", "FRENCH": "fr", "ITALIAN": "it",
	"SPANISH": "es", "KOREAN": "ko", "CHINESE": "zh",
	"PORTUGUESE": "pt", "DUTCH": "nl",
}

// Words stripped from the set-name line. PSA prints the franchise, not the
// set, in these positions.
var setNoiseWords = map[string]bool{
	"POKEMON": true, "P.M.": true, "PM": true, "POCKET": true, "MONSTERS": true,
	"TCG": true, "GAME": true, "JAPANESE": true,
}

// ParseLabel extracts structured fields from one label's share of OCR text.
func ParseLabel(text string) *models.ExtractedFields {
	fields := &models.ExtractedFields{}
	if strings.TrimSpace(text) == "" {
		return fields
	}

	upper := strings.ToUpper(text)
	lines := splitLines(upper)

	if match := yearPattern.FindString(upper); match != "" {
		if year, err := strconv.Atoi(match); err == nil {
			fields.Year = year
		}
	}

	fields.Grade = extractGrade(upper)
	fields.CertNumber = extractCert(upper)
	fields.CandidateNumbers = extractNumbers(upper)
	fields.Modifiers = extractModifiers(upper)
	fields.Language = extractLanguage(upper)
	fields.SetName = extractSetName(lines)
	fields.CardName, fields.CandidateNames = extractNames(lines)
	fields.Confidence = fieldConfidence(fields)

	return fields
}

func splitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func extractGrade(text string) string {
	match := gradePattern.FindStringSubmatch(text)
	if match == nil {
		return ""
	}
	grade := strings.Join(strings.Fields(match[0]), " ")
	return grade
}

func extractCert(text string) string {
	return certPattern.FindString(text)
}

func extractNumbers(text string) []string {
	seen := make(map[string]bool)
	var numbers []string
	for _, match := range numberPattern.FindAllStringSubmatch(text, -1) {
		value := match[1]
		if value == "" {
			value = match[2]
		}
		value = strings.TrimLeft(strings.ToUpper(value), "0")
		if value == "" || seen[value] {
			continue
		}
		seen[value] = true
		numbers = append(numbers, value)
	}
	return numbers
}

func extractModifiers(text string) []string {
	var modifiers []string
	remaining := text
	for _, modifier := range knownModifiers {
		if strings.Contains(remaining, modifier) {
			modifiers = append(modifiers, canonicalModifier(modifier))
			// Stop REVERSE HOLO from also matching REVERSE and HOLO.
			remaining = strings.ReplaceAll(remaining, modifier, "")
		}
	}
	return modifiers
}

func canonicalModifier(modifier string) string {
	switch modifier {
	case "1ST ED":
		return "1ST EDITION"
	case "REVERSE":
		return "REVERSE HOLO"
	default:
		return modifier
	}
}

func extractLanguage(text string) string {
	for keyword, code := range knownLanguages {
		if strings.Contains(text, keyword) {
			return code
		}
	}
	return ""
}

// extractSetName takes the line carrying the year (PSA prints year + set on
// the first label line) and strips the year plus franchise noise.
func extractSetName(lines []string) string {
	for _, line := range lines {
		if !yearPattern.MatchString(line) {
			continue
		}
		cleaned := yearPattern.ReplaceAllString(line, "")
		var kept []string
		for _, word := range strings.Fields(cleaned) {
			trimmed := strings.Trim(word, ".,-")
			if trimmed == "" || setNoiseWords[trimmed] || setNoiseWords[word] {
				continue
			}
			kept = append(kept, trimmed)
		}
		if len(kept) > 0 {
			return strings.Join(kept, " ")
		}
	}
	return ""
}

// extractNames picks the card-name line: the first line that is not the
// year/set line and carries no grade or cert. Hyphenated suffixes like
// CHARIZARD-HOLO produce both the full string and the bare name as
// candidates, since OCR regularly fuses the two.
func extractNames(lines []string) (string, []string) {
	for _, line := range lines {
		if yearPattern.MatchString(line) || certPattern.MatchString(line) {
			continue
		}
		if gradePattern.MatchString(line) || numberPattern.MatchString(line) {
			continue
		}
		if len(strings.Fields(line)) == 0 {
			continue
		}

		name := strings.TrimSpace(line)
		candidates := []string{name}
		if idx := strings.IndexAny(name, "-–"); idx > 0 {
			bare := strings.TrimSpace(name[:idx])
			if bare != "" && bare != name {
				candidates = append(candidates, bare)
				name = bare
			}
		}
		return name, candidates
	}
	return "", nil
}

func fieldConfidence(f *models.ExtractedFields) float64 {
	score := 0.0
	if f.CertNumber != "" {
		score += 0.25
	}
	if f.Grade != "" {
		score += 0.15
	}
	if f.Year != 0 {
		score += 0.15
	}
	if f.CardName != "" {
		score += 0.25
	}
	if f.SetName != "" {
		score += 0.10
	}
	if len(f.CandidateNumbers) > 0 {
		score += 0.10
	}
	return score
}
