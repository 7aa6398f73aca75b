package parse

import (
	"regexp"

	"github.com/sakkabuar/bilix-bot/internal/core"
)

// Currency-shaped tokens: comma-grouped or plain digit runs, optionally with
// a two-digit fraction. Receipt OCR output mixes both freely.
var amountTokenRe = regexp.MustCompile(`\d{1,3}(?:,\d{3})+(?:\.\d{2})?|\d+(?:\.\d{2})?`)

// ExtractAmount scans OCR text for the most plausible receipt total: the
// largest well-formed currency token. Receipts print the grand total as the
// biggest figure often enough that this is a usable heuristic, not a
// guarantee. Ties keep the first occurrence; malformed tokens are skipped.
// ok is false when the text contains no numeric-looking token at all.
func ExtractAmount(text string) (core.Money, bool) {
	var (
		best  int64
		found bool
	)
	for _, tok := range amountTokenRe.FindAllString(text, -1) {
		satang, err := core.ParseDecimalToSatang(tok)
		if err != nil {
			continue
		}
		if !found || satang > best {
			best = satang
			found = true
		}
	}
	if !found {
		return core.Money{}, false
	}
	return core.Money{Satang: best}, true
}

// Vendor guesses a vendor label from receipt text: the first line that is not
// dominated by digits. Falls back to the generic placeholder.
func Vendor(text string) string {
	for _, line := range splitLines(text) {
		if line == "" {
			continue
		}
		if digitHeavy(line) {
			continue
		}
		return core.Note(line)
	}
	return core.DefaultVendor
}

func splitLines(text string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(text); i++ {
		if i == len(text) || text[i] == '\n' {
			out = append(out, trimSpaces(text[start:i]))
			start = i + 1
		}
	}
	return out
}

func trimSpaces(s string) string {
	i, j := 0, len(s)
	for i < j && (s[i] == ' ' || s[i] == '\t' || s[i] == '\r') {
		i++
	}
	for j > i && (s[j-1] == ' ' || s[j-1] == '\t' || s[j-1] == '\r') {
		j--
	}
	return s[i:j]
}

func digitHeavy(line string) bool {
	digits := 0
	for _, r := range line {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits*2 > len([]rune(line))
}
