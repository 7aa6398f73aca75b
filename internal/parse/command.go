// Package parse turns raw chat text into ledger-ready values: the
// "<label> <amount>" text command, receipt amount extraction and keyword
// category classification.
package parse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sakkabuar/bilix-bot/internal/core"
)

// A command is a free-text label followed by whitespace and a trailing run of
// ASCII digits. The label may contain digits of its own; only the trailing
// run is the amount.
var commandRe = regexp.MustCompile(`^(.*\S)\s+([0-9]+)$`)

// ParseCommand splits a text message into a category label and a whole-baht
// amount. ok is false when the message does not end in a separated digit run.
func ParseCommand(raw string) (label string, amount core.Money, ok bool) {
	m := commandRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", core.Money{}, false
	}
	n, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		// Digit run too long for int64; treat as no match rather than failing.
		return "", core.Money{}, false
	}
	return m[1], core.FromBahtUnits(n), true
}
