package textutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName produces the matching key used for catalog dedup. two names
// that only differ in case or whitespace must produce the same key.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, " ")
	return name
}

// CleanDisplayName is what gets stored: trimmed, inner whitespace collapsed,
// but case kept as the source shows it.
func CleanDisplayName(name string) string {
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, " ")
	return name
}

var ErrUnexpectedValue = fmt.Errorf("cell is neither a price nor a dash")

var nonDigitRegex = regexp.MustCompile(`[^0-9]`)

// ScanPriceCell reads one price cell. a dash or empty cell is the source's
// "no quote" marker: ok is false and no error is returned. the source decorates
// prices with currency symbols and thousands separators, so anything carrying
// digits is read as the integer formed by them. text with no digits at all is
// ErrUnexpectedValue.
func ScanPriceCell(text string) (value int, ok bool, err error) {
	text = strings.TrimSpace(text)
	if text == "" || text == "-" {
		return 0, false, nil
	}

	digits := nonDigitRegex.ReplaceAllString(text, "")
	if digits == "" {
		return 0, false, fmt.Errorf("%w: %q", ErrUnexpectedValue, text)
	}

	value, err = strconv.Atoi(digits)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %q", ErrUnexpectedValue, text)
	}
	return value, true, nil
}
