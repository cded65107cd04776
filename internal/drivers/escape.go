package drivers

import "strings"

// Escape placeholders. Routing documents cannot carry raw control bytes, so
// literal commands spell them with these markers.
const (
	PlaceholderCR  = "#CR"
	PlaceholderLF  = "#LF"
	PlaceholderESC = "#ESC"
)

var escapeReplacer = strings.NewReplacer(
	PlaceholderESC, "\x1b",
	PlaceholderCR, "\r",
	PlaceholderLF, "\n",
)

// Escape replaces every placeholder in s with its control byte.
func Escape(s string) string {
	return escapeReplacer.Replace(s)
}

// Line returns the bytes written for one literal command: the escaped
// command followed by the escaped terminator.
func Line(command, terminator string) []byte {
	return []byte(Escape(command) + Escape(terminator))
}
