package source

import (
	"strconv"
	"strings"
)

// Window is the half-open extraction window [Start, End) expressed as
// boundary strings substituted into the query template.
type Window struct {
	Start string
	End   string
}

// Paged reports whether the template carries pagination placeholders.
// Templates without them are extracted in cursor mode on a single
// connection.
func Paged(tmpl string) bool {
	return strings.Contains(tmpl, "{limit}") && strings.Contains(tmpl, "{offset}")
}

// BuildQuery substitutes the window and pagination placeholders into the
// template. Templates own their SQL shape; the pipeline only fills the
// blanks.
func BuildQuery(tmpl string, win Window, limit, offset int64) string {
	r := strings.NewReplacer(
		"{start}", win.Start,
		"{end}", win.End,
		"{limit}", strconv.FormatInt(limit, 10),
		"{offset}", strconv.FormatInt(offset, 10),
	)
	return r.Replace(tmpl)
}
