// Package forms is the validation boundary between sub-form input and the
// session's document state. Each form validates its own section and, only on
// success, produces a patch replacing that whole section. Invalid input
// yields field errors and no patch; nothing partially valid ever reaches
// shared state.
package forms

import (
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"
)

// OpeningMinLength is the minimum size of the cover letter's opening
// paragraph; generated prose below this reads as a fragment.
const OpeningMinLength = 30

const dateLayout = "2006-01-02"

// FieldErrors maps a field path (e.g. "experiences[2].company") to a
// human-readable problem. It implements error for plumbing convenience but
// is surfaced as inline field feedback, not as an application failure.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	if len(e) == 0 {
		return "invalid input"
	}
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return strings.Join(parts, "; ")
}

func (e FieldErrors) add(field, msg string) {
	e[field] = msg
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func validEmail(s string) bool {
	_, err := mail.ParseAddress(s)
	return err == nil
}

func parseDate(s string) (time.Time, bool) {
	t, err := time.Parse(dateLayout, s)
	return t, err == nil
}

// checkRange validates an optional start/end date pair. A nil or empty end
// means the entry is ongoing and is always acceptable.
func checkRange(errs FieldErrors, prefix string, start, end *string) {
	var startT time.Time
	startOK := false
	if start != nil && !blank(*start) {
		var ok bool
		startT, ok = parseDate(*start)
		if !ok {
			errs.add(prefix+".dates.start", "must be a date in YYYY-MM-DD form")
		} else {
			startOK = true
		}
	}
	if end != nil && !blank(*end) {
		endT, ok := parseDate(*end)
		if !ok {
			errs.add(prefix+".dates.end", "must be a date in YYYY-MM-DD form")
			return
		}
		if startOK && endT.Before(startT) {
			errs.add(prefix+".dates.end", "must not be before the start date")
		}
	}
}

func indexed(section string, i int) string {
	return fmt.Sprintf("%s[%d]", section, i)
}
