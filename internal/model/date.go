package model

import (
	"strings"
	"time"
)

// dateLayouts are the formats accepted by ParseDate, most common first.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
	"1/2/2006",
}

// Date is a calendar date parsed from a raw feed. A failed parse is not an
// error at the cleaning stage: the sentinel (Valid=false, Raw!="") survives
// until validation classifies the record.
type Date struct {
	Time  time.Time `json:"time"`
	Valid bool      `json:"valid"`
	Raw   string    `json:"raw,omitempty"`
}

// ParseDate coerces a raw string into a Date. An empty string yields an
// absent date; an unparsable string yields an invalid sentinel carrying the
// original text.
func ParseDate(s string) Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t.UTC(), Valid: true, Raw: s}
		}
	}
	return Date{Raw: s}
}

// DateOf wraps a known-good time as a valid Date.
func DateOf(t time.Time) Date {
	return Date{Time: t.UTC(), Valid: true}
}

// Absent reports whether the field was empty in the source.
func (d Date) Absent() bool {
	return !d.Valid && d.Raw == ""
}

// Malformed reports whether the field was present but unparsable.
func (d Date) Malformed() bool {
	return !d.Valid && d.Raw != ""
}

// String renders the date in ISO form, or the raw text for sentinels.
func (d Date) String() string {
	if !d.Valid {
		return d.Raw
	}
	return d.Time.Format("2006-01-02")
}
