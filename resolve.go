package main

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// RawRow is one CSV row keyed by column label. Labels in the source files
// occasionally carry surrounding whitespace, so lookups go through trimKeys.
type RawRow map[string]string

// RowErrorKind classifies why a row could not be resolved.
type RowErrorKind int

const (
	RowErrMissingField RowErrorKind = iota
	RowErrBadDate
	RowErrBadValue
	RowErrBadIdentity
)

func (k RowErrorKind) String() string {
	switch k {
	case RowErrMissingField:
		return "missing required field"
	case RowErrBadDate:
		return "unparseable date"
	case RowErrBadValue:
		return "unrecognized value"
	case RowErrBadIdentity:
		return "unparseable identity"
	}
	return "unknown"
}

// RowError is the typed parse failure a resolver returns instead of a
// record. It never escapes snapshot resolution; the failed row is dropped
// and logged.
type RowError struct {
	Kind   RowErrorKind
	Field  string
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Field, e.Kind, e.Reason)
}

func rowErrorf(kind RowErrorKind, field, format string, args ...any) *RowError {
	return &RowError{Kind: kind, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// RowFailure pairs a dropped raw row with the reason, for offline review.
type RowFailure struct {
	Row RawRow
	Err error
}

func trimKeys(row RawRow) RawRow {
	out := make(RawRow, len(row))
	for k, v := range row {
		out[strings.TrimSpace(k)] = v
	}
	return out
}

// parseDayMonthYear parses the source's DD/MM/YYYY format after stripping
// everything that is not a digit or a slash (dates show up with footnote
// markers and stray spaces).
func parseDayMonthYear(s string) (time.Time, error) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '/' {
			return r
		}
		return -1
	}, s)
	return time.Parse("02/01/2006", cleaned)
}

// parseCaseNumbers extracts case numbers from free text like
// "Case 56", "56, 47" or "28, 34 and 53". Non-numeric and zero tokens are
// dropped; duplicates keep only their first occurrence.
func parseCaseNumbers(s string) []int {
	cleaned := replaceAllFold(s, "case", "")
	cleaned = replaceAllFold(cleaned, "and", ",")
	cleaned = strings.ReplaceAll(cleaned, "/", ",")

	var numbers []int
	seen := make(map[int]bool)
	for _, token := range strings.Split(cleaned, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(token))
		if err != nil || n == 0 {
			continue
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		numbers = append(numbers, n)
	}
	return numbers
}

// replaceAllFold replaces every case-insensitive occurrence of old with
// repl. The scan is rune-aware: lowering a rune can change its byte
// length, so byte offsets into a ToLower copy cannot be trusted.
func replaceAllFold(s, old, repl string) string {
	if old == "" {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); {
		if n := foldPrefixLen(s[i:], old); n > 0 {
			b.WriteString(repl)
			i += n
			continue
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		b.WriteString(s[i : i+size])
		i += size
	}
	return b.String()
}

// foldPrefixLen returns the byte length of the prefix of s matching old
// rune by rune under simple case folding, or 0 when there is no match.
func foldPrefixLen(s, old string) int {
	i := 0
	for _, or := range old {
		r, size := utf8.DecodeRuneInString(s[i:])
		if size == 0 || unicode.ToLower(r) != unicode.ToLower(or) {
			return 0
		}
		i += size
	}
	return i
}

type keyed interface {
	Key() string
}

// resolveSnapshot runs a resolver over every raw row, dropping failed rows
// and deduplicating identities (last one wins, logged as a warning).
// Resolution of the snapshot always continues past individual failures.
func resolveSnapshot[T keyed](rows []RawRow, resolve func(RawRow) (T, error)) ([]T, []RowFailure) {
	var failures []RowFailure
	var list []T
	index := make(map[string]int)
	for _, raw := range rows {
		record, err := resolve(raw)
		if err != nil {
			log.Printf("Dropping row: %v row=%v", err, raw)
			failures = append(failures, RowFailure{Row: raw, Err: err})
			continue
		}
		key := record.Key()
		if at, ok := index[key]; ok {
			log.Printf("Duplicate identity %q in snapshot, keeping last", key)
			list[at] = record
			continue
		}
		index[key] = len(list)
		list = append(list, record)
	}
	return list, failures
}
