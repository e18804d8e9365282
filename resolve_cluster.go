package main

import (
	"strconv"
	"strings"
)

const (
	colClusterName   = "Cluster"
	colInvolvedCases = "Involved case number"
)

// ResolveCluster converts one raw cluster row into a typed Cluster record.
// The name is normalized (lower case, trimmed) because it is the record's
// identity. Unlike buildings there is no free-text fallback: every token in
// the involved-case column must parse as a case number.
func ResolveCluster(raw RawRow) (Cluster, error) {
	row := trimKeys(raw)
	name := strings.ToLower(strings.TrimSpace(row[colClusterName]))
	if name == "" {
		return Cluster{}, rowErrorf(RowErrMissingField, colClusterName, "blank")
	}

	field := row[colInvolvedCases]
	if strings.TrimSpace(field) == "" {
		return Cluster{}, rowErrorf(RowErrMissingField, colInvolvedCases, "blank")
	}
	var cases []int
	for _, token := range strings.Split(field, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(token))
		if err != nil {
			return Cluster{}, rowErrorf(RowErrBadValue, colInvolvedCases, "%q", token)
		}
		cases = append(cases, n)
	}
	return Cluster{Name: name, Cases: cases}, nil
}
