package main

import (
	"log"
	"strconv"
	"strings"
	"time"
)

// Column labels of the enhanced surveillance case file.
const (
	colCaseNo         = "Case no."
	colReportDate     = "Report date"
	colOnsetDate      = "Date of onset"
	colGender         = "Gender"
	colAge            = "Age"
	colStatus         = "Hospitalised/Discharged/Deceased"
	colResident       = "HK/Non-HK resident"
	colClassification = "Case classification*"
	colConfirmed      = "Confirmed/probable"
)

// ResolveCase converts one raw case row into a typed Case record, or
// returns a RowError describing the first field that could not be
// resolved. It never panics past this boundary.
func ResolveCase(raw RawRow) (Case, error) {
	row := trimKeys(raw)

	id, err := resolveCaseID(row)
	if err != nil {
		return Case{}, err
	}
	age, err := resolveAge(row)
	if err != nil {
		return Case{}, err
	}
	reportDate, err := parseDayMonthYear(row[colReportDate])
	if err != nil {
		return Case{}, rowErrorf(RowErrBadDate, colReportDate, "%q", row[colReportDate])
	}
	gender, err := resolveGender(row[colGender])
	if err != nil {
		return Case{}, err
	}
	status, err := resolveStatus(row[colStatus])
	if err != nil {
		return Case{}, err
	}
	classification, err := resolveClassification(row[colClassification])
	if err != nil {
		return Case{}, err
	}
	confirmed, err := resolveConfirmed(row[colConfirmed])
	if err != nil {
		return Case{}, err
	}
	resident, err := resolveHKResident(row[colResident])
	if err != nil {
		return Case{}, err
	}

	onsetDate := resolveOnsetDate(row[colOnsetDate])
	return Case{
		ID:             id,
		Age:            age,
		ReportDate:     reportDate,
		OnsetDate:      onsetDate,
		Gender:         gender,
		Status:         status,
		Classification: classification,
		Confirmed:      confirmed,
		HKResident:     resident,
		Asymptomatic:   resolveAsymptomatic(row[colOnsetDate], onsetDate),
	}, nil
}

func resolveCaseID(row RawRow) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(row[colCaseNo]))
	if err != nil || id <= 0 {
		return 0, rowErrorf(RowErrBadIdentity, colCaseNo, "%q", row[colCaseNo])
	}
	return id, nil
}

func resolveAge(row RawRow) (int, error) {
	str := strings.TrimSpace(row[colAge])
	age, err := strconv.Atoi(str)
	if err != nil {
		// infants are reported in months
		switch str {
		case "1 month", "2 months":
			return 0, nil
		}
		return 0, rowErrorf(RowErrBadValue, colAge, "%q", str)
	}
	if age < 0 {
		return 0, rowErrorf(RowErrBadValue, colAge, "negative age %d", age)
	}
	return age, nil
}

var monthNames = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// resolveOnsetDate is permissive: a direct DD/MM/YYYY parse first, then a
// month-name scan that synthesizes the 15th of that month in 2020, and
// finally nil for anything else. An onset date is never a row failure.
func resolveOnsetDate(str string) *time.Time {
	if date, err := parseDayMonthYear(str); err == nil {
		return &date
	}
	lower := strings.ToLower(str)
	for i, month := range monthNames {
		if strings.Contains(lower, month) {
			date := time.Date(2020, time.Month(i+1), 15, 0, 0, 0, 0, time.UTC)
			return &date
		}
	}
	return nil
}

// resolveAsymptomatic infers symptom status from the onset column: an
// explicit keyword wins, otherwise a resolvable onset date implies
// symptomatic. Anything else resolves to unknown, with a diagnostic when
// the text matches no recognizable keyword at all.
func resolveAsymptomatic(str string, onsetDate *time.Time) Flag {
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "pending", "unknown":
		return FlagUnknown
	case "asymptomatic", "asymtomatic": // misspelling appears in the source
		return FlagYes
	}
	if onsetDate != nil {
		return FlagNo
	}
	if !containsAnyFold(str, "asymptomatic", "asymtomatic", "pending", "unknown", "not applicable") {
		log.Printf("Unknown date of onset: %q (set to unknown)", str)
	}
	return FlagUnknown
}

func containsAnyFold(s string, subs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}

func resolveGender(str string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "m":
		return GenderMale, nil
	case "f":
		return GenderFemale, nil
	}
	return "", rowErrorf(RowErrBadValue, colGender, "%q", str)
}

func resolveStatus(str string) (CaseStatus, error) {
	s := strings.ToLower(strings.TrimSpace(str))
	switch {
	case strings.Contains(s, "hospitalised"):
		return StatusHospitalised, nil
	case strings.Contains(s, "discharged"):
		return StatusDischarged, nil
	case strings.Contains(s, "deceased"):
		return StatusDeceased, nil
	case strings.Contains(s, "pending"):
		return StatusPendingAdmission, nil
	case strings.Contains(s, "no admission"):
		return StatusNoAdmission, nil
	case s == "" || strings.Contains(s, "to be provided"):
		return StatusToBeProvided, nil
	}
	return "", rowErrorf(RowErrBadValue, colStatus, "%q", str)
}

func resolveClassification(str string) (Classification, error) {
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "imported", "imported case":
		return ClassImported, nil
	case "close contact of imported case",
		"epidemiologically linked with imported case":
		return ClassLinkedWithImported, nil
	case "possibly local", "possibly local case":
		return ClassPossiblyLocal, nil
	case "close contact of possibly local case",
		"epidemiologically linked with possibly local case":
		return ClassLinkedWithPossiblyLocal, nil
	case "local case":
		return ClassLocal, nil
	case "close contact of local case",
		"epidemiologically linked with local case":
		return ClassLinkedWithLocal, nil
	}
	return "", rowErrorf(RowErrBadValue, colClassification, "%q", str)
}

func resolveConfirmed(str string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "confirmed":
		return true, nil
	case "probable":
		return false, nil
	}
	return false, rowErrorf(RowErrBadValue, colConfirmed, "%q", str)
}

func resolveHKResident(str string) (Flag, error) {
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "hk resident":
		return FlagYes, nil
	case "non hk resident", "non-hk resident":
		return FlagNo, nil
	case "unknown":
		return FlagUnknown, nil
	}
	return FlagUnknown, rowErrorf(RowErrBadValue, colResident, "%q", str)
}
