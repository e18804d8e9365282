package main

import "time"

// Column names of the derived transition-date fields on a case row.
const (
	derivedAdmissionDate = "admission_date"
	derivedDischargeDate = "discharge_date"
	derivedDeceaseDate   = "decease_date"
)

type record[T any] interface {
	Key() string
	Equal(T) bool
}

// Update is one planned update: the replacement record plus the derived
// date columns to stamp alongside it. Derived columns not named here are
// left untouched in the store, so a previously stamped transition date is
// never cleared by a later reconciliation.
type Update[T any] struct {
	Record  T
	Derived map[string]time.Time
}

// Plan is the minimal set of writes bringing the store from the reference
// snapshot's state to the current one. Records present only in the
// reference are left alone; the source never retracts data.
type Plan[T any] struct {
	Inserts []T
	Updates []Update[T]
}

func (p Plan[T]) Empty() bool {
	return len(p.Inserts) == 0 && len(p.Updates) == 0
}

// DeriveFunc inspects a matched pair of records and returns the derived
// date columns to stamp, keyed by column name. observed is the current
// snapshot's date: the source never carries transition timestamps, so they
// are inferred from the moment the transition is detected.
type DeriveFunc[T any] func(prev, next T, observed time.Time) map[string]time.Time

// BuildPlan diffs two snapshots of the same dataset by record identity.
// Identical matches are skipped, which is what makes repeated application
// with the same inputs idempotent. derive may be nil for datasets without
// derived fields.
func BuildPlan[T record[T]](reference, current Version[T], derive DeriveFunc[T]) Plan[T] {
	index := make(map[string]T, len(reference.List))
	for _, r := range reference.List {
		index[r.Key()] = r // last one wins on duplicates
	}

	var plan Plan[T]
	for _, item := range current.List {
		prev, ok := index[item.Key()]
		if !ok {
			plan.Inserts = append(plan.Inserts, item)
			continue
		}
		if prev.Equal(item) {
			continue
		}
		update := Update[T]{Record: item}
		if derive != nil {
			update.Derived = derive(prev, item, current.Date)
		}
		plan.Updates = append(plan.Updates, update)
	}
	return plan
}

// deriveCaseDates stamps the transition date matching a changed case
// status. Statuses without a transition date (e.g. pending admission)
// stamp nothing.
func deriveCaseDates(prev, next Case, observed time.Time) map[string]time.Time {
	if prev.Status == next.Status {
		return nil
	}
	switch next.Status {
	case StatusHospitalised:
		return map[string]time.Time{derivedAdmissionDate: observed}
	case StatusDischarged:
		return map[string]time.Time{derivedDischargeDate: observed}
	case StatusDeceased:
		return map[string]time.Time{derivedDeceaseDate: observed}
	}
	return nil
}
