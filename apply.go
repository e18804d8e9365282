package main

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
)

// ApplyResult tracks what happened while applying one plan. Failures are
// record-local; the counters are the cycle's externally visible outcome.
type ApplyResult struct {
	Inserted  int
	Updated   int
	Failed    int
	Tolerated int
	Errors    []string
}

func (r *ApplyResult) add(o ApplyResult) {
	r.Inserted += o.Inserted
	r.Updated += o.Updated
	r.Failed += o.Failed
	r.Tolerated += o.Tolerated
	r.Errors = append(r.Errors, o.Errors...)
}

// FormatApplySummary returns a one-line human-readable summary of a result.
func FormatApplySummary(kind DatasetKind, r ApplyResult) string {
	parts := []string{
		fmt.Sprintf("%d inserted", r.Inserted),
		fmt.Sprintf("%d updated", r.Updated),
	}
	if r.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", r.Failed))
	}
	if r.Tolerated > 0 {
		parts = append(parts, fmt.Sprintf("%d known gaps skipped", r.Tolerated))
	}
	return fmt.Sprintf("%s: %s", kind, strings.Join(parts, ", "))
}

// applyPlan walks a plan record by record. A failed write is logged and
// counted; it never blocks the remaining records and nothing written
// earlier is rolled back. tolerated marks identities with known data gaps
// whose failures are swallowed without counting as errors.
func applyPlan[T keyed](
	plan Plan[T],
	insert func(T) error,
	update func(Update[T]) error,
	tolerated func(T) bool,
) ApplyResult {
	var result ApplyResult
	for _, item := range plan.Inserts {
		if err := insert(item); err != nil {
			if tolerated != nil && tolerated(item) {
				result.Tolerated++
				continue
			}
			log.Printf("Insert failed for %q: %v", item.Key(), err)
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("insert %s: %v", item.Key(), err))
			continue
		}
		result.Inserted++
	}
	for _, upd := range plan.Updates {
		if err := update(upd); err != nil {
			if tolerated != nil && tolerated(upd.Record) {
				result.Tolerated++
				continue
			}
			log.Printf("Update failed for %q: %v", upd.Record.Key(), err)
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("update %s: %v", upd.Record.Key(), err))
			continue
		}
		result.Updated++
	}
	return result
}

// ApplyCasePlan applies a case plan. tolerate lists case numbers known to
// be missing from particular historical snapshots; their write failures
// are swallowed instead of counted.
func ApplyCasePlan(db *sql.DB, plan Plan[Case], tolerate map[int]bool) ApplyResult {
	return applyPlan(plan,
		func(c Case) error { return InsertCase(db, c) },
		func(u Update[Case]) error { return UpdateCase(db, u.Record, u.Derived) },
		func(c Case) bool { return tolerate[c.ID] },
	)
}

// ApplyBuildingPlan applies a building plan. Inserts and updates both go
// through the keyed upsert; buildings have no derived fields.
func ApplyBuildingPlan(db *sql.DB, plan Plan[Building]) ApplyResult {
	upsert := func(b Building) error { return UpsertBuilding(db, b) }
	return applyPlan(plan,
		upsert,
		func(u Update[Building]) error { return upsert(u.Record) },
		nil,
	)
}

// ApplyClusterPlan applies a cluster plan through the keyed upsert.
func ApplyClusterPlan(db *sql.DB, plan Plan[Cluster]) ApplyResult {
	upsert := func(c Cluster) error { return UpsertCluster(db, c) }
	return applyPlan(plan,
		upsert,
		func(u Update[Cluster]) error { return upsert(u.Record) },
		nil,
	)
}
