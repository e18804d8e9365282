package main

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

// Seed bootstraps an empty store by replaying every archived snapshot
// since the configured start date through the same reconcile+apply
// primitive the recurring cycle uses, then records the final watermarks.
func Seed(cfg Config, db *sql.DB, archive *ArchiveClient) error {
	start := time.Now()
	log.Println("Start seeding")

	if err := seedVersioned(cfg, db, archive, DatasetCases, cfg.CasesFileURL, ResolveCase,
		deriveCaseDates, func(plan Plan[Case]) ApplyResult {
			return ApplyCasePlan(db, plan, cfg.TolerateSet())
		}); err != nil {
		return fmt.Errorf("seeding cases: %w", err)
	}
	if err := seedVersioned(cfg, db, archive, DatasetBuildings, cfg.BuildingsFileURL, ResolveBuilding,
		nil, func(plan Plan[Building]) ApplyResult {
			return ApplyBuildingPlan(db, plan)
		}); err != nil {
		return fmt.Errorf("seeding buildings: %w", err)
	}
	if err := seedClusters(cfg, db, archive); err != nil {
		return fmt.Errorf("seeding clusters: %w", err)
	}

	log.Printf("Seeding completed in %s", time.Since(start).Round(time.Second))
	return nil
}

// seedVersioned replays the full version history of one dataset: the first
// snapshot initializes the store (a plan against an empty reference is all
// inserts), every later one is reconciled against its predecessor, and the
// live file is processed last.
func seedVersioned[T record[T]](
	cfg Config,
	db *sql.DB,
	archive *ArchiveClient,
	kind DatasetKind,
	fileURL string,
	resolve func(RawRow) (T, error),
	derive DeriveFunc[T],
	apply func(Plan[T]) ApplyResult,
) error {
	versions, err := archive.ListFileVersions(fileURL, cfg.SeedStart, archive.yesterday())
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		return fmt.Errorf("archive holds no versions of %s", fileURL)
	}
	lastVersion := versions[len(versions)-1]
	lastDate, err := ParseVersionTime(lastVersion)
	if err != nil {
		return err
	}
	log.Printf("Seeding %s: %d versions from %s to %s", kind, len(versions), versions[0], lastVersion)

	var prev *Version[T]
	for i := 0; i <= len(versions); i++ { // one past the end for the live file
		version := ""
		date := lastDate.AddDate(0, 0, 1)
		if i < len(versions) {
			version = versions[i]
			if date, err = ParseVersionTime(version); err != nil {
				return err
			}
			log.Printf("Processing %s snapshot %s", kind, version)
		} else {
			log.Printf("Processing latest %s list", kind)
		}

		rows, err := archive.FetchRows(fileURL, version)
		if err != nil {
			return fmt.Errorf("fetching %s version %q: %w", kind, version, err)
		}
		list, _ := resolveSnapshot(rows, resolve)
		current := Version[T]{Date: date, List: list}

		reference := Version[T]{Date: date}
		if prev != nil {
			reference = *prev
		}
		result := apply(BuildPlan(reference, current, derive))
		log.Printf("Seed %s", FormatApplySummary(kind, result))
		prev = &current
	}

	return SetWatermark(db, kind, lastVersion)
}

// seedClusters loads the live cluster list only; the cluster file's
// history is short and every record carries its full state.
func seedClusters(cfg Config, db *sql.DB, archive *ArchiveClient) error {
	rows, err := archive.FetchRows(cfg.ClustersFileURL, "")
	if err != nil {
		return err
	}
	list, _ := resolveSnapshot(rows, ResolveCluster)
	plan := Plan[Cluster]{Inserts: list}
	result := ApplyClusterPlan(db, plan)
	log.Printf("Seed %s", FormatApplySummary(DatasetClusters, result))

	latest, err := archive.LatestFileVersion(cfg.ClustersFileURL)
	if err != nil {
		return err
	}
	if latest == "" {
		return nil
	}
	return SetWatermark(db, DatasetClusters, latest)
}
