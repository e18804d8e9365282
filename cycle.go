package main

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Syncer drives one reconciliation cycle per trigger: for each dataset,
// compare the stored watermark against the newest archived version and,
// when it moved, reconcile the live file against the watermark snapshot.
type Syncer struct {
	cfg      Config
	db       *sql.DB
	archive  *ArchiveClient
	notifier *Notifier

	// one lease per dataset; a trigger firing while a dataset's cycle is
	// still running skips that dataset instead of queueing
	leases map[DatasetKind]*sync.Mutex
}

func NewSyncer(cfg Config, db *sql.DB, archive *ArchiveClient, notifier *Notifier) *Syncer {
	return &Syncer{
		cfg:      cfg,
		db:       db,
		archive:  archive,
		notifier: notifier,
		leases: map[DatasetKind]*sync.Mutex{
			DatasetCases:     {},
			DatasetBuildings: {},
			DatasetClusters:  {},
		},
	}
}

// RunCycle checks all three datasets concurrently. Each dataset's own
// pipeline is sequential and a failure in one never blocks the others.
func (s *Syncer) RunCycle() {
	log.Println("Starting sync cycle")
	start := time.Now()

	type outcome struct {
		kind    DatasetKind
		changed bool
		result  ApplyResult
		err     error
	}
	datasets := []DatasetKind{DatasetCases, DatasetBuildings, DatasetClusters}
	outcomes := make([]outcome, len(datasets))

	var wg sync.WaitGroup
	for i, kind := range datasets {
		wg.Add(1)
		go func(i int, kind DatasetKind) {
			defer wg.Done()
			result, changed, err := s.syncDataset(kind)
			outcomes[i] = outcome{kind: kind, changed: changed, result: result, err: err}
		}(i, kind)
	}
	wg.Wait()

	var lines []string
	for _, o := range outcomes {
		switch {
		case o.err != nil:
			log.Printf("Sync %s failed: %v", o.kind, o.err)
			lines = append(lines, fmt.Sprintf("%s: failed (%v)", o.kind, o.err))
		case !o.changed:
			log.Printf("Sync %s: no new version", o.kind)
		default:
			summary := FormatApplySummary(o.kind, o.result)
			log.Printf("Sync %s", summary)
			lines = append(lines, summary)
		}
	}
	log.Printf("Sync cycle completed in %s", time.Since(start).Round(time.Second))

	if len(lines) > 0 {
		s.notifier.PostSummary("Sync cycle: " + strings.Join(lines, "; "))
	}
}

// syncDataset runs the fetch -> resolve -> reconcile -> apply pipeline for
// one dataset and advances its watermark only after the whole cycle
// completed (individual record failures included). changed is false when
// the archive holds nothing newer than the watermark.
func (s *Syncer) syncDataset(kind DatasetKind) (ApplyResult, bool, error) {
	lease := s.leases[kind]
	if !lease.TryLock() {
		log.Printf("Sync %s still running, skipping this trigger", kind)
		return ApplyResult{}, false, nil
	}
	defer lease.Unlock()

	watermark, err := FindWatermark(s.db, kind)
	if err != nil {
		return ApplyResult{}, false, fmt.Errorf("reading watermark: %w", err)
	}

	fileURL := s.fileURL(kind)
	latest, err := s.archive.LatestFileVersion(fileURL)
	if err != nil {
		return ApplyResult{}, false, fmt.Errorf("listing versions: %w", err)
	}
	if latest == "" || latest == watermark {
		return ApplyResult{}, false, nil
	}

	// First cycle without a seed: reconcile the live file against the
	// newest archived snapshot instead of an unknown watermark.
	reference := watermark
	if reference == "" {
		reference = latest
	}
	refDate, err := ParseVersionTime(reference)
	if err != nil {
		return ApplyResult{}, false, err
	}

	result, err := s.reconcileDataset(kind, fileURL, reference, refDate)
	if err != nil {
		return ApplyResult{}, false, err
	}

	if err := SetWatermark(s.db, kind, latest); err != nil {
		return result, true, fmt.Errorf("advancing watermark: %w", err)
	}
	return result, true, nil
}

// reconcileDataset fetches the reference snapshot and the live file,
// resolves both, and applies the diff.
func (s *Syncer) reconcileDataset(kind DatasetKind, fileURL, refVersion string, refDate time.Time) (ApplyResult, error) {
	refRows, err := s.archive.FetchRows(fileURL, refVersion)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("fetching version %s: %w", refVersion, err)
	}
	liveRows, err := s.archive.FetchRows(fileURL, "")
	if err != nil {
		return ApplyResult{}, fmt.Errorf("fetching live file: %w", err)
	}
	now := time.Now().In(s.cfg.Location)

	switch kind {
	case DatasetCases:
		ref, cur := resolveVersions(refRows, liveRows, refDate, now, ResolveCase)
		plan := BuildPlan(ref, cur, deriveCaseDates)
		return ApplyCasePlan(s.db, plan, s.cfg.TolerateSet()), nil
	case DatasetBuildings:
		ref, cur := resolveVersions(refRows, liveRows, refDate, now, ResolveBuilding)
		plan := BuildPlan(ref, cur, nil)
		return ApplyBuildingPlan(s.db, plan), nil
	case DatasetClusters:
		ref, cur := resolveVersions(refRows, liveRows, refDate, now, ResolveCluster)
		plan := BuildPlan(ref, cur, nil)
		return ApplyClusterPlan(s.db, plan), nil
	}
	return ApplyResult{}, fmt.Errorf("unknown dataset %q", kind)
}

func resolveVersions[T keyed](refRows, curRows []RawRow, refDate, curDate time.Time, resolve func(RawRow) (T, error)) (Version[T], Version[T]) {
	refList, _ := resolveSnapshot(refRows, resolve)
	curList, _ := resolveSnapshot(curRows, resolve)
	return Version[T]{Date: refDate, List: refList}, Version[T]{Date: curDate, List: curList}
}

func (s *Syncer) fileURL(kind DatasetKind) string {
	switch kind {
	case DatasetCases:
		return s.cfg.CasesFileURL
	case DatasetBuildings:
		return s.cfg.BuildingsFileURL
	case DatasetClusters:
		return s.cfg.ClustersFileURL
	}
	return ""
}

// StartSyncScheduler runs RunCycle on the configured cron schedule.
// The schedule is a standard 5-field cron expression.
func StartSyncScheduler(cfg Config, syncer *Syncer) {
	schedule := strings.TrimSpace(cfg.SyncSchedule)
	if schedule == "" {
		log.Println("Sync disabled (sync_schedule not set)")
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Fatalf("Invalid sync_schedule '%s': %v", schedule, err)
	}
	log.Printf("Sync scheduled (cron: %s, timezone: %s)", schedule, cfg.Timezone)

	go func() {
		for {
			now := time.Now().In(cfg.Location)
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next sync at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			time.Sleep(wait)
			syncer.RunCycle()
		}
	}()
}
