package main

import (
	"testing"
	"time"
)

func TestSeedReplaysVersionHistory(t *testing.T) {
	db := newTestDB(t)

	versions := map[string][]string{}
	files := map[string]string{}
	server, archive := newTestArchive(t, versions, files)
	live := server.URL + "/live/cases.csv"

	versions[live] = []string{"20200301-1012", "20200302-0930"}
	files[live+"|20200301-1012"] = casesCSVHeader + caseCSVLine("1", "Pending admission")
	files[live+"|20200302-0930"] = casesCSVHeader +
		caseCSVLine("1", "Hospitalised") + caseCSVLine("2", "Hospitalised")
	files["/live/cases.csv|"] = casesCSVHeader +
		caseCSVLine("1", "Discharged") + caseCSVLine("2", "Hospitalised")

	cfg := Config{
		CasesFileURL: live,
		SeedStart:    time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC),
		Location:     time.UTC,
	}
	err := seedVersioned(cfg, db, archive, DatasetCases, live, ResolveCase,
		deriveCaseDates, func(plan Plan[Case]) ApplyResult {
			return ApplyCasePlan(db, plan, nil)
		})
	if err != nil {
		t.Fatalf("seedVersioned failed: %v", err)
	}

	// case 1: inserted pending, admitted in the second snapshot,
	// discharged in the live file
	got, err := GetCase(db, 1)
	if err != nil {
		t.Fatalf("GetCase failed: %v", err)
	}
	if got.Status != StatusDischarged {
		t.Fatalf("expected discharged, got %s", got.Status)
	}
	admission := time.Date(2020, 3, 2, 9, 30, 0, 0, time.UTC)
	if got.AdmissionDate == nil || !got.AdmissionDate.Equal(admission) {
		t.Fatalf("expected admission stamped with snapshot date %v, got %v", admission, got.AdmissionDate)
	}
	// the live file has no version identifier; its date is the day after
	// the newest archived snapshot
	discharge := time.Date(2020, 3, 3, 9, 30, 0, 0, time.UTC)
	if got.DischargeDate == nil || !got.DischargeDate.Equal(discharge) {
		t.Fatalf("expected discharge %v, got %v", discharge, got.DischargeDate)
	}

	// case 2 first appears in the second snapshot and never transitions
	got, err = GetCase(db, 2)
	if err != nil {
		t.Fatalf("GetCase failed: %v", err)
	}
	if got.AdmissionDate != nil {
		t.Fatalf("case 2 never transitioned, got admission %v", got.AdmissionDate)
	}

	watermark, err := FindWatermark(db, DatasetCases)
	if err != nil {
		t.Fatalf("FindWatermark failed: %v", err)
	}
	if watermark != "20200302-0930" {
		t.Fatalf("expected watermark at newest archived version, got %q", watermark)
	}
}

func TestSeedClustersLoadsLiveList(t *testing.T) {
	db := newTestDB(t)

	versions := map[string][]string{}
	files := map[string]string{}
	server, archive := newTestArchive(t, versions, files)
	live := server.URL + "/live/clusters.csv"
	versions[live] = []string{"20200401-1200"}
	files["/live/clusters.csv|"] = "Cluster,Involved case number\nGym Cluster,\"123, 124\"\n"

	cfg := Config{ClustersFileURL: live, Location: time.UTC}
	if err := seedClusters(cfg, db, archive); err != nil {
		t.Fatalf("seedClusters failed: %v", err)
	}

	got, err := GetCluster(db, "gym cluster")
	if err != nil {
		t.Fatalf("GetCluster failed: %v", err)
	}
	if !equalIntSlice(got.Cases, []int{123, 124}) {
		t.Fatalf("unexpected cases: %v", got.Cases)
	}

	watermark, err := FindWatermark(db, DatasetClusters)
	if err != nil || watermark != "20200401-1200" {
		t.Fatalf("expected cluster watermark set, got %q/%v", watermark, err)
	}
}
