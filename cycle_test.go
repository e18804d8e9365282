package main

import (
	"database/sql"
	"testing"
	"time"
)

const casesCSVHeader = "Case no.,Report date,Date of onset,Gender,Age," +
	"Hospitalised/Discharged/Deceased,HK/Non-HK resident,Case classification*,Confirmed/probable\n"

func caseCSVLine(id, status string) string {
	return id + ",26/02/2020,21/02/2020,M,39," + status + ",HK resident,Local case,Confirmed\n"
}

func newTestSyncer(t *testing.T, db *sql.DB, archiveURL string, liveURL string) *Syncer {
	t.Helper()
	cfg := Config{
		CasesFileURL:     liveURL,
		BuildingsFileURL: liveURL,
		ClustersFileURL:  liveURL,
		Location:         time.UTC,
	}
	return NewSyncer(cfg, db, NewArchiveClient(archiveURL), nil)
}

func TestSyncDatasetReconcilesAgainstWatermark(t *testing.T) {
	db := newTestDB(t)

	// one server carries both the archive API and the live file
	versions := map[string][]string{}
	files := map[string]string{}
	server, _ := newTestArchive(t, versions, files)
	live := server.URL + "/live/cases.csv"
	versions[live] = []string{"20200301-1012", "20200302-0930"}
	files[live+"|20200301-1012"] = casesCSVHeader + caseCSVLine("1", "Pending admission")
	files["/live/cases.csv|"] = casesCSVHeader + caseCSVLine("1", "Hospitalised") + caseCSVLine("2", "To be provided")

	syncer := newTestSyncer(t, db, server.URL, live)

	// the store already holds case 1 at its watermark state
	if err := InsertCase(db, caseFixture(1, StatusPendingAdmission)); err != nil {
		t.Fatalf("InsertCase failed: %v", err)
	}
	if err := SetWatermark(db, DatasetCases, "20200301-1012"); err != nil {
		t.Fatalf("SetWatermark failed: %v", err)
	}

	result, changed, err := syncer.syncDataset(DatasetCases)
	if err != nil {
		t.Fatalf("syncDataset failed: %v", err)
	}
	if !changed {
		t.Fatal("expected the dataset to change")
	}
	if result.Inserted != 1 || result.Updated != 1 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	got, err := GetCase(db, 1)
	if err != nil {
		t.Fatalf("GetCase failed: %v", err)
	}
	if got.Status != StatusHospitalised {
		t.Fatalf("expected hospitalised, got %s", got.Status)
	}
	if got.AdmissionDate == nil {
		t.Fatal("expected admission date inferred from the moment of detection")
	}
	if _, err := GetCase(db, 2); err != nil {
		t.Fatalf("case 2 should have been inserted: %v", err)
	}

	watermark, err := FindWatermark(db, DatasetCases)
	if err != nil {
		t.Fatalf("FindWatermark failed: %v", err)
	}
	if watermark != "20200302-0930" {
		t.Fatalf("expected watermark advanced, got %q", watermark)
	}
}

func TestSyncDatasetNoNewVersionIsNoop(t *testing.T) {
	db := newTestDB(t)
	versions := map[string][]string{}
	files := map[string]string{}
	server, _ := newTestArchive(t, versions, files)
	live := server.URL + "/live/cases.csv"
	versions[live] = []string{"20200301-1012"}

	if err := SetWatermark(db, DatasetCases, "20200301-1012"); err != nil {
		t.Fatalf("SetWatermark failed: %v", err)
	}

	syncer := newTestSyncer(t, db, server.URL, live)
	_, changed, err := syncer.syncDataset(DatasetCases)
	if err != nil {
		t.Fatalf("syncDataset failed: %v", err)
	}
	if changed {
		t.Fatal("unchanged version must be a no-op")
	}
}

func TestSyncDatasetFetchFailureLeavesWatermark(t *testing.T) {
	db := newTestDB(t)
	versions := map[string][]string{}
	files := map[string]string{}
	server, _ := newTestArchive(t, versions, files)
	live := server.URL + "/live/cases.csv"
	versions[live] = []string{"20200302-0930"}
	// no file bodies stored: both fetches will 404

	if err := SetWatermark(db, DatasetCases, "20200301-1012"); err != nil {
		t.Fatalf("SetWatermark failed: %v", err)
	}

	syncer := newTestSyncer(t, db, server.URL, live)
	_, _, err := syncer.syncDataset(DatasetCases)
	if err == nil {
		t.Fatal("expected fetch failure to abort the dataset's cycle")
	}

	watermark, _ := FindWatermark(db, DatasetCases)
	if watermark != "20200301-1012" {
		t.Fatalf("watermark must not advance on failure, got %q", watermark)
	}
}

func TestSyncDatasetSkipsWhileLeased(t *testing.T) {
	db := newTestDB(t)
	server, _ := newTestArchive(t, map[string][]string{}, map[string]string{})
	syncer := newTestSyncer(t, db, server.URL, server.URL+"/live/cases.csv")

	syncer.leases[DatasetCases].Lock()
	defer syncer.leases[DatasetCases].Unlock()

	_, changed, err := syncer.syncDataset(DatasetCases)
	if err != nil {
		t.Fatalf("syncDataset failed: %v", err)
	}
	if changed {
		t.Fatal("a leased dataset must be skipped, not queued")
	}
}
