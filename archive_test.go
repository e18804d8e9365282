package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// newTestArchive serves a fake historical-archive API plus the live files
// themselves. versions maps file URL -> archived version identifiers,
// files maps "url|version" (version "" = live) -> CSV body.
func newTestArchive(t *testing.T, versions map[string][]string, files map[string]string) (*httptest.Server, *ArchiveClient) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/list-file-versions", func(w http.ResponseWriter, r *http.Request) {
		fileURL := r.URL.Query().Get("url")
		_ = json.NewEncoder(w).Encode(map[string][]string{"timestamps": versions[fileURL]})
	})
	mux.HandleFunc("/get-file", func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("url") + "|" + r.URL.Query().Get("time")
		body, ok := files[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("/live/", func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path+"|"]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, NewArchiveClient(ts.URL)
}

func TestParseVersionTime(t *testing.T) {
	got, err := ParseVersionTime("20200301-1012")
	if err != nil {
		t.Fatalf("ParseVersionTime failed: %v", err)
	}
	want := time.Date(2020, 3, 1, 10, 12, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if _, err := ParseVersionTime("not-a-version"); err == nil {
		t.Fatal("expected error for garbage identifier")
	}
}

func TestListFileVersionsSortsAndDeduplicates(t *testing.T) {
	_, client := newTestArchive(t,
		map[string][]string{
			"file.csv": {"20200302-0930", "20200301-1012", "20200302-0930"},
		}, nil)

	start := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 3, 3, 0, 0, 0, 0, time.UTC)
	got, err := client.ListFileVersions("file.csv", start, end)
	if err != nil {
		t.Fatalf("ListFileVersions failed: %v", err)
	}
	want := []string{"20200301-1012", "20200302-0930"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestListFileVersionsDropsMalformedIdentifiers(t *testing.T) {
	_, client := newTestArchive(t,
		map[string][]string{
			"file.csv": {"garbage", "20200301-1012", "2020-03-02"},
		}, nil)

	start := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 3, 3, 0, 0, 0, 0, time.UTC)
	got, err := client.ListFileVersions("file.csv", start, end)
	if err != nil {
		t.Fatalf("ListFileVersions failed: %v", err)
	}
	if len(got) != 1 || got[0] != "20200301-1012" {
		t.Fatalf("expected only the well-formed identifier, got %v", got)
	}
}

func TestListFileVersionsInvalidRange(t *testing.T) {
	_, client := newTestArchive(t, nil, nil)

	start := time.Date(2020, 3, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	if _, err := client.ListFileVersions("file.csv", start, end); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for reversed range, got %v", err)
	}

	future := time.Now().AddDate(0, 0, 7)
	if _, err := client.ListFileVersions("file.csv", start, future); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for future end, got %v", err)
	}
}

func TestLatestFileVersion(t *testing.T) {
	_, client := newTestArchive(t,
		map[string][]string{
			"file.csv": {"20200301-1012", "20200302-0930"},
		}, nil)

	got, err := client.LatestFileVersion("file.csv")
	if err != nil {
		t.Fatalf("LatestFileVersion failed: %v", err)
	}
	if got != "20200302-0930" {
		t.Fatalf("expected newest version, got %q", got)
	}
}

func TestFetchRowsDecodesCSV(t *testing.T) {
	csvBody := "Case no., Report date ,Gender\n1,26/02/2020,M\n2,27/02/2020\n"
	_, client := newTestArchive(t, nil, map[string]string{
		"file.csv|20200301-1012": csvBody,
	})

	rows, err := client.FetchRows("file.csv", "20200301-1012")
	if err != nil {
		t.Fatalf("FetchRows failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0]["Case no."] != "1" {
		t.Fatalf("unexpected first row: %v", rows[0])
	}
	// labels keep their padding; the resolver trims them
	if rows[0][" Report date "] != "26/02/2020" {
		t.Fatalf("expected padded label preserved, got %v", rows[0])
	}
	// ragged short rows are padded with empty values
	if v, ok := rows[1]["Gender"]; !ok || v != "" {
		t.Fatalf("expected empty gender on short row, got %v", rows[1])
	}
}

func TestFetchRowsLiveFile(t *testing.T) {
	ts, client := newTestArchive(t, nil, map[string]string{
		"/live/cases.csv|": "Case no.\n7\n",
	})

	rows, err := client.FetchRows(ts.URL+"/live/cases.csv", "")
	if err != nil {
		t.Fatalf("FetchRows failed: %v", err)
	}
	if len(rows) != 1 || rows[0]["Case no."] != "7" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestFetchRowsErrorStatus(t *testing.T) {
	_, client := newTestArchive(t, nil, nil)
	if _, err := client.FetchRows("file.csv", "20200301-1012"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
