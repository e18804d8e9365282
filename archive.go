package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidRange reports a version listing request whose date range the
// archive cannot serve.
var ErrInvalidRange = errors.New("invalid date range")

const versionTimeLayout = "20060102-1504"

// ParseVersionTime converts an archive version identifier like
// "20200301-1012" into its calendar timestamp. An unparseable identifier
// is a hard error; nothing downstream can work without the snapshot date.
func ParseVersionTime(version string) (time.Time, error) {
	t, err := time.Parse(versionTimeLayout, version)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid version identifier %q: %w", version, err)
	}
	return t, nil
}

// ArchiveClient talks to the government historical-archive API: listing
// the stored versions of a published file and fetching the file either at
// a specific version or live. It holds no business logic.
type ArchiveClient struct {
	base string
	now  func() time.Time
}

func NewArchiveClient(base string) *ArchiveClient {
	return &ArchiveClient{base: strings.TrimRight(base, "/"), now: time.Now}
}

func (c *ArchiveClient) yesterday() time.Time {
	t := c.now().AddDate(0, 0, -1)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ListFileVersions returns the version identifiers stored for fileURL
// between start and end (inclusive), sorted by their numeric timestamp
// prefix. Identifiers that do not parse as version timestamps are logged
// and skipped. The archive never returns the newest version unless asked with
// start = end = yesterday, so when end is yesterday an extra request picks
// it up.
func (c *ArchiveClient) ListFileVersions(fileURL string, start, end time.Time) ([]string, error) {
	ytd := c.yesterday()
	if start.After(end) {
		return nil, fmt.Errorf("%w: start %s after end %s", ErrInvalidRange,
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	if end.After(ytd) {
		return nil, fmt.Errorf("%w: end %s is after yesterday", ErrInvalidRange,
			end.Format("2006-01-02"))
	}

	timestamps, err := c.listVersions(fileURL, start, end)
	if err != nil {
		return nil, err
	}
	if sameDay(end, ytd) {
		extra, err := c.listVersions(fileURL, ytd, ytd)
		if err != nil {
			return nil, err
		}
		if len(extra) > 0 {
			timestamps = append(timestamps, extra[len(extra)-1])
		}
	}

	seen := make(map[string]bool)
	var unique []string
	for _, ts := range timestamps {
		if seen[ts] {
			continue
		}
		seen[ts] = true
		if _, err := ParseVersionTime(ts); err != nil {
			log.Printf("Skipping malformed version identifier %q for %s", ts, fileURL)
			continue
		}
		unique = append(unique, ts)
	}
	sort.SliceStable(unique, func(i, j int) bool {
		return versionPrefix(unique[i]) < versionPrefix(unique[j])
	})
	return unique, nil
}

// LatestFileVersion returns the newest archived version identifier for
// fileURL, or "" when the archive holds none.
func (c *ArchiveClient) LatestFileVersion(fileURL string) (string, error) {
	versions, err := c.ListFileVersions(fileURL, c.yesterday(), c.yesterday())
	if err != nil {
		return "", err
	}
	if len(versions) == 0 {
		return "", nil
	}
	return versions[len(versions)-1], nil
}

func (c *ArchiveClient) listVersions(fileURL string, start, end time.Time) ([]string, error) {
	query := url.Values{
		"url":   {fileURL},
		"start": {start.Format("20060102")},
		"end":   {end.Format("20060102")},
	}
	body, err := c.get(c.base + "/list-file-versions?" + query.Encode())
	if err != nil {
		return nil, err
	}
	var result struct {
		Timestamps []string `json:"timestamps"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decoding version list: %w", err)
	}
	return result.Timestamps, nil
}

// FetchRows retrieves the CSV file at a given archived version, or the
// live file when version is empty, and decodes it into header-keyed rows.
func (c *ArchiveClient) FetchRows(fileURL, version string) ([]RawRow, error) {
	target := fileURL
	if version != "" {
		query := url.Values{"url": {fileURL}, "time": {version}}
		target = c.base + "/get-file?" + query.Encode()
	}
	body, err := c.get(target)
	if err != nil {
		return nil, err
	}
	return decodeCSVRows(body)
}

func (c *ArchiveClient) get(target string) ([]byte, error) {
	req, err := http.NewRequest("GET", target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := externalHTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("archive API returned %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// decodeCSVRows maps each CSV record onto its header row. Short records
// are padded with empty values; the files are ragged in places.
func decodeCSVRows(data []byte) ([]RawRow, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	var rows []RawRow
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row: %w", err)
		}
		row := make(RawRow, len(header))
		for i, label := range header {
			if i < len(fields) {
				row[label] = fields[i]
			} else {
				row[label] = ""
			}
		}
		rows = append(rows, row)
	}
}

func versionPrefix(version string) int64 {
	prefix, _, _ := strings.Cut(version, "-")
	n, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
