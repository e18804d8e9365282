package main

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS cases (
		id             INTEGER PRIMARY KEY,
		age            INTEGER NOT NULL,
		report_date    DATETIME NOT NULL,
		onset_date     DATETIME,
		gender         TEXT NOT NULL,
		status         TEXT NOT NULL,
		classification TEXT NOT NULL,
		confirmed      BOOLEAN NOT NULL,
		hk_resident    BOOLEAN,
		asymptomatic   BOOLEAN,
		admission_date DATETIME,
		discharge_date DATETIME,
		decease_date   DATETIME,
		created_at     DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_cases_report_date ON cases(report_date);
	CREATE INDEX IF NOT EXISTS idx_cases_status ON cases(status);

	CREATE TABLE IF NOT EXISTS buildings (
		name                TEXT NOT NULL,
		district            TEXT NOT NULL,
		last_residence_date DATETIME,
		is_residential      BOOLEAN NOT NULL,
		note                TEXT NOT NULL DEFAULT '',
		created_at          DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (name, district)
	);
	CREATE TABLE IF NOT EXISTS building_cases (
		building_name TEXT NOT NULL,
		district      TEXT NOT NULL,
		case_no       INTEGER NOT NULL,
		PRIMARY KEY (building_name, district, case_no)
	);
	CREATE INDEX IF NOT EXISTS idx_building_cases_case ON building_cases(case_no);

	CREATE TABLE IF NOT EXISTS clusters (
		name       TEXT PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS cluster_cases (
		cluster_name TEXT NOT NULL,
		position     INTEGER NOT NULL,
		case_no      INTEGER NOT NULL,
		PRIMARY KEY (cluster_name, position)
	);
	CREATE INDEX IF NOT EXISTS idx_cluster_cases_case ON cluster_cases(case_no);

	CREATE TABLE IF NOT EXISTS watermarks (
		dataset    TEXT PRIMARY KEY,
		version    TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err = db.Exec(schema)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func InsertCase(db *sql.DB, c Case) error {
	_, err := db.Exec(
		`INSERT INTO cases (id, age, report_date, onset_date, gender, status, classification,
		                    confirmed, hk_resident, asymptomatic)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Age, c.ReportDate, nullTime(c.OnsetDate), string(c.Gender), string(c.Status),
		string(c.Classification), c.Confirmed, c.HKResident.NullBool(), c.Asymptomatic.NullBool(),
	)
	return err
}

// derivedColumns is the closed set of columns an update may stamp; anything
// else in an override map is a programming error.
var derivedColumns = map[string]bool{
	derivedAdmissionDate: true,
	derivedDischargeDate: true,
	derivedDeceaseDate:   true,
}

// UpdateCase rewrites the base columns of an existing case and stamps only
// the derived date columns named in derived. Derived columns not named are
// left as they are, so earlier transition dates survive later updates.
func UpdateCase(db *sql.DB, c Case, derived map[string]time.Time) error {
	query := `UPDATE cases SET age = ?, report_date = ?, onset_date = ?, gender = ?,
	          status = ?, classification = ?, confirmed = ?, hk_resident = ?, asymptomatic = ?`
	args := []any{
		c.Age, c.ReportDate, nullTime(c.OnsetDate), string(c.Gender), string(c.Status),
		string(c.Classification), c.Confirmed, c.HKResident.NullBool(), c.Asymptomatic.NullBool(),
	}
	for column, date := range derived {
		if !derivedColumns[column] {
			return fmt.Errorf("unknown derived column %q", column)
		}
		query += fmt.Sprintf(", %s = ?", column)
		args = append(args, date)
	}
	query += " WHERE id = ?"
	args = append(args, c.ID)

	res, err := db.Exec(query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("case %d not found", c.ID)
	}
	return nil
}

func GetCase(db *sql.DB, id int) (Case, error) {
	var c Case
	var onset, admission, discharge, decease sql.NullTime
	var resident, asymptomatic sql.NullBool
	err := db.QueryRow(
		`SELECT id, age, report_date, onset_date, gender, status, classification,
		        confirmed, hk_resident, asymptomatic, admission_date, discharge_date, decease_date
		 FROM cases WHERE id = ?`,
		id,
	).Scan(
		&c.ID, &c.Age, &c.ReportDate, &onset, &c.Gender, &c.Status, &c.Classification,
		&c.Confirmed, &resident, &asymptomatic, &admission, &discharge, &decease,
	)
	if err != nil {
		return Case{}, err
	}
	c.OnsetDate = timePtr(onset)
	c.AdmissionDate = timePtr(admission)
	c.DischargeDate = timePtr(discharge)
	c.DeceaseDate = timePtr(decease)
	c.HKResident = flagFromNullBool(resident)
	c.Asymptomatic = flagFromNullBool(asymptomatic)
	return c, nil
}

// UpsertBuilding writes a building and replaces its case links in one
// transaction, keyed by (name, district).
func UpsertBuilding(db *sql.DB, b Building) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO buildings (name, district, last_residence_date, is_residential, note)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name, district) DO UPDATE SET
		   last_residence_date = excluded.last_residence_date,
		   is_residential      = excluded.is_residential,
		   note                = excluded.note`,
		b.Name, string(b.District), nullTime(b.LastResidenceDate), b.IsResidential, b.Note,
	)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`DELETE FROM building_cases WHERE building_name = ? AND district = ?`,
		b.Name, string(b.District))
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO building_cases (building_name, district, case_no) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, caseNo := range b.Cases {
		if _, err := stmt.Exec(b.Name, string(b.District), caseNo); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func GetBuilding(db *sql.DB, name string, district District) (Building, error) {
	var b Building
	var lastResidence sql.NullTime
	err := db.QueryRow(
		`SELECT name, district, last_residence_date, is_residential, note
		 FROM buildings WHERE name = ? AND district = ?`,
		name, string(district),
	).Scan(&b.Name, &b.District, &lastResidence, &b.IsResidential, &b.Note)
	if err != nil {
		return Building{}, err
	}
	b.LastResidenceDate = timePtr(lastResidence)

	rows, err := db.Query(
		`SELECT case_no FROM building_cases WHERE building_name = ? AND district = ? ORDER BY case_no`,
		name, string(district),
	)
	if err != nil {
		return Building{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var caseNo int
		if err := rows.Scan(&caseNo); err != nil {
			return Building{}, err
		}
		b.Cases = append(b.Cases, caseNo)
	}
	return b, rows.Err()
}

// UpsertCluster writes a cluster and replaces its case list in one
// transaction, preserving source order and duplicates.
func UpsertCluster(db *sql.DB, c Cluster) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT OR IGNORE INTO clusters (name) VALUES (?)`, c.Name); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM cluster_cases WHERE cluster_name = ?`, c.Name); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO cluster_cases (cluster_name, position, case_no) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, caseNo := range c.Cases {
		if _, err := stmt.Exec(c.Name, i, caseNo); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func GetCluster(db *sql.DB, name string) (Cluster, error) {
	var c Cluster
	err := db.QueryRow(`SELECT name FROM clusters WHERE name = ?`, name).Scan(&c.Name)
	if err != nil {
		return Cluster{}, err
	}
	rows, err := db.Query(
		`SELECT case_no FROM cluster_cases WHERE cluster_name = ? ORDER BY position`, name)
	if err != nil {
		return Cluster{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var caseNo int
		if err := rows.Scan(&caseNo); err != nil {
			return Cluster{}, err
		}
		c.Cases = append(c.Cases, caseNo)
	}
	return c, rows.Err()
}

// FindWatermark returns the last reconciled version for a dataset, or ""
// when the dataset has never completed a cycle.
func FindWatermark(db *sql.DB, dataset DatasetKind) (string, error) {
	var version string
	err := db.QueryRow(`SELECT version FROM watermarks WHERE dataset = ?`, string(dataset)).Scan(&version)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return version, err
}

func SetWatermark(db *sql.DB, dataset DatasetKind, version string) error {
	_, err := db.Exec(
		`INSERT INTO watermarks (dataset, version, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(dataset) DO UPDATE SET version = excluded.version, updated_at = CURRENT_TIMESTAMP`,
		string(dataset), version,
	)
	return err
}

// ResetAll clears every record and watermark table.
func ResetAll(db *sql.DB) error {
	for _, table := range []string{
		"cluster_cases", "clusters", "building_cases", "buildings", "cases", "watermarks",
	} {
		if _, err := db.Exec("DELETE FROM " + table); err != nil {
			return err
		}
	}
	return nil
}
