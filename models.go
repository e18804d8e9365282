package main

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// DatasetKind names one of the three CSV files the agency republishes.
type DatasetKind string

const (
	DatasetCases     DatasetKind = "cases"
	DatasetBuildings DatasetKind = "buildings"
	DatasetClusters  DatasetKind = "clusters"
)

type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

type CaseStatus string

const (
	StatusHospitalised     CaseStatus = "HOSPITALISED"
	StatusDischarged       CaseStatus = "DISCHARGED"
	StatusDeceased         CaseStatus = "DECEASED"
	StatusPendingAdmission CaseStatus = "PENDING_ADMISSION"
	StatusNoAdmission      CaseStatus = "NO_ADMISSION"
	StatusToBeProvided     CaseStatus = "TO_BE_PROVIDED"
)

type Classification string

const (
	ClassImported                Classification = "IMPORTED"
	ClassLinkedWithImported      Classification = "LINKED_WITH_IMPORTED"
	ClassPossiblyLocal           Classification = "POSSIBLY_LOCAL"
	ClassLinkedWithPossiblyLocal Classification = "LINKED_WITH_POSSIBLY_LOCAL"
	ClassLocal                   Classification = "LOCAL"
	ClassLinkedWithLocal         Classification = "LINKED_WITH_LOCAL"
)

// District is one of the 18 administrative regions, or DistrictUnknown when
// the raw value matches neither the canonical names nor the alias table.
type District string

const (
	DistrictCentralAndWestern District = "CENTRAL_AND_WESTERN"
	DistrictEastern           District = "EASTERN"
	DistrictIslands           District = "ISLANDS"
	DistrictKowloonCity       District = "KOWLOON_CITY"
	DistrictKwaiTsing         District = "KWAI_TSING"
	DistrictKwunTong          District = "KWUN_TONG"
	DistrictNorth             District = "NORTH"
	DistrictSaiKung           District = "SAI_KUNG"
	DistrictShaTin            District = "SHA_TIN"
	DistrictShamShuiPo        District = "SHAM_SHUI_PO"
	DistrictSouthern          District = "SOUTHERN"
	DistrictTaiPo             District = "TAI_PO"
	DistrictTsuenWan          District = "TSUEN_WAN"
	DistrictTuenMun           District = "TUEN_MUN"
	DistrictWanChai           District = "WAN_CHAI"
	DistrictWongTaiSin        District = "WONG_TAI_SIN"
	DistrictYauTsimMong       District = "YAU_TSIM_MONG"
	DistrictYuenLong          District = "YUEN_LONG"
	DistrictUnknown           District = "NA"
)

// Flag is a tri-state boolean for fields the source reports as
// yes/no/unknown. The zero value is FlagUnknown.
type Flag int8

const (
	FlagUnknown Flag = iota
	FlagNo
	FlagYes
)

func (f Flag) String() string {
	switch f {
	case FlagYes:
		return "yes"
	case FlagNo:
		return "no"
	}
	return "unknown"
}

// NullBool maps the flag onto a nullable SQL boolean (unknown -> NULL).
func (f Flag) NullBool() sql.NullBool {
	if f == FlagUnknown {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: f == FlagYes, Valid: true}
}

func flagFromNullBool(b sql.NullBool) Flag {
	if !b.Valid {
		return FlagUnknown
	}
	if b.Bool {
		return FlagYes
	}
	return FlagNo
}

// Case is one confirmed/probable case row. The admission, discharge and
// decease dates never appear in the raw file; they are stamped by the
// reconciler when a status transition is observed.
type Case struct {
	ID             int
	Age            int
	ReportDate     time.Time
	OnsetDate      *time.Time
	Gender         Gender
	Status         CaseStatus
	Classification Classification
	Confirmed      bool
	HKResident     Flag
	Asymptomatic   Flag
	AdmissionDate  *time.Time
	DischargeDate  *time.Time
	DeceaseDate    *time.Time
}

func (c Case) Key() string { return strconv.Itoa(c.ID) }

func (c Case) Equal(o Case) bool {
	return c.ID == o.ID &&
		c.Age == o.Age &&
		c.ReportDate.Equal(o.ReportDate) &&
		equalTimePtr(c.OnsetDate, o.OnsetDate) &&
		c.Gender == o.Gender &&
		c.Status == o.Status &&
		c.Classification == o.Classification &&
		c.Confirmed == o.Confirmed &&
		c.HKResident == o.HKResident &&
		c.Asymptomatic == o.Asymptomatic &&
		equalTimePtr(c.AdmissionDate, o.AdmissionDate) &&
		equalTimePtr(c.DischargeDate, o.DischargeDate) &&
		equalTimePtr(c.DeceaseDate, o.DeceaseDate)
}

// Building is one visited-building row. It has no external ID; the
// (name, district) pair is its identity across snapshots.
type Building struct {
	Name              string
	District          District
	LastResidenceDate *time.Time
	IsResidential     bool
	Cases             []int
	// Note keeps the raw related-cases text verbatim when no case numbers
	// could be parsed out of it.
	Note string
}

func (b Building) Key() string { return fmt.Sprintf("%s, %s", b.Name, b.District) }

func (b Building) Equal(o Building) bool {
	return b.Name == o.Name &&
		b.District == o.District &&
		equalTimePtr(b.LastResidenceDate, o.LastResidenceDate) &&
		b.IsResidential == o.IsResidential &&
		equalIntSlice(b.Cases, o.Cases) &&
		b.Note == o.Note
}

// Cluster is one outbreak-cluster row, identified by its normalized name.
// Case numbers keep the order and duplicates of the source file.
type Cluster struct {
	Name  string
	Cases []int
}

func (c Cluster) Key() string { return c.Name }

func (c Cluster) Equal(o Cluster) bool {
	return c.Name == o.Name && equalIntSlice(c.Cases, o.Cases)
}

// Version is one snapshot of a dataset: the full record list as published
// at a labeled point in time.
type Version[T any] struct {
	Date time.Time
	List []T
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func equalIntSlice(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
