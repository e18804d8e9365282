package main

import (
	"strings"
)

const (
	colBuildingName  = "Building name"
	colDistrict      = "District"
	colLastResidence = "Last date of residence of the case(s)"
	colRelatedCases  = "Related probable/confirmed cases"
)

// One building name is misspelled in several historical snapshots; it is
// remapped so both spellings resolve to the same identity.
const misspelledMaylun = "maylun apartments, 1-25 shu kuk street (non"
const canonicalMaylun = "Maylun Apartments(Fook Wai Ching She), 1-25 Shu Kuk Street"

var nonResidentialSuffixes = []string{
	"(non residential building)",
	"(non-residential)",
}

// ResolveBuilding converts one raw building row into a typed Building
// record. Name and district are required; an unrecognized district keeps
// the row (mapped to DistrictUnknown) since district spelling is too
// unreliable to fail on.
func ResolveBuilding(raw RawRow) (Building, error) {
	row := trimKeys(raw)
	rawName := row[colBuildingName]
	if strings.TrimSpace(rawName) == "" {
		return Building{}, rowErrorf(RowErrMissingField, colBuildingName, "blank")
	}
	if strings.TrimSpace(row[colDistrict]) == "" {
		return Building{}, rowErrorf(RowErrMissingField, colDistrict, "blank")
	}

	cases := parseCaseNumbers(row[colRelatedCases])
	note := ""
	if len(cases) == 0 {
		note = row[colRelatedCases]
	}

	building := Building{
		Name:          resolveBuildingName(rawName),
		District:      resolveDistrict(row[colDistrict]),
		IsResidential: !hasNonResidentialSuffix(rawName),
		Cases:         cases,
		Note:          note,
	}
	if date, err := parseDayMonthYear(row[colLastResidence]); err == nil {
		building.LastResidenceDate = &date
	}
	return building, nil
}

func resolveBuildingName(name string) string {
	if strings.Contains(strings.ToLower(name), misspelledMaylun) {
		return canonicalMaylun
	}
	for _, suffix := range nonResidentialSuffixes {
		name = replaceAllFold(name, suffix, "")
	}
	return strings.TrimSpace(name)
}

func hasNonResidentialSuffix(name string) bool {
	return containsAnyFold(name, nonResidentialSuffixes...)
}

var districtAliases = map[string]District{
	"YAU_TSIM_MON":       DistrictYauTsimMong,
	"YUEN_LONG_DISTRICT": DistrictYuenLong,
	"CENTRAL_WESTERN":    DistrictCentralAndWestern,
	"KOWLOON_C_ITY":      DistrictKowloonCity,
	"SHATIN":             DistrictShaTin,
	"ISLAND":             DistrictIslands,
	"SHUM_SHUI_PO":       DistrictShamShuiPo,
	"WONG_TAI_S_IN":      DistrictWongTaiSin,
	// street addresses that leaked into the district column
	"8_HYSAN_AVENUE": DistrictWanChai,
	"TAI_HANG":       DistrictWanChai,
}

var canonicalDistricts = map[District]bool{
	DistrictCentralAndWestern: true,
	DistrictEastern:           true,
	DistrictIslands:           true,
	DistrictKowloonCity:       true,
	DistrictKwaiTsing:         true,
	DistrictKwunTong:          true,
	DistrictNorth:             true,
	DistrictSaiKung:           true,
	DistrictShaTin:            true,
	DistrictShamShuiPo:        true,
	DistrictSouthern:          true,
	DistrictTaiPo:             true,
	DistrictTsuenWan:          true,
	DistrictTuenMun:           true,
	DistrictWanChai:           true,
	DistrictWongTaiSin:        true,
	DistrictYauTsimMong:       true,
	DistrictYuenLong:          true,
}

// resolveDistrict normalizes the raw spelling to UPPER_SNAKE_CASE, then
// matches the canonical 18 districts followed by the known alias/typo
// table. Anything else maps to DistrictUnknown rather than failing.
func resolveDistrict(str string) District {
	key := districtKey(str)
	if canonicalDistricts[District(key)] {
		return District(key)
	}
	if d, ok := districtAliases[key]; ok {
		return d
	}
	return DistrictUnknown
}

// districtKey collapses runs of non-alphanumeric characters into single
// underscores and upper-cases the result ("Yau Tsim Mon" -> "YAU_TSIM_MON").
func districtKey(str string) string {
	var parts []string
	var current strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(str)) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			current.WriteRune(r)
			continue
		}
		if current.Len() > 0 {
			parts = append(parts, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return strings.Join(parts, "_")
}
