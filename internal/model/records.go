package model

import "time"

// TextVersionRef is one text version listed in a bill status document
type TextVersionRef struct {
	URL  *string    `json:"url"`  // XML format URL, nil when the version has no XML rendition
	Date *time.Time `json:"date"` // nil for undated versions
	Type string     `json:"type"` // e.g. "Introduced in House"
}

// BillStatusXMLRecord is one row of the raw bill status table
type BillStatusXMLRecord struct {
	LegisID     string `parquet:"legis_id" json:"legis_id"`
	CongressNum int    `parquet:"congress_num" json:"congress_num"`
	LegisType   string `parquet:"legis_type" json:"legis_type"`
	LegisNum    int    `parquet:"legis_num" json:"legis_num"`
	XML         string `parquet:"xml" json:"xml"`
}

// Sponsor is a bill sponsor as listed in the bill status document
type Sponsor struct {
	BioguideID string `parquet:"bioguide_id" json:"bioguide_id"`
	FullName   string `parquet:"full_name" json:"full_name"`
	Party      string `parquet:"party" json:"party"`
	State      string `parquet:"state" json:"state"`
}

// BillStatusRecord is one row of the parsed bill status table.
// The raw columns are carried through so the parsed table is self-contained.
type BillStatusRecord struct {
	LegisID     string `parquet:"legis_id" json:"legis_id"`
	CongressNum int    `parquet:"congress_num" json:"congress_num"`
	LegisType   string `parquet:"legis_type" json:"legis_type"`
	LegisNum    int    `parquet:"legis_num" json:"legis_num"`
	XML         string `parquet:"xml" json:"xml"`

	BillType         string     `parquet:"bill_type" json:"bill_type"`
	BillNumber       string     `parquet:"bill_number" json:"bill_number"`
	Title            string     `parquet:"title" json:"title"`
	OriginChamber    string     `parquet:"origin_chamber" json:"origin_chamber"`
	IntroducedDate   *time.Time `parquet:"introduced_date,optional" json:"introduced_date"`
	UpdateDate       *time.Time `parquet:"update_date,optional" json:"update_date"`
	PolicyArea       string     `parquet:"policy_area" json:"policy_area"`
	Sponsors         []Sponsor  `parquet:"sponsors,list" json:"sponsors"`
	CosponsorCount   int        `parquet:"cosponsor_count" json:"cosponsor_count"`
	ActionCount      int        `parquet:"action_count" json:"action_count"`
	LatestActionDate *time.Time `parquet:"latest_action_date,optional" json:"latest_action_date"`
	LatestActionText string     `parquet:"latest_action_text" json:"latest_action_text"`
	Subjects         []string   `parquet:"subjects,list" json:"subjects"`
	TextVersionCount int        `parquet:"text_version_count" json:"text_version_count"`
}

// TextVersionRecord is one row of the text version table, one per physical
// text version document. FileName is the join key.
type TextVersionRecord struct {
	FileName string `parquet:"file_name" json:"file_name"`
	XML      string `parquet:"xml" json:"xml"`
	LegisID  string `parquet:"legis_id,optional" json:"legis_id,omitempty"`
	XMLType  string `parquet:"xml_type,optional" json:"xml_type,omitempty"`
	Lastmod  string `parquet:"lastmod,optional" json:"lastmod,omitempty"`
}

// JoinedTextVersion is a text version record enriched with the fields of
// the bill status reference that pointed at it
type JoinedTextVersion struct {
	FileName string `parquet:"file_name" json:"file_name"`
	XML      string `parquet:"xml" json:"xml"`
	LegisID  string `parquet:"legis_id,optional" json:"legis_id,omitempty"`
	XMLType  string `parquet:"xml_type,optional" json:"xml_type,omitempty"`
	Lastmod  string `parquet:"lastmod,optional" json:"lastmod,omitempty"`

	BSDate *time.Time `parquet:"bs_date,optional" json:"bs_date"`
	BSType string     `parquet:"bs_type" json:"bs_type"`
	URL    string     `parquet:"url" json:"url"`
	TextV1 string     `parquet:"text_v1" json:"text_v1"`
}

// NewJoinedTextVersion copies every column of tv into a joined version
func NewJoinedTextVersion(tv TextVersionRecord) JoinedTextVersion {
	return JoinedTextVersion{
		FileName: tv.FileName,
		XML:      tv.XML,
		LegisID:  tv.LegisID,
		XMLType:  tv.XMLType,
		Lastmod:  tv.Lastmod,
	}
}

// UnifiedBillRecord is one row of the unified table: a parsed bill status
// with its resolved text versions, most recent first
type UnifiedBillRecord struct {
	LegisID     string `parquet:"legis_id" json:"legis_id"`
	CongressNum int    `parquet:"congress_num" json:"congress_num"`
	LegisType   string `parquet:"legis_type" json:"legis_type"`
	LegisNum    int    `parquet:"legis_num" json:"legis_num"`
	XML         string `parquet:"xml" json:"xml"`

	BillType         string     `parquet:"bill_type" json:"bill_type"`
	BillNumber       string     `parquet:"bill_number" json:"bill_number"`
	Title            string     `parquet:"title" json:"title"`
	OriginChamber    string     `parquet:"origin_chamber" json:"origin_chamber"`
	IntroducedDate   *time.Time `parquet:"introduced_date,optional" json:"introduced_date"`
	UpdateDate       *time.Time `parquet:"update_date,optional" json:"update_date"`
	PolicyArea       string     `parquet:"policy_area" json:"policy_area"`
	Sponsors         []Sponsor  `parquet:"sponsors,list" json:"sponsors"`
	CosponsorCount   int        `parquet:"cosponsor_count" json:"cosponsor_count"`
	ActionCount      int        `parquet:"action_count" json:"action_count"`
	LatestActionDate *time.Time `parquet:"latest_action_date,optional" json:"latest_action_date"`
	LatestActionText string     `parquet:"latest_action_text" json:"latest_action_text"`
	Subjects         []string   `parquet:"subjects,list" json:"subjects"`
	TextVersionCount int        `parquet:"text_version_count" json:"text_version_count"`

	TextVersions []JoinedTextVersion `parquet:"text_versions,list" json:"text_versions"`
}

// NewUnifiedBillRecord attaches text versions to every column of bs
func NewUnifiedBillRecord(bs BillStatusRecord, tvs []JoinedTextVersion) UnifiedBillRecord {
	return UnifiedBillRecord{
		LegisID:          bs.LegisID,
		CongressNum:      bs.CongressNum,
		LegisType:        bs.LegisType,
		LegisNum:         bs.LegisNum,
		XML:              bs.XML,
		BillType:         bs.BillType,
		BillNumber:       bs.BillNumber,
		Title:            bs.Title,
		OriginChamber:    bs.OriginChamber,
		IntroducedDate:   bs.IntroducedDate,
		UpdateDate:       bs.UpdateDate,
		PolicyArea:       bs.PolicyArea,
		Sponsors:         bs.Sponsors,
		CosponsorCount:   bs.CosponsorCount,
		ActionCount:      bs.ActionCount,
		LatestActionDate: bs.LatestActionDate,
		LatestActionText: bs.LatestActionText,
		Subjects:         bs.Subjects,
		TextVersionCount: bs.TextVersionCount,
		TextVersions:     tvs,
	}
}
