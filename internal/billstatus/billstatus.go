// Package billstatus parses govinfo BILLSTATUS XML documents.
//
// Both the legacy schema (billType, billNumber, subjects/billSubjects) and
// the current one (type, number, subjects/legislativeSubjects) are accepted.
package billstatus

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/hyperdemocracy/congressprep/internal/model"
	"golang.org/x/net/html/charset"
)

// BillStatus is the structured form of one bill status document
type BillStatus struct {
	Congress         int
	Type             string
	Number           string
	Title            string
	OriginChamber    string
	IntroducedDate   *time.Time
	UpdateDate       *time.Time
	PolicyArea       string
	Sponsors         []model.Sponsor
	CosponsorCount   int
	ActionCount      int
	LatestActionDate *time.Time
	LatestActionText string
	Subjects         []string
	TextVersions     []model.TextVersionRef
}

type xmlDocument struct {
	XMLName xml.Name `xml:"billStatus"`
	Bill    xmlBill  `xml:"bill"`
}

type xmlBill struct {
	Congress       int    `xml:"congress"`
	Type           string `xml:"type"`
	LegacyType     string `xml:"billType"`
	Number         string `xml:"number"`
	LegacyNumber   string `xml:"billNumber"`
	Title          string `xml:"title"`
	OriginChamber  string `xml:"originChamber"`
	IntroducedDate string `xml:"introducedDate"`
	UpdateDate     string `xml:"updateDate"`

	PolicyArea       string           `xml:"policyArea>name"`
	LegacyPolicyArea string           `xml:"subjects>billSubjects>policyArea>name"`
	Subjects         []xmlName        `xml:"subjects>legislativeSubjects>item"`
	LegacySubjects   []xmlName        `xml:"subjects>billSubjects>legislativeSubjects>item"`
	Sponsors         []xmlPerson      `xml:"sponsors>item"`
	Cosponsors       []xmlPerson      `xml:"cosponsors>item"`
	Actions          []xmlAction      `xml:"actions>item"`
	LatestAction     xmlAction        `xml:"latestAction"`
	TextVersions     []xmlTextVersion `xml:"textVersions>item"`
}

type xmlName struct {
	Name string `xml:"name"`
}

type xmlPerson struct {
	BioguideID string `xml:"bioguideId"`
	FullName   string `xml:"fullName"`
	Party      string `xml:"party"`
	State      string `xml:"state"`
}

type xmlAction struct {
	ActionDate string `xml:"actionDate"`
	Text       string `xml:"text"`
}

type xmlTextVersion struct {
	Type    string      `xml:"type"`
	Date    string      `xml:"date"`
	Formats []xmlFormat `xml:"formats>item"`
}

type xmlFormat struct {
	URL string `xml:"url"`
}

// Parser decodes bill status documents
type Parser struct{}

// NewParser creates a new bill status parser
func NewParser() *Parser {
	return &Parser{}
}

// Parse decodes a raw bill status document
func (p *Parser) Parse(doc string) (*BillStatus, error) {
	decoder := xml.NewDecoder(strings.NewReader(doc))
	decoder.CharsetReader = charset.NewReaderLabel

	var raw xmlDocument
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode bill status: %w", err)
	}

	b := raw.Bill
	bs := &BillStatus{
		Congress:         b.Congress,
		Type:             firstNonEmpty(b.Type, b.LegacyType),
		Number:           firstNonEmpty(b.Number, b.LegacyNumber),
		Title:            strings.TrimSpace(b.Title),
		OriginChamber:    strings.TrimSpace(b.OriginChamber),
		IntroducedDate:   parseDate(b.IntroducedDate),
		UpdateDate:       parseDate(b.UpdateDate),
		PolicyArea:       firstNonEmpty(b.PolicyArea, b.LegacyPolicyArea),
		CosponsorCount:   len(b.Cosponsors),
		ActionCount:      len(b.Actions),
		LatestActionDate: parseDate(b.LatestAction.ActionDate),
		LatestActionText: strings.TrimSpace(b.LatestAction.Text),
	}

	for _, s := range b.Sponsors {
		bs.Sponsors = append(bs.Sponsors, model.Sponsor{
			BioguideID: strings.TrimSpace(s.BioguideID),
			FullName:   strings.TrimSpace(s.FullName),
			Party:      strings.TrimSpace(s.Party),
			State:      strings.TrimSpace(s.State),
		})
	}

	subjects := b.Subjects
	if len(subjects) == 0 {
		subjects = b.LegacySubjects
	}
	for _, s := range subjects {
		if name := strings.TrimSpace(s.Name); name != "" {
			bs.Subjects = append(bs.Subjects, name)
		}
	}

	for _, tv := range b.TextVersions {
		bs.TextVersions = append(bs.TextVersions, model.TextVersionRef{
			URL:  xmlFormatURL(tv.Formats),
			Date: parseDate(tv.Date),
			Type: strings.TrimSpace(tv.Type),
		})
	}

	return bs, nil
}

// Summarize flattens a parsed bill status into a parsed-table row
func Summarize(raw model.BillStatusXMLRecord, bs *BillStatus) model.BillStatusRecord {
	return model.BillStatusRecord{
		LegisID:          raw.LegisID,
		CongressNum:      raw.CongressNum,
		LegisType:        raw.LegisType,
		LegisNum:         raw.LegisNum,
		XML:              raw.XML,
		BillType:         bs.Type,
		BillNumber:       bs.Number,
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
		TextVersionCount: len(bs.TextVersions),
	}
}

// xmlFormatURL returns the first format URL pointing at an XML rendition
func xmlFormatURL(formats []xmlFormat) *string {
	for _, f := range formats {
		u := strings.TrimSpace(f.URL)
		if strings.HasSuffix(strings.ToLower(u), ".xml") {
			return &u
		}
	}
	return nil
}

// parseDate accepts date-only and timestamp forms. Empty or unparseable
// values are nil.
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return nil
	}
	return &t
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
