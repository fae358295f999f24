package pipeline

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/hyperdemocracy/congressprep/internal/billstatus"
	"github.com/hyperdemocracy/congressprep/internal/model"
	"github.com/hyperdemocracy/congressprep/internal/textversion"
)

// stubParser resolves a document to the refs registered under it
type stubParser struct {
	refs map[string][]model.TextVersionRef
}

func (s *stubParser) Parse(doc string) (*billstatus.BillStatus, error) {
	refs, ok := s.refs[doc]
	if !ok {
		return nil, fmt.Errorf("unknown document %q", doc)
	}
	return &billstatus.BillStatus{TextVersions: refs}, nil
}

// upperExtractor returns the cleaned document upper-cased
type upperExtractor struct {
	calls []string
}

func (u *upperExtractor) Extract(doc string) (string, error) {
	u.calls = append(u.calls, doc)
	return strings.ToUpper(doc), nil
}

func strPtr(s string) *string { return &s }

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func govinfoURL(name string) *string {
	return strPtr("https://www.govinfo.gov/content/pkg/" + name + "/xml/" + name + ".xml")
}

func TestJoiner_OrdersNewestFirst(t *testing.T) {
	parser := &stubParser{refs: map[string][]model.TextVersionRef{
		"hr1": {
			{URL: govinfoURL("BILLS-113hr1ih"), Date: datePtr(2013, 1, 3), Type: "Introduced in House"},
			{URL: govinfoURL("BILLS-113hr1rh"), Date: datePtr(2013, 5, 10), Type: "Reported in House"},
		},
	}}
	bills := []model.BillStatusRecord{{LegisID: "113-hr-1", XML: "hr1"}}
	versions := []model.TextVersionRecord{
		{FileName: "BILLS-113hr1ih.xml", XML: "ih"},
		{FileName: "BILLS-113hr1rh.xml", XML: "rh"},
	}

	missing := NewMissingTally()
	out, err := NewJoiner(parser, &upperExtractor{}, nil).Join(bills, versions, missing)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 row, got %d", len(out))
	}

	tvs := out[0].TextVersions
	if len(tvs) != 2 {
		t.Fatalf("expected 2 text versions, got %d", len(tvs))
	}
	if tvs[0].FileName != "BILLS-113hr1rh.xml" || tvs[1].FileName != "BILLS-113hr1ih.xml" {
		t.Errorf("expected [rh, ih], got [%s, %s]", tvs[0].FileName, tvs[1].FileName)
	}
	if tvs[0].BSType != "Reported in House" || tvs[0].TextV1 != "RH" {
		t.Errorf("unexpected enrichment: %+v", tvs[0])
	}
	if tvs[0].URL != *govinfoURL("BILLS-113hr1rh") {
		t.Errorf("expected reference URL copied, got %s", tvs[0].URL)
	}
	if missing.Total() != 0 {
		t.Errorf("expected empty tally, got %d", missing.Total())
	}
}

func TestJoiner_NilURLSkipped(t *testing.T) {
	parser := &stubParser{refs: map[string][]model.TextVersionRef{
		"hr1": {
			{URL: nil, Date: datePtr(2013, 6, 1), Type: "Public Print"},
			{URL: govinfoURL("BILLS-113hr1ih"), Date: datePtr(2013, 1, 3), Type: "Introduced in House"},
		},
	}}
	bills := []model.BillStatusRecord{{LegisID: "113-hr-1", XML: "hr1"}}
	versions := []model.TextVersionRecord{{FileName: "BILLS-113hr1ih.xml", XML: "ih"}}

	missing := NewMissingTally()
	out, err := NewJoiner(parser, &upperExtractor{}, nil).Join(bills, versions, missing)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if len(out[0].TextVersions) != 1 {
		t.Errorf("expected 1 text version, got %d", len(out[0].TextVersions))
	}
	if missing.Total() != 0 {
		t.Errorf("expected nil URL not to be tallied, got %d", missing.Total())
	}
}

func TestJoiner_MissingTallied(t *testing.T) {
	url := govinfoURL("BILLS-113hr1eh")
	parser := &stubParser{refs: map[string][]model.TextVersionRef{
		"hr1": {{URL: url, Date: datePtr(2013, 7, 1), Type: "Engrossed in House"}},
		"hr2": {{URL: url, Date: datePtr(2013, 7, 1), Type: "Engrossed in House"}},
	}}
	bills := []model.BillStatusRecord{
		{LegisID: "113-hr-1", XML: "hr1"},
		{LegisID: "113-hr-2", XML: "hr2"},
	}

	missing := NewMissingTally()
	out, err := NewJoiner(parser, &upperExtractor{}, nil).Join(bills, nil, missing)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	for _, row := range out {
		if len(row.TextVersions) != 0 {
			t.Errorf("expected no text versions for %s, got %d", row.LegisID, len(row.TextVersions))
		}
	}
	if got := missing.Count(*url); got != 2 {
		t.Errorf("expected missing count 2, got %d", got)
	}

	entries := missing.Entries()
	if len(entries) != 1 || entries[0].URL != *url || entries[0].Count != 2 {
		t.Errorf("unexpected entries: %+v", entries)
	}
}

func TestJoiner_AmbiguousFileName(t *testing.T) {
	parser := &stubParser{refs: map[string][]model.TextVersionRef{
		"hr1": {{URL: govinfoURL("BILLS-113hr1ih"), Date: datePtr(2013, 1, 3)}},
	}}
	bills := []model.BillStatusRecord{{LegisID: "113-hr-1", XML: "hr1"}}
	versions := []model.TextVersionRecord{
		{FileName: "BILLS-113hr1ih.xml", XML: "a"},
		{FileName: "BILLS-113hr1ih.xml", XML: "b"},
	}

	out, err := NewJoiner(parser, &upperExtractor{}, nil).Join(bills, versions, NewMissingTally())
	if !errors.Is(err, ErrAmbiguousTextVersion) {
		t.Fatalf("expected ErrAmbiguousTextVersion, got %v", err)
	}
	if out != nil {
		t.Errorf("expected no output, got %d rows", len(out))
	}
}

func TestJoiner_UnreferencedDuplicateFileName(t *testing.T) {
	parser := &stubParser{refs: map[string][]model.TextVersionRef{
		"hr1": {{URL: govinfoURL("BILLS-113hr1ih"), Date: datePtr(2013, 1, 3)}},
	}}
	bills := []model.BillStatusRecord{{LegisID: "113-hr-1", XML: "hr1"}}
	versions := []model.TextVersionRecord{
		{FileName: "BILLS-113hr1ih.xml", XML: "ih"},
		{FileName: "BILLS-113hr2ih.xml", XML: "a"},
		{FileName: "BILLS-113hr2ih.xml", XML: "b"},
	}

	out, err := NewJoiner(parser, &upperExtractor{}, nil).Join(bills, versions, NewMissingTally())
	if err != nil {
		t.Fatalf("expected duplicates nobody references to be ignored, got %v", err)
	}
	if len(out) != 1 || len(out[0].TextVersions) != 1 {
		t.Fatalf("unexpected output: %+v", out)
	}
	if got := out[0].TextVersions[0].TextV1; got != "IH" {
		t.Errorf("expected TextV1 IH, got %q", got)
	}
}

func TestJoiner_DuplicateLegisID(t *testing.T) {
	parser := &stubParser{refs: map[string][]model.TextVersionRef{"hr1": nil}}
	bills := []model.BillStatusRecord{
		{LegisID: "113-hr-1", XML: "hr1"},
		{LegisID: "113-hr-1", XML: "hr1"},
	}

	_, err := NewJoiner(parser, &upperExtractor{}, nil).Join(bills, nil, NewMissingTally())
	if !errors.Is(err, ErrDuplicateLegisID) {
		t.Errorf("expected ErrDuplicateLegisID, got %v", err)
	}
}

func TestJoiner_ParseFailure(t *testing.T) {
	bills := []model.BillStatusRecord{{LegisID: "113-hr-1", XML: "<billStatus"}}

	_, err := NewJoiner(billstatus.NewParser(), &upperExtractor{}, nil).Join(bills, nil, NewMissingTally())
	if err == nil || !strings.Contains(err.Error(), "113-hr-1") {
		t.Errorf("expected parse error naming the bill, got %v", err)
	}
}

func TestJoiner_CleansBeforeExtract(t *testing.T) {
	parser := &stubParser{refs: map[string][]model.TextVersionRef{
		"hr1": {{URL: govinfoURL("BILLS-113hr1ih")}},
	}}
	bills := []model.BillStatusRecord{{LegisID: "113-hr-1", XML: "hr1"}}
	versions := []model.TextVersionRecord{{FileName: "BILLS-113hr1ih.xml", XML: "\n  <p>Fish & Game</p>  \n"}}

	ext := &upperExtractor{}
	if _, err := NewJoiner(parser, ext, nil).Join(bills, versions, NewMissingTally()); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if len(ext.calls) != 1 || ext.calls[0] != "<p>Fish &amp; Game</p>" {
		t.Errorf("unexpected extractor input: %q", ext.calls)
	}
}

func TestJoiner_PreservesRowOrderAndCount(t *testing.T) {
	refs := make(map[string][]model.TextVersionRef)
	var bills []model.BillStatusRecord
	for i := 0; i < 25; i++ {
		doc := fmt.Sprintf("doc-%d", i)
		refs[doc] = nil
		bills = append(bills, model.BillStatusRecord{LegisID: fmt.Sprintf("113-hr-%d", 25-i), XML: doc})
	}

	out, err := NewJoiner(&stubParser{refs: refs}, &upperExtractor{}, nil).Join(bills, nil, NewMissingTally())
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if len(out) != len(bills) {
		t.Fatalf("expected %d rows, got %d", len(bills), len(out))
	}
	for i := range bills {
		if out[i].LegisID != bills[i].LegisID {
			t.Errorf("row %d: expected %s, got %s", i, bills[i].LegisID, out[i].LegisID)
		}
	}
}

func TestJoiner_SortPropertyAndStability(t *testing.T) {
	refs := []model.TextVersionRef{
		{URL: govinfoURL("v1"), Date: nil, Type: "a"},
		{URL: govinfoURL("v2"), Date: datePtr(2014, 1, 1), Type: "b"},
		{URL: govinfoURL("v3"), Date: datePtr(2013, 1, 1), Type: "c"},
		{URL: govinfoURL("v4"), Date: nil, Type: "d"},
		{URL: govinfoURL("v5"), Date: datePtr(2014, 1, 1), Type: "e"},
		{URL: govinfoURL("v6"), Date: datePtr(2015, 3, 1), Type: "f"},
	}
	var versions []model.TextVersionRecord
	for i := 1; i <= 6; i++ {
		versions = append(versions, model.TextVersionRecord{FileName: fmt.Sprintf("v%d.xml", i), XML: fmt.Sprintf("x%d", i)})
	}
	parser := &stubParser{refs: map[string][]model.TextVersionRef{"doc": refs}}
	bills := []model.BillStatusRecord{{LegisID: "113-hr-1", XML: "doc"}}
	joiner := NewJoiner(parser, &upperExtractor{}, nil)

	out, err := joiner.Join(bills, versions, NewMissingTally())
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	tvs := out[0].TextVersions

	var types []string
	for _, tv := range tvs {
		types = append(types, tv.BSType)
	}
	if want := []string{"f", "b", "e", "c", "a", "d"}; !reflect.DeepEqual(types, want) {
		t.Errorf("expected order %v, got %v", want, types)
	}

	for i := 0; i+1 < len(tvs); i++ {
		a, b := tvs[i].BSDate, tvs[i+1].BSDate
		if a == nil && b != nil {
			t.Errorf("undated entry %d precedes dated entry %d", i, i+1)
		}
		if a != nil && b != nil && a.Before(*b) {
			t.Errorf("entry %d (%v) is older than entry %d (%v)", i, a, i+1, b)
		}
	}

	again, err := joiner.Join(bills, versions, NewMissingTally())
	if err != nil {
		t.Fatalf("second Join failed: %v", err)
	}
	if !reflect.DeepEqual(out, again) {
		t.Error("expected identical output on re-run")
	}
}

func TestJoiner_RealCollaborators(t *testing.T) {
	doc := `<billStatus><bill><type>HR</type><number>1</number><congress>113</congress>
<textVersions>
<item><type>Introduced in House</type><date>2013-01-03T05:00:00Z</date>
<formats><item><url>https://www.govinfo.gov/content/pkg/BILLS-113hr1ih/xml/BILLS-113hr1ih.xml</url></item></formats></item>
<item><type>Reported in House</type><date>2013-05-10T04:00:00Z</date>
<formats><item><url>https://www.govinfo.gov/content/pkg/BILLS-113hr1rh/xml/BILLS-113hr1rh.xml</url></item></formats></item>
</textVersions></bill></billStatus>`

	bills := []model.BillStatusRecord{{LegisID: "113-hr-1", XML: doc}}
	versions := []model.TextVersionRecord{
		{FileName: "BILLS-113hr1ih.xml", XML: `<bill><legis-body><text>Introduced & printed.</text></legis-body></bill>`},
		{FileName: "BILLS-113hr1rh.xml", XML: `<bill><legis-body><text>Reported.</text></legis-body></bill>`},
	}

	out, err := NewJoiner(billstatus.NewParser(), textversion.NewExtractor(), nil).Join(bills, versions, NewMissingTally())
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	tvs := out[0].TextVersions
	if len(tvs) != 2 {
		t.Fatalf("expected 2 text versions, got %d", len(tvs))
	}
	if tvs[0].TextV1 != "Reported." {
		t.Errorf("expected rh first, got %q", tvs[0].TextV1)
	}
	if tvs[1].TextV1 != "Introduced & printed." {
		t.Errorf("expected repaired ampersand in ih text, got %q", tvs[1].TextV1)
	}
}
