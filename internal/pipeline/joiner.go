package pipeline

import (
	"errors"
	"fmt"
	"path"
	"sort"

	"github.com/hyperdemocracy/congressprep/internal/billstatus"
	"github.com/hyperdemocracy/congressprep/internal/logger"
	"github.com/hyperdemocracy/congressprep/internal/model"
	"github.com/hyperdemocracy/congressprep/internal/textversion"
)

var (
	// ErrDuplicateLegisID is returned when a bill status table repeats a legis_id
	ErrDuplicateLegisID = errors.New("duplicate legis_id")

	// ErrAmbiguousTextVersion is returned when a join key matches more than one text version row
	ErrAmbiguousTextVersion = errors.New("ambiguous text version")
)

// StatusParser turns a raw bill status document into its parsed form
type StatusParser interface {
	Parse(doc string) (*billstatus.BillStatus, error)
}

// MissingTally counts text version references that matched no row, keyed by URL
type MissingTally struct {
	counts map[string]int
}

// NewMissingTally creates an empty tally
func NewMissingTally() *MissingTally {
	return &MissingTally{counts: make(map[string]int)}
}

// Add records one unresolved reference to url
func (m *MissingTally) Add(url string) {
	m.counts[url]++
}

// Count returns how many times url went unresolved
func (m *MissingTally) Count(url string) int {
	return m.counts[url]
}

// Total returns the number of unresolved references across all URLs
func (m *MissingTally) Total() int {
	total := 0
	for _, n := range m.counts {
		total += n
	}
	return total
}

// MissingEntry is one URL of the tally
type MissingEntry struct {
	URL   string `json:"url" yaml:"url"`
	Count int    `json:"count" yaml:"count"`
}

// Entries returns the tally sorted by URL
func (m *MissingTally) Entries() []MissingEntry {
	entries := make([]MissingEntry, 0, len(m.counts))
	for url, n := range m.counts {
		entries = append(entries, MissingEntry{URL: url, Count: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].URL < entries[j].URL
	})
	return entries
}

// Joiner attaches resolved, ordered text versions to bill status rows
type Joiner struct {
	parser    StatusParser
	extractor textversion.TextExtractor
	log       *logger.Logger
}

// NewJoiner creates a joiner. A nil log discards diagnostics.
func NewJoiner(parser StatusParser, extractor textversion.TextExtractor, log *logger.Logger) *Joiner {
	if log == nil {
		log = logger.Nop()
	}
	return &Joiner{
		parser:    parser,
		extractor: extractor,
		log:       log,
	}
}

// Join produces one unified record per bill status row, in input order.
// Unresolved references are added to missing. Neither input is modified.
func (j *Joiner) Join(bills []model.BillStatusRecord, versions []model.TextVersionRecord, missing *MissingTally) ([]model.UnifiedBillRecord, error) {
	seen := make(map[string]struct{}, len(bills))
	for _, bs := range bills {
		if _, dup := seen[bs.LegisID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateLegisID, bs.LegisID)
		}
		seen[bs.LegisID] = struct{}{}
	}

	byFileName := make(map[string][]int, len(versions))
	for i, tv := range versions {
		byFileName[tv.FileName] = append(byFileName[tv.FileName], i)
	}

	out := make([]model.UnifiedBillRecord, 0, len(bills))
	for _, bs := range bills {
		joined, err := j.joinBill(bs, versions, byFileName, missing)
		if err != nil {
			return nil, err
		}
		out = append(out, model.NewUnifiedBillRecord(bs, joined))
	}
	return out, nil
}

func (j *Joiner) joinBill(bs model.BillStatusRecord, versions []model.TextVersionRecord, byFileName map[string][]int, missing *MissingTally) ([]model.JoinedTextVersion, error) {
	parsed, err := j.parser.Parse(bs.XML)
	if err != nil {
		return nil, fmt.Errorf("parse bill status %s: %w", bs.LegisID, err)
	}

	var joined []model.JoinedTextVersion
	for _, ref := range parsed.TextVersions {
		if ref.URL == nil {
			continue
		}
		url := *ref.URL
		fileName := path.Base(url)

		matches := byFileName[fileName]
		switch len(matches) {
		case 0:
			missing.Add(url)
			j.log.Warn("text version not found", "legis_id", bs.LegisID, "url", url, "file_name", fileName)
			continue
		case 1:
		default:
			return nil, fmt.Errorf("%w: %s matches %d rows (legis_id %s)", ErrAmbiguousTextVersion, fileName, len(matches), bs.LegisID)
		}

		tv := versions[matches[0]]
		text, err := j.extractor.Extract(textversion.Clean(tv.XML))
		if err != nil {
			return nil, fmt.Errorf("extract text %s: %w", fileName, err)
		}

		jtv := model.NewJoinedTextVersion(tv)
		jtv.BSDate = ref.Date
		jtv.BSType = ref.Type
		jtv.URL = url
		jtv.TextV1 = text
		joined = append(joined, jtv)
	}

	sortByDateDesc(joined)
	return joined, nil
}

// sortByDateDesc orders versions newest first with undated versions last.
// Equal dates keep their encounter order.
func sortByDateDesc(tvs []model.JoinedTextVersion) {
	sort.SliceStable(tvs, func(i, k int) bool {
		a, b := tvs[i].BSDate, tvs[k].BSDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}
