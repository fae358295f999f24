package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/hyperdemocracy/congressprep/internal/model"
	"github.com/hyperdemocracy/congressprep/internal/table"
	"github.com/hyperdemocracy/congressprep/internal/textversion"
)

// recordingPublisher remembers every call instead of publishing
type recordingPublisher struct {
	ensured []string
	uploads []string // "repo:pathInRepo"
	failOn  string
}

func (r *recordingPublisher) EnsureRepo(ctx context.Context, repo string) error {
	r.ensured = append(r.ensured, repo)
	return nil
}

func (r *recordingPublisher) UploadFile(ctx context.Context, localPath, repo, pathInRepo string) error {
	if _, err := os.Stat(localPath); err != nil {
		return err
	}
	if pathInRepo == r.failOn {
		return errors.New("upload refused")
	}
	r.uploads = append(r.uploads, repo+":"+pathInRepo)
	return nil
}

func testConfig(t *testing.T, upload bool) *model.Config {
	t.Helper()
	cfg := model.DefaultConfig()
	cfg.Paths.BaseDir = t.TempDir()
	cfg.Upload.Enabled = upload
	return cfg
}

// statusDoc builds a bill status document listing the given text version files
func statusDoc(billType string, number int, versions ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<billStatus><bill><type>%s</type><number>%d</number><congress>113</congress><introducedDate>2013-01-03</introducedDate><title>Bill %d</title><textVersions>", billType, number, number)
	for i, v := range versions {
		fmt.Fprintf(&b, "<item><type>Version %d</type><date>2013-0%d-01T00:00:00Z</date><formats><item><url>https://www.govinfo.gov/content/pkg/%s/xml/%s.xml</url></item></formats></item>", i, i+1, v, v)
	}
	b.WriteString("</textVersions></bill></billStatus>")
	return b.String()
}

func writeTable[T any](t *testing.T, path string, rows []T) {
	t.Helper()
	if err := table.Write(path, rows); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestParseSession(t *testing.T) {
	cfg := testConfig(t, true)
	writeTable(t, model.ArtifactBillStatusXML.LocalPath(cfg.Paths.BaseDir, 113), []model.BillStatusXMLRecord{
		{LegisID: "113-hr-1", CongressNum: 113, LegisType: "hr", LegisNum: 1, XML: statusDoc("HR", 1, "BILLS-113hr1ih", "BILLS-113hr1rh")},
		{LegisID: "113-s-2", CongressNum: 113, LegisType: "s", LegisNum: 2, XML: statusDoc("S", 2)},
	})

	pub := &recordingPublisher{}
	report, err := NewPipeline(cfg, textversion.NewExtractor(), pub, nil).ParseSession(context.Background(), 113)
	if err != nil {
		t.Fatalf("ParseSession failed: %v", err)
	}
	if report.Rows != 2 {
		t.Errorf("expected 2 rows, got %d", report.Rows)
	}

	rows, err := table.Read[model.BillStatusRecord](report.OutputPath)
	if err != nil {
		t.Fatalf("read parsed table: %v", err)
	}
	if rows[0].LegisID != "113-hr-1" || rows[0].BillType != "HR" || rows[0].TextVersionCount != 2 {
		t.Errorf("unexpected first row: %+v", rows[0])
	}
	if rows[1].Title != "Bill 2" {
		t.Errorf("unexpected title %q", rows[1].Title)
	}
	introduced := time.Date(2013, 1, 3, 0, 0, 0, 0, time.UTC)
	if rows[0].IntroducedDate == nil || !rows[0].IntroducedDate.Equal(introduced) {
		t.Errorf("expected introduced date %v to survive the table, got %v", introduced, rows[0].IntroducedDate)
	}

	wantRepo := "hyperdemocracy/usc-113-billstatus-parsed"
	if report.Published != wantRepo {
		t.Errorf("expected published to %s, got %s", wantRepo, report.Published)
	}
	if !reflect.DeepEqual(pub.ensured, []string{wantRepo}) {
		t.Errorf("unexpected ensured repos: %v", pub.ensured)
	}
	if !reflect.DeepEqual(pub.uploads, []string{wantRepo + ":usc-113-billstatus-parsed.parquet"}) {
		t.Errorf("unexpected uploads: %v", pub.uploads)
	}
}

func TestParseSession_EmptyWritesNothing(t *testing.T) {
	cfg := testConfig(t, true)
	writeTable(t, model.ArtifactBillStatusXML.LocalPath(cfg.Paths.BaseDir, 114), []model.BillStatusXMLRecord{})

	pub := &recordingPublisher{}
	report, err := NewPipeline(cfg, textversion.NewExtractor(), pub, nil).ParseSession(context.Background(), 114)
	if err != nil {
		t.Fatalf("ParseSession failed: %v", err)
	}
	if report.Rows != 0 || report.OutputPath != "" {
		t.Errorf("unexpected report: %+v", report)
	}
	if table.Exists(model.ArtifactBillStatusParsed.LocalPath(cfg.Paths.BaseDir, 114)) {
		t.Error("expected no parsed table for an empty session")
	}
	if len(pub.uploads) != 0 {
		t.Errorf("expected nothing published, got %v", pub.uploads)
	}
}

func TestParseSession_MalformedAborts(t *testing.T) {
	cfg := testConfig(t, false)
	writeTable(t, model.ArtifactBillStatusXML.LocalPath(cfg.Paths.BaseDir, 113), []model.BillStatusXMLRecord{
		{LegisID: "113-hr-1", XML: statusDoc("HR", 1)},
		{LegisID: "113-hr-2", XML: "<billStatus><bill>"},
	})

	_, err := NewPipeline(cfg, textversion.NewExtractor(), nil, nil).ParseSession(context.Background(), 113)
	if err == nil || !strings.Contains(err.Error(), "113-hr-2") {
		t.Fatalf("expected parse error naming 113-hr-2, got %v", err)
	}
	if table.Exists(model.ArtifactBillStatusParsed.LocalPath(cfg.Paths.BaseDir, 113)) {
		t.Error("expected no output after a parse failure")
	}
}

func TestParseSession_MissingInput(t *testing.T) {
	cfg := testConfig(t, false)
	_, err := NewPipeline(cfg, textversion.NewExtractor(), nil, nil).ParseSession(context.Background(), 113)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist, got %v", err)
	}
}

func writeJoinInputs(t *testing.T, cfg *model.Config, versions []model.TextVersionRecord) {
	t.Helper()
	writeTable(t, model.ArtifactBillStatusParsed.LocalPath(cfg.Paths.BaseDir, 113), []model.BillStatusRecord{
		{LegisID: "113-hr-1", CongressNum: 113, XML: statusDoc("HR", 1, "BILLS-113hr1ih", "BILLS-113hr1rh")},
		{LegisID: "113-hr-2", CongressNum: 113, XML: statusDoc("HR", 2, "BILLS-113hr2ih")},
	})
	writeTable(t, model.ArtifactTextVersions.LocalPath(cfg.Paths.BaseDir, 113), versions)
}

func TestJoinSession(t *testing.T) {
	cfg := testConfig(t, true)
	writeJoinInputs(t, cfg, []model.TextVersionRecord{
		{FileName: "BILLS-113hr1ih.xml", XML: "<bill><legis-body><text>Introduced.</text></legis-body></bill>"},
		{FileName: "BILLS-113hr1rh.xml", XML: "<bill><legis-body><text>Reported.</text></legis-body></bill>"},
	})

	pub := &recordingPublisher{}
	report, err := NewPipeline(cfg, textversion.NewExtractor(), pub, nil).JoinSession(context.Background(), 113)
	if err != nil {
		t.Fatalf("JoinSession failed: %v", err)
	}
	if report.Bills != 2 || report.TextVersions != 2 || report.Joined != 2 {
		t.Errorf("unexpected counts: %+v", report)
	}
	if report.MissingTotal() != 1 || !strings.HasSuffix(report.Missing[0].URL, "BILLS-113hr2ih.xml") {
		t.Errorf("expected hr2 reference tallied as missing, got %+v", report.Missing)
	}

	rows, err := table.Read[model.UnifiedBillRecord](report.OutputPath)
	if err != nil {
		t.Fatalf("read unified table: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	tvs := rows[0].TextVersions
	if len(tvs) != 2 || tvs[0].TextV1 != "Reported." || tvs[1].TextV1 != "Introduced." {
		t.Fatalf("unexpected text versions: %+v", tvs)
	}
	reported := time.Date(2013, 2, 1, 0, 0, 0, 0, time.UTC)
	if tvs[0].BSDate == nil || !tvs[0].BSDate.Equal(reported) {
		t.Errorf("expected bs_date %v, got %v", reported, tvs[0].BSDate)
	}
	if len(rows[1].TextVersions) != 0 {
		t.Errorf("expected hr2 without text versions, got %d", len(rows[1].TextVersions))
	}

	if want := []string{"hyperdemocracy/usc-113-unified-v1:usc-113-unified-v1.parquet"}; !reflect.DeepEqual(pub.uploads, want) {
		t.Errorf("unexpected uploads: %v", pub.uploads)
	}
}

func TestJoinSession_AmbiguousWritesNothing(t *testing.T) {
	cfg := testConfig(t, true)
	writeJoinInputs(t, cfg, []model.TextVersionRecord{
		{FileName: "BILLS-113hr1ih.xml", XML: "<bill/>"},
		{FileName: "BILLS-113hr1ih.xml", XML: "<bill/>"},
	})

	pub := &recordingPublisher{}
	_, err := NewPipeline(cfg, textversion.NewExtractor(), pub, nil).JoinSession(context.Background(), 113)
	if !errors.Is(err, ErrAmbiguousTextVersion) {
		t.Fatalf("expected ErrAmbiguousTextVersion, got %v", err)
	}
	if table.Exists(model.ArtifactUnifiedV1.LocalPath(cfg.Paths.BaseDir, 113)) {
		t.Error("expected no unified table after a fatal join")
	}
	if len(pub.uploads) != 0 {
		t.Errorf("expected nothing published, got %v", pub.uploads)
	}
}

func TestJoinSession_UploadDisabled(t *testing.T) {
	cfg := testConfig(t, false)
	writeJoinInputs(t, cfg, nil)

	pub := &recordingPublisher{}
	report, err := NewPipeline(cfg, textversion.NewExtractor(), pub, nil).JoinSession(context.Background(), 113)
	if err != nil {
		t.Fatalf("JoinSession failed: %v", err)
	}
	if report.Published != "" || len(pub.uploads) != 0 {
		t.Errorf("expected no publish with upload disabled, got %v", pub.uploads)
	}
}

func TestUploadArtifacts(t *testing.T) {
	cfg := testConfig(t, true)
	base := cfg.Paths.BaseDir

	if err := os.WriteFile(filepath.Join(base, "README.md"), []byte("# us-congress\n"), 0644); err != nil {
		t.Fatal(err)
	}
	for _, cn := range []int{113, 114} {
		writeTable(t, model.ArtifactUnifiedV1.LocalPath(base, cn), []model.UnifiedBillRecord{{LegisID: fmt.Sprintf("%d-hr-1", cn)}})
	}
	writeTable(t, model.ArtifactBillStatusParsed.LocalPath(base, 113), []model.BillStatusRecord{{LegisID: "113-hr-1"}})

	pub := &recordingPublisher{}
	report, err := NewPipeline(cfg, nil, pub, nil).UploadArtifacts(context.Background(),
		[]int{113, 114}, []model.ArtifactKind{model.ArtifactBillStatusParsed, model.ArtifactUnifiedV1})
	if err != nil {
		t.Fatalf("UploadArtifacts failed: %v", err)
	}

	repo := "hyperdemocracy/us-congress"
	if !reflect.DeepEqual(pub.ensured, []string{repo}) {
		t.Errorf("unexpected ensured repos: %v", pub.ensured)
	}
	want := []string{
		repo + ":README.md",
		repo + ":data/billstatus_parsed/usc-113-billstatus-parsed.parquet",
		repo + ":data/unified_v1/usc-113-unified-v1.parquet",
		repo + ":data/unified_v1/usc-114-unified-v1.parquet",
	}
	if !reflect.DeepEqual(pub.uploads, want) {
		t.Errorf("unexpected uploads:\n got %v\nwant %v", pub.uploads, want)
	}
	if len(report.Skipped) != 1 || !strings.HasSuffix(report.Skipped[0], "usc-114-billstatus-parsed.parquet") {
		t.Errorf("expected 114 parsed table skipped, got %v", report.Skipped)
	}
}

func TestUploadArtifacts_Errors(t *testing.T) {
	cfg := testConfig(t, true)

	if _, err := NewPipeline(cfg, nil, nil, nil).UploadArtifacts(context.Background(), []int{113}, nil); err == nil {
		t.Error("expected error without a publisher")
	}

	// README.md is required
	if _, err := NewPipeline(cfg, nil, &recordingPublisher{}, nil).UploadArtifacts(context.Background(), []int{113}, nil); err == nil {
		t.Error("expected error without README.md")
	}

	if err := os.WriteFile(filepath.Join(cfg.Paths.BaseDir, "README.md"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	writeTable(t, model.ArtifactUnifiedV1.LocalPath(cfg.Paths.BaseDir, 113), []model.UnifiedBillRecord{{LegisID: "113-hr-1"}})
	pub := &recordingPublisher{failOn: "data/unified_v1/usc-113-unified-v1.parquet"}
	if _, err := NewPipeline(cfg, nil, pub, nil).UploadArtifacts(context.Background(), []int{113}, []model.ArtifactKind{model.ArtifactUnifiedV1}); err == nil {
		t.Error("expected upload failure to propagate")
	}
}
