package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hyperdemocracy/congressprep/internal/billstatus"
	"github.com/hyperdemocracy/congressprep/internal/logger"
	"github.com/hyperdemocracy/congressprep/internal/model"
	"github.com/hyperdemocracy/congressprep/internal/publish"
	"github.com/hyperdemocracy/congressprep/internal/table"
	"github.com/hyperdemocracy/congressprep/internal/textversion"
)

// Pipeline runs the per-congress parse, join and upload steps
type Pipeline struct {
	parser    *billstatus.Parser
	joiner    *Joiner
	publisher publish.Publisher // nil when nothing is published
	log       *logger.Logger
	config    *model.Config
}

// NewPipeline creates a pipeline. publisher may be nil when upload is disabled.
func NewPipeline(cfg *model.Config, extractor textversion.TextExtractor, publisher publish.Publisher, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}
	parser := billstatus.NewParser()

	return &Pipeline{
		parser:    parser,
		joiner:    NewJoiner(parser, extractor, log),
		publisher: publisher,
		log:       log,
		config:    cfg,
	}
}

// ParseReport summarizes one parse run
type ParseReport struct {
	Congress   int    `json:"congress" yaml:"congress"`
	Rows       int    `json:"rows" yaml:"rows"`
	OutputPath string `json:"output_path,omitempty" yaml:"output_path,omitempty"` // empty when nothing was written
	Published  string `json:"published,omitempty" yaml:"published,omitempty"`
}

// JoinReport summarizes one join run
type JoinReport struct {
	Congress     int            `json:"congress" yaml:"congress"`
	Bills        int            `json:"bills" yaml:"bills"`
	TextVersions int            `json:"text_versions" yaml:"text_versions"` // rows in the text version table
	Joined       int            `json:"joined" yaml:"joined"`               // text versions attached to bills
	Missing      []MissingEntry `json:"missing,omitempty" yaml:"missing,omitempty"`
	OutputPath   string         `json:"output_path" yaml:"output_path"`
	Published    string         `json:"published,omitempty" yaml:"published,omitempty"`
}

// MissingTotal returns the number of unresolved references
func (r *JoinReport) MissingTotal() int {
	total := 0
	for _, m := range r.Missing {
		total += m.Count
	}
	return total
}

// ParseSession parses every raw bill status of a congress into the parsed table.
// Any parse failure aborts the run before anything is written.
func (p *Pipeline) ParseSession(ctx context.Context, congress int) (*ParseReport, error) {
	log := p.log.With("congress", congress, "step", "parse")
	inPath := model.ArtifactBillStatusXML.LocalPath(p.config.Paths.BaseDir, congress)

	raw, err := table.Read[model.BillStatusXMLRecord](inPath)
	if err != nil {
		return nil, fmt.Errorf("read bill status xml: %w", err)
	}
	log.Info("loaded bill status xml", "rows", len(raw), "path", inPath)

	rows := make([]model.BillStatusRecord, 0, len(raw))
	for _, r := range raw {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bs, err := p.parser.Parse(r.XML)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", r.LegisID, err)
		}
		rows = append(rows, billstatus.Summarize(r, bs))
	}

	report := &ParseReport{Congress: congress, Rows: len(rows)}
	if len(rows) == 0 {
		log.Warn("no bill status rows, nothing written")
		return report, nil
	}

	outPath := model.ArtifactBillStatusParsed.LocalPath(p.config.Paths.BaseDir, congress)
	if err := table.Write(outPath, rows); err != nil {
		return nil, fmt.Errorf("write parsed table: %w", err)
	}
	report.OutputPath = outPath
	log.Info("wrote parsed table", "rows", len(rows), "path", outPath)

	if p.uploadEnabled() {
		repo, err := p.publishSession(ctx, model.ArtifactBillStatusParsed, congress, outPath)
		if err != nil {
			return nil, err
		}
		report.Published = repo
	}

	return report, nil
}

// JoinSession joins the parsed bill statuses of a congress with its text
// versions and writes the unified table. Nothing is written on failure.
func (p *Pipeline) JoinSession(ctx context.Context, congress int) (*JoinReport, error) {
	log := p.log.With("congress", congress, "step", "join")
	baseDir := p.config.Paths.BaseDir

	bills, err := table.Read[model.BillStatusRecord](model.ArtifactBillStatusParsed.LocalPath(baseDir, congress))
	if err != nil {
		return nil, fmt.Errorf("read parsed bill status: %w", err)
	}
	versions, err := table.Read[model.TextVersionRecord](model.ArtifactTextVersions.LocalPath(baseDir, congress))
	if err != nil {
		return nil, fmt.Errorf("read text versions: %w", err)
	}
	log.Info("loaded tables", "bills", len(bills), "text_versions", len(versions))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	missing := NewMissingTally()
	unified, err := p.joiner.Join(bills, versions, missing)
	if err != nil {
		return nil, fmt.Errorf("join congress %d: %w", congress, err)
	}

	joined := 0
	for _, u := range unified {
		joined += len(u.TextVersions)
	}

	outPath := model.ArtifactUnifiedV1.LocalPath(baseDir, congress)
	if err := table.Write(outPath, unified); err != nil {
		return nil, fmt.Errorf("write unified table: %w", err)
	}
	log.Info("wrote unified table", "rows", len(unified), "joined", joined, "missing", missing.Total(), "path", outPath)

	report := &JoinReport{
		Congress:     congress,
		Bills:        len(bills),
		TextVersions: len(versions),
		Joined:       joined,
		Missing:      missing.Entries(),
		OutputPath:   outPath,
	}

	if p.uploadEnabled() {
		repo, err := p.publishSession(ctx, model.ArtifactUnifiedV1, congress, outPath)
		if err != nil {
			return nil, err
		}
		report.Published = repo
	}

	return report, nil
}

// UploadReport lists what an aggregate upload pushed and skipped
type UploadReport struct {
	Repo     string   `json:"repo" yaml:"repo"`
	Uploaded []string `json:"uploaded" yaml:"uploaded"` // paths in repo
	Skipped  []string `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// UploadArtifacts publishes README.md and the requested artifact kinds of each
// congress into the aggregate dataset repo. Files not present locally are skipped.
func (p *Pipeline) UploadArtifacts(ctx context.Context, congresses []int, kinds []model.ArtifactKind) (*UploadReport, error) {
	if p.publisher == nil {
		return nil, errors.New("no publisher configured")
	}

	repo := p.aggregateRepo()
	log := p.log.With("step", "upload", "repo", repo)
	baseDir := p.config.Paths.BaseDir

	if err := p.publisher.EnsureRepo(ctx, repo); err != nil {
		return nil, fmt.Errorf("ensure repo: %w", err)
	}

	report := &UploadReport{Repo: repo}

	readme := filepath.Join(baseDir, "README.md")
	if err := p.publisher.UploadFile(ctx, readme, repo, "README.md"); err != nil {
		return nil, fmt.Errorf("upload README.md: %w", err)
	}
	report.Uploaded = append(report.Uploaded, "README.md")

	for _, cn := range congresses {
		for _, kind := range kinds {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			local := kind.LocalPath(baseDir, cn)
			if _, err := os.Stat(local); errors.Is(err, fs.ErrNotExist) {
				log.Info("skipping missing file", "congress", cn, "kind", kind, "path", local)
				report.Skipped = append(report.Skipped, local)
				continue
			} else if err != nil {
				return nil, fmt.Errorf("stat %s: %w", local, err)
			}

			dest := kind.RepoPath(cn)
			if err := p.publisher.UploadFile(ctx, local, repo, dest); err != nil {
				return nil, fmt.Errorf("upload %s: %w", dest, err)
			}
			log.Info("uploaded", "congress", cn, "kind", kind, "path", dest)
			report.Uploaded = append(report.Uploaded, dest)
		}
	}

	return report, nil
}

func (p *Pipeline) uploadEnabled() bool {
	return p.config.Upload.Enabled && p.publisher != nil
}

func (p *Pipeline) aggregateRepo() string {
	return p.config.Hub.Namespace + "/" + p.config.Hub.AggregateRepo
}

// publishSession pushes a per-congress table into its own dataset repo
func (p *Pipeline) publishSession(ctx context.Context, kind model.ArtifactKind, congress int, localPath string) (string, error) {
	repo := kind.SessionRepo(p.config.Hub.Namespace, congress)
	if err := p.publisher.EnsureRepo(ctx, repo); err != nil {
		return "", fmt.Errorf("ensure repo %s: %w", repo, err)
	}
	if err := p.publisher.UploadFile(ctx, localPath, repo, filepath.Base(localPath)); err != nil {
		return "", fmt.Errorf("publish %s: %w", repo, err)
	}
	p.log.Info("published", "repo", repo, "file", filepath.Base(localPath))
	return repo, nil
}
