package model

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// ArtifactKind is a table file produced or consumed per congress
type ArtifactKind string

const (
	ArtifactBillStatusXML       ArtifactKind = "billstatus_xml"        // raw bill status documents
	ArtifactTextVersions        ArtifactKind = "textversions"          // text version documents, join input
	ArtifactTextVersionsDDTXML  ArtifactKind = "textversions_ddt_xml"  // text versions in bill DTD XML
	ArtifactTextVersionsUSLMXML ArtifactKind = "textversions_uslm_xml" // text versions in USLM XML
	ArtifactBillStatusParsed    ArtifactKind = "billstatus_parsed"     // parse output
	ArtifactUnifiedV1           ArtifactKind = "unified_v1"            // join output
)

// ArtifactKinds lists every known kind in upload order
var ArtifactKinds = []ArtifactKind{
	ArtifactBillStatusXML,
	ArtifactTextVersions,
	ArtifactTextVersionsDDTXML,
	ArtifactTextVersionsUSLMXML,
	ArtifactBillStatusParsed,
	ArtifactUnifiedV1,
}

// ParseArtifactKind converts a name such as "unified_v1" to its kind
func ParseArtifactKind(name string) (ArtifactKind, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	for _, k := range ArtifactKinds {
		if string(k) == name {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown artifact kind %q", name)
}

// ParseArtifactKinds converts a list of names, rejecting unknown ones
func ParseArtifactKinds(names []string) ([]ArtifactKind, error) {
	kinds := make([]ArtifactKind, 0, len(names))
	seen := make(map[ArtifactKind]bool)
	for _, name := range names {
		k, err := ParseArtifactKind(name)
		if err != nil {
			return nil, err
		}
		if !seen[k] {
			seen[k] = true
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}

// Tag returns the file tag for a congress, e.g. "usc-113-unified-v1"
func (k ArtifactKind) Tag(congress int) string {
	return fmt.Sprintf("usc-%d-%s", congress, strings.ReplaceAll(string(k), "_", "-"))
}

// FileName returns the local table file name for a congress
func (k ArtifactKind) FileName(congress int) string {
	return k.Tag(congress) + ".parquet"
}

// LocalPath returns the table file path under baseDir
func (k ArtifactKind) LocalPath(baseDir string, congress int) string {
	return filepath.Join(baseDir, k.FileName(congress))
}

// RepoPath returns the destination path inside the aggregate dataset repo
func (k ArtifactKind) RepoPath(congress int) string {
	return path.Join("data", string(k), k.FileName(congress))
}

// SessionRepo returns the per-congress dataset repo id for this kind,
// e.g. "hyperdemocracy/usc-113-unified-v1"
func (k ArtifactKind) SessionRepo(namespace string, congress int) string {
	if namespace == "" {
		return k.Tag(congress)
	}
	return namespace + "/" + k.Tag(congress)
}
