package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperdemocracy/congressprep/internal/model"
	"gopkg.in/yaml.v3"
)

func TestCongressList(t *testing.T) {
	cfg := model.DefaultConfig()

	got, err := congressList(nil, cfg)
	if err != nil || len(got) != len(cfg.Congress.Numbers) {
		t.Errorf("expected configured congresses, got %v (%v)", got, err)
	}

	got, err = congressList([]int{113}, cfg)
	if err != nil || len(got) != 1 || got[0] != 113 {
		t.Errorf("expected flag value, got %v (%v)", got, err)
	}

	if _, err := congressList([]int{0}, cfg); err == nil {
		t.Error("expected error for congress 0")
	}

	cfg.Congress.Numbers = nil
	if _, err := congressList(nil, cfg); err == nil {
		t.Error("expected error with no congresses")
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".congressprep", "config.yaml")

	if err := writeDefaultConfig(path); err != nil {
		t.Fatalf("writeDefaultConfig failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var cfg model.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written config is not valid YAML: %v", err)
	}
	if cfg.Hub.Namespace != "hyperdemocracy" || cfg.Hub.AggregateRepo != "us-congress" {
		t.Errorf("unexpected hub config: %+v", cfg.Hub)
	}
	if strings.Contains(string(data), "token:") {
		t.Error("expected token never written to the config file")
	}

	if err := writeDefaultConfig(path); err == nil {
		t.Error("expected error when the config file already exists")
	}
}

func TestKindNames(t *testing.T) {
	names := kindNames()
	for _, k := range model.ArtifactKinds {
		if !strings.Contains(names, string(k)) {
			t.Errorf("expected %s in %q", k, names)
		}
	}
}
