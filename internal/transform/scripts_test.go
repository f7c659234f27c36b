package transform

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadScripts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scripts.yaml")
	data := `script_type: cel
defaults:
  config_id: web-1
  boost: 1.5
fields:
  - name: url
    script: '"https://example.com/" + cell1'
  - name: title
    script: cell2
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	set, err := LoadScripts(path)
	if err != nil {
		t.Fatalf("LoadScripts: %v", err)
	}
	if set.ScriptType != "cel" {
		t.Errorf("ScriptType = %q, want cel", set.ScriptType)
	}
	if len(set.Fields) != 2 || set.Fields[0].Name != "url" || set.Fields[1].Name != "title" {
		t.Fatalf("Fields = %+v", set.Fields)
	}
	if set.Defaults["config_id"] != "web-1" || set.Defaults["boost"] != 1.5 {
		t.Errorf("Defaults = %v", set.Defaults)
	}
}

func TestParseScripts_Invalid(t *testing.T) {
	tests := map[string]string{
		"no name":   "fields:\n  - script: cell1\n",
		"duplicate": "fields:\n  - name: a\n    script: cell1\n  - name: a\n    script: cell2\n",
		"bad yaml":  "fields: [\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseScripts([]byte(data)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseScripts_Empty(t *testing.T) {
	set, err := ParseScripts(nil)
	if err != nil {
		t.Fatalf("ParseScripts: %v", err)
	}
	if set.Defaults == nil || len(set.Fields) != 0 {
		t.Fatalf("set = %+v", set)
	}
}

func TestLoadScripts_Missing(t *testing.T) {
	if _, err := LoadScripts(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Fatal("expected error")
	}
}
