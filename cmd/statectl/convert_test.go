package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleYAML = `
prefix: "-"
currency_symbol: $
players:
  "123456789012345678":
    balance: 1500
    level: 3
    xp: 12.5
income:
  "42": 100
`

func TestYAMLToJSON(t *testing.T) {
	out, err := yamlToJSON([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("yamlToJSON() error = %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatal(err)
	}
	players := got["players"].(map[string]any)
	p := players["123456789012345678"].(map[string]any)
	if p["balance"].(float64) != 1500 || p["xp"].(float64) != 12.5 {
		t.Errorf("player = %v", p)
	}
	if got["currency_symbol"] != "$" {
		t.Errorf("currency_symbol = %v", got["currency_symbol"])
	}
}

func TestYAMLToJSON_Rejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "not yaml", in: "players: [unclosed"},
		{name: "sequence", in: "- a\n- b\n"},
		{name: "wrong shape", in: "players: 5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := yamlToJSON([]byte(tt.in)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestRoundTripThroughFiles(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "state.yaml")
	mid := filepath.Join(dir, "config.json")
	back := filepath.Join(dir, "back.yaml")
	if err := os.WriteFile(in, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := run(in, mid, false); err != nil {
		t.Fatalf("run() yaml->json error = %v", err)
	}
	if err := run(mid, back, true); err != nil {
		t.Fatalf("run() json->yaml error = %v", err)
	}
	b, err := os.ReadFile(back)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"balance: 1500", "xp: 12.5", `"123456789012345678":`} {
		if !strings.Contains(string(b), want) {
			t.Errorf("yaml output missing %q:\n%s", want, b)
		}
	}
}
