package route

import (
	"strings"
	"testing"

	"github.com/jpalmerr/tokenfan/internal/pool"
)

func sampleFamilies() []Family {
	return []Family{
		{
			Name:       "ind",
			Targets:    []string{"IND"},
			ActionURL:  "https://ind.example.com/like",
			StatusURL:  "https://ind.example.com/show",
			ActionPool: "token_ind.json",
			StatusPool: "token_ind_visit.json",
		},
		{
			Name:       "us",
			Targets:    []string{"br", "US", "SAC", "NA"},
			ActionURL:  "https://us.example.com/like",
			StatusURL:  "https://us.example.com/show",
			ActionPool: "token_br.json",
			StatusPool: "token_br_visit.json",
		},
		{
			Name:       "bd",
			Targets:    []string{"BD"},
			Fallback:   true,
			ActionURL:  "https://bp.example.com/like",
			StatusURL:  "https://bp.example.com/show",
			ActionPool: "token_bd.json",
			StatusPool: "token_bd_visit.json",
		},
	}
}

func TestTable_Resolve(t *testing.T) {
	table, err := NewTable(sampleFamilies())
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}

	tests := []struct {
		target string
		want   string
	}{
		{"IND", "ind"},
		{"ind", "ind"},
		{" BR ", "us"},
		{"NA", "us"},
		{"BD", "bd"},
		{"SG", "bd"}, // unknown -> fallback
	}
	for _, tt := range tests {
		f, ok := table.Resolve(tt.target)
		if !ok {
			t.Errorf("Resolve(%q) not found", tt.target)
			continue
		}
		if f.Name != tt.want {
			t.Errorf("Resolve(%q) = %s, want %s", tt.target, f.Name, tt.want)
		}
	}
}

func TestTable_NoFallback(t *testing.T) {
	families := sampleFamilies()
	families[2].Fallback = false

	table, err := NewTable(families)
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}
	if _, ok := table.Resolve("SG"); ok {
		t.Error("Resolve(SG) should fail without a fallback family")
	}
	if _, ok := table.PoolFile("SG", pool.PurposeAction); ok {
		t.Error("PoolFile(SG) should fail without a fallback family")
	}
}

func TestTable_PoolFile(t *testing.T) {
	table, _ := NewTable(sampleFamilies())

	if path, ok := table.PoolFile("US", pool.PurposeAction); !ok || path != "token_br.json" {
		t.Errorf("PoolFile(US, action) = %q, %v", path, ok)
	}
	if path, ok := table.PoolFile("IND", pool.PurposeStatus); !ok || path != "token_ind_visit.json" {
		t.Errorf("PoolFile(IND, status) = %q, %v", path, ok)
	}
}

func TestTable_Targets(t *testing.T) {
	table, _ := NewTable(sampleFamilies())

	got := strings.Join(table.Targets(), ",")
	if got != "IND,BR,US,SAC,NA,BD" {
		t.Errorf("Targets() = %s", got)
	}
}

func TestNewTable_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]Family) []Family
		errSub string
	}{
		{"empty", func([]Family) []Family { return nil }, "at least one family"},
		{"missing name", func(f []Family) []Family { f[0].Name = ""; return f }, "name is required"},
		{"duplicate name", func(f []Family) []Family { f[1].Name = "ind"; return f }, "duplicate family"},
		{"missing url", func(f []Family) []Family { f[0].StatusURL = ""; return f }, "URLs are required"},
		{"duplicate target", func(f []Family) []Family { f[1].Targets = append(f[1].Targets, "ind"); return f }, "listed in families"},
		{"two fallbacks", func(f []Family) []Family { f[0].Fallback = true; return f }, "both marked fallback"},
		{"no targets", func(f []Family) []Family { f[0].Targets = nil; return f }, "at least one target"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(tt.mutate(sampleFamilies()))
			if err == nil {
				t.Fatal("NewTable() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errSub) {
				t.Errorf("error = %v, want containing %q", err, tt.errSub)
			}
		})
	}
}
