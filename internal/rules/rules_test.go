package rules

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/desertthunder/cull/internal/curation"
	"github.com/desertthunder/cull/internal/models"
	"github.com/desertthunder/cull/internal/shared"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{name: "empty", expr: ""},
		{name: "whitespace", expr: "   "},
		{name: "comparison", expr: "popularity >= 40"},
		{name: "compound", expr: "play_count >= 10000000 || (artist == 'Radiohead' && !explicit)"},
		{name: "string extension", expr: "!name.lowerAscii().contains('remix')"},
		{name: "syntax error", expr: "popularity >=", wantErr: true},
		{name: "unknown variable", expr: "tempo > 120", wantErr: true},
		{name: "non bool", expr: "popularity + 1", wantErr: true},
		{name: "type mismatch", expr: "name > 3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := Compile(tt.expr)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidRule) {
					t.Errorf("expected ErrInvalidRule, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}
			if rule == nil {
				t.Fatal("expected rule")
			}
		})
	}
}

func TestRule_Keep(t *testing.T) {
	track := models.Track{
		ID:           "t1",
		Name:         "Paranoid Android (Remix)",
		Artist:       "Radiohead",
		Popularity:   72,
		PlayCount:    20_000_000,
		HasPlayCount: true,
		DurationMS:   387000,
		Explicit:     false,
	}

	tests := []struct {
		expr string
		want bool
	}{
		{"popularity >= 40", true},
		{"popularity > 80", false},
		{"play_count >= 10000000", true},
		{"explicit", false},
		{"duration_ms < 300000", false},
		{"artist == 'Radiohead'", true},
		{"!name.lowerAscii().contains('remix')", false},
		{"id == 't1'", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			rule, err := Compile(tt.expr)
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}
			if got := rule.Keep(track); got != tt.want {
				t.Errorf("Keep() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRule_PlayCountScenario(t *testing.T) {
	rule, err := Compile("play_count >= 10000000")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	removals := curation.NewRemovalSet()
	filter := curation.NewAutoFilter(curation.FilterOpts{Keep: rule.Predicate(), Removals: removals})
	surfaced := filter.Apply(models.Batch{
		{ID: "five", PlayCount: 5_000_000, HasPlayCount: true},
		{ID: "twenty", PlayCount: 20_000_000, HasPlayCount: true},
		{ID: "ten", PlayCount: 10_000_000, HasPlayCount: true},
	})

	if len(surfaced) != 2 || surfaced[0].ID != "twenty" || surfaced[1].ID != "ten" {
		t.Errorf("unexpected surfaced %+v", surfaced)
	}
	if removals.Len() != 1 || !removals.Contains(models.EntryKey("five", 0)) {
		t.Error("expected only the 5M track in the removal set")
	}
}

func TestRule_UnknownPlayCount(t *testing.T) {
	track := models.Track{ID: "a", Popularity: 95}

	tests := []struct {
		expr string
		want bool
	}{
		{"play_count >= 10000000", true},
		{"play_count < 100", true},
		{"!has_play_count || play_count >= 10000000", true},
		{"has_play_count && play_count >= 10000000", false},
		{"has_play_count", false},
		{"play_count >= 10000000 || popularity < 50", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			rule, err := Compile(tt.expr)
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}
			if got := rule.Keep(track); got != tt.want {
				t.Errorf("Keep() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("whole page survives a play count rule", func(t *testing.T) {
		rule, _ := Compile("play_count >= 10000000")
		var buf bytes.Buffer
		rule.WithLogger(shared.NewLogger(&buf))

		removals := curation.NewRemovalSet()
		filter := curation.NewAutoFilter(curation.FilterOpts{Keep: rule.Predicate(), Removals: removals})
		surfaced := filter.Apply(models.Batch{{ID: "a"}, {ID: "b", Position: 1}, {ID: "c", Position: 2}})

		if len(surfaced) != 3 || removals.Len() != 0 {
			t.Errorf("tracks without a play count should all be kept, surfaced %d", len(surfaced))
		}
		if n := strings.Count(buf.String(), "rule evaluation failed"); n != 1 {
			t.Errorf("expected one warning, got %d in %q", n, buf.String())
		}
	})
}

func TestRule_EvalErrors(t *testing.T) {
	rule, err := Compile("100 / (popularity - popularity) > 1")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	if _, err := rule.Eval(models.Track{Popularity: 5}); err == nil {
		t.Error("expected division by zero error")
	}

	var buf bytes.Buffer
	rule.WithLogger(shared.NewLogger(&buf))
	if !rule.Keep(models.Track{ID: "x", Popularity: 5}) {
		t.Error("tracks the rule cannot evaluate should be kept")
	}
	if !strings.Contains(buf.String(), "rule evaluation failed") {
		t.Errorf("expected warning, got %q", buf.String())
	}
}

func TestRule_Empty(t *testing.T) {
	rule, err := Compile("")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if !rule.Empty() || rule.String() != "" {
		t.Error("empty rule should report empty")
	}
	if !rule.Predicate()(models.Track{}) {
		t.Error("empty rule should keep everything")
	}
}
