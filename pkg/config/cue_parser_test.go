package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CrazyDubya/Loop/pkg/engine"
)

const tinyGraphCUE = `
meta: {name: "Tiny", total_time_slots: 2, version: "1.0"}
facts: {discoverable: ["X"], world_state: []}
nodes: [
	{id: "start", time_slot: 0, type: "soft"},
	{id: "learn", time_slot: 1, type: "revelation", effects: ["LEARN:X"]},
	{id: "end", time_slot: 2, type: "death"},
]
transitions: [
	{from: "start", to: "learn", probability: 0.5},
	{from: "learn", to: "end", time_cost: 1},
]
`

func TestCUEParser_ParseInline(t *testing.T) {
	parser := NewCUEParser()
	ctx := context.Background()

	tests := []struct {
		name      string
		content   string
		wantErr   bool
		checkFunc func(*testing.T, *engine.GraphDefinition, []ValidationError)
	}{
		{
			name:    "plain graph",
			content: tinyGraphCUE,
			checkFunc: func(t *testing.T, def *engine.GraphDefinition, _ []ValidationError) {
				if def.Meta.Name != "Tiny" || def.Meta.TotalTimeSlots != 2 {
					t.Errorf("Meta = %+v", def.Meta)
				}
				if len(def.Nodes) != 3 || len(def.Transitions) != 2 {
					t.Fatalf("got %d nodes, %d transitions", len(def.Nodes), len(def.Transitions))
				}
				if def.Nodes[1].Effects[0] != "LEARN:X" {
					t.Errorf("effects = %v", def.Nodes[1].Effects)
				}
				if p := def.Transitions[0].Probability; p == nil || *p != 0.5 {
					t.Errorf("probability = %v", p)
				}
				if tc := def.Transitions[1].TimeCost; tc == nil || *tc != 1 {
					t.Errorf("time_cost = %v", tc)
				}
			},
		},
		{
			name:    "nested under graph",
			content: "graph: {\n" + tinyGraphCUE + "\n}\nnotes: \"ignored\"\n",
			checkFunc: func(t *testing.T, def *engine.GraphDefinition, _ []ValidationError) {
				if len(def.Nodes) != 3 {
					t.Errorf("got %d nodes, want 3", len(def.Nodes))
				}
			},
		},
		{
			name:    "meta defaults",
			content: `nodes: [{id: "only", time_slot: 0}], transitions: []`,
			checkFunc: func(t *testing.T, def *engine.GraphDefinition, _ []ValidationError) {
				if def.Meta.Name != "" || def.Meta.TotalTimeSlots != 0 {
					t.Errorf("Meta = %+v", def.Meta)
				}
				if len(def.Facts.Discoverable) != 0 {
					t.Errorf("Discoverable = %#v", def.Facts.Discoverable)
				}
			},
		},
		{
			name:    "unknown node type",
			content: strings.Replace(tinyGraphCUE, `type: "soft"`, `type: "boring"`, 1),
			wantErr: true,
		},
		{
			name:    "probability out of range",
			content: strings.Replace(tinyGraphCUE, "probability: 0.5", "probability: 2", 1),
			wantErr: true,
		},
		{
			name:    "syntax error",
			content: "nodes: [",
			wantErr: true,
			checkFunc: func(t *testing.T, _ *engine.GraphDefinition, errs []ValidationError) {
				if errs[0].Line == 0 {
					t.Errorf("error has no position: %+v", errs[0])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, errs := parser.ParseInline(ctx, tt.content)
			if (len(errs) > 0) != tt.wantErr {
				t.Fatalf("ParseInline() errors = %v, wantErr %v", errs, tt.wantErr)
			}
			if tt.checkFunc != nil {
				tt.checkFunc(t, def, errs)
			}
		})
	}
}

func TestCUEParser_ParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "day.cue")
	if err := os.WriteFile(path, []byte(tinyGraphCUE), 0o600); err != nil {
		t.Fatalf("failed to write graph: %v", err)
	}

	parser := NewCUEParser()
	def, errs, err := parser.Parse(context.Background(), path)
	if err != nil || len(errs) > 0 {
		t.Fatalf("Parse() = %v, %v", errs, err)
	}
	if len(def.Nodes) != 3 {
		t.Errorf("got %d nodes, want 3", len(def.Nodes))
	}

	bad := filepath.Join(dir, "bad.cue")
	content := strings.Replace(tinyGraphCUE, "time_slot: 1", "time_slot: -1", 1)
	if err := os.WriteFile(bad, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write graph: %v", err)
	}
	_, errs, err = parser.Parse(context.Background(), bad)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(errs) == 0 {
		t.Fatal("Parse() accepted a negative time slot")
	}

	if _, _, err := parser.Parse(context.Background(), filepath.Join(dir, "missing.cue")); err == nil {
		t.Error("Parse() of a missing file returned no error")
	}
}
