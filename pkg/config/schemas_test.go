package config

import (
	"context"
	"slices"
	"testing"

	"github.com/CrazyDubya/Loop/pkg/engine"
)

func TestSchemaRegistry_BuiltIns(t *testing.T) {
	sr := NewSchemaRegistry()

	want := []string{SchemaDayGraph, SchemaNode, SchemaTransition}
	got := sr.ListSchemas()
	for _, name := range want {
		if !slices.Contains(got, name) {
			t.Errorf("ListSchemas() = %v, missing %s", got, name)
		}
	}
	if _, ok := sr.GetSchema("#Nope"); ok {
		t.Error("GetSchema() found an unregistered schema")
	}
}

func TestSchemaRegistry_ValidateGraph(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	if err := sr.ValidateGraph(ctx, engine.SampleDefinition()); err != nil {
		t.Fatalf("ValidateGraph(sample) error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(def *engine.GraphDefinition)
	}{
		{
			name:   "unknown node type",
			mutate: func(def *engine.GraphDefinition) { def.Nodes[0].Type = "boring" },
		},
		{
			name:   "negative time slot",
			mutate: func(def *engine.GraphDefinition) { def.Nodes[1].TimeSlot = -1 },
		},
		{
			name: "probability above one",
			mutate: func(def *engine.GraphDefinition) {
				p := 1.5
				def.Transitions[0].Probability = &p
			},
		},
		{
			name:   "empty transition target",
			mutate: func(def *engine.GraphDefinition) { def.Transitions[0].To = "" },
		},
		{
			name: "unknown fate",
			mutate: func(def *engine.GraphDefinition) {
				def.Outcomes = &engine.OutcomeDefinition{Rules: []engine.OutcomeRule{{Fact: "F", Character: "C", Fate: "lingers"}}}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := engine.SampleDefinition()
			tt.mutate(def)
			if err := sr.ValidateGraph(ctx, def); err == nil {
				t.Error("ValidateGraph() accepted an invalid graph")
			}
		})
	}
}

func TestSchemaRegistry_RegisterSchemas(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	if err := sr.RegisterSchemas(`#Epoch: "naive" | "mapping"`, "#Epoch"); err != nil {
		t.Fatalf("RegisterSchemas() error = %v", err)
	}
	if err := sr.ValidateAgainstSchema(ctx, "#Epoch", "mapping"); err != nil {
		t.Errorf("ValidateAgainstSchema(mapping) error = %v", err)
	}
	if err := sr.ValidateAgainstSchema(ctx, "#Epoch", "chaos"); err == nil {
		t.Error("ValidateAgainstSchema(chaos) passed")
	}
	if err := sr.RegisterSchemas(`#A: int`, "#B"); err == nil {
		t.Error("RegisterSchemas() accepted a missing definition")
	}
	if err := sr.RegisterSchemas(`#A: {`, "#A"); err == nil {
		t.Error("RegisterSchemas() accepted malformed CUE")
	}
}
