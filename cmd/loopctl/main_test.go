package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/CrazyDubya/Loop/cmd/loopctl/commands"
	"github.com/rs/zerolog"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"invalid graph", fmt.Errorf("day.yaml: %w", commands.ErrValidationFailed), exitRejected},
		{"integrity", commands.ErrIntegrity, exitRejected},
		{"operator", fmt.Errorf("cause: %w", commands.ErrOperatorFailed), exitOperator},
		{"other", errors.New("disk full"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestLevelFromEnv(t *testing.T) {
	tests := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"DEBUG":   zerolog.DebugLevel,
		" warn ":  zerolog.WarnLevel,
		"trace":   zerolog.TraceLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := levelFromEnv(in); got != want {
			t.Errorf("levelFromEnv(%q) = %s, want %s", in, got, want)
		}
	}
}
