package loop

import (
	"testing"
)

func TestOutcomeHash_KnownVectors(t *testing.T) {
	tests := []struct {
		name         string
		survivors    []string
		deaths       []string
		stateChanges []string
		ending       string
		want         string
	}{
		{
			name:         "survived with sister",
			survivors:    []string{"SISTER", "PROTAGONIST"},
			stateChanges: []string{"SISTER_ALIVE"},
			ending:       "survived",
			want:         "313d64e27ef8d0da",
		},
		{
			name:   "protagonist death",
			deaths: []string{"PROTAGONIST"},
			ending: "death",
			want:   "e36fc7b41d408535",
		},
		{
			name:         "explosion",
			survivors:    []string{"VILLAIN", "PROTAGONIST"},
			deaths:       []string{"SISTER"},
			stateChanges: []string{"VILLAIN_ESCAPED", "SISTER_DEAD", "BOMB_EXPLODED"},
			ending:       "explosion",
			want:         "247d75bb3284e359",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OutcomeHash(tt.survivors, tt.deaths, tt.stateChanges, tt.ending)
			if got != tt.want {
				t.Errorf("OutcomeHash() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestKnowledgeID_KnownVectors(t *testing.T) {
	if got := KnowledgeID(nil, nil, nil); got != "6d345c4e1407038a" {
		t.Errorf("empty knowledge id = %s", got)
	}
	if got := KnowledgeID([]string{"SECRET_X"}, nil, nil); got != "b2d291377fc9df85" {
		t.Errorf("SECRET_X knowledge id = %s", got)
	}
	// Non-ASCII and quote characters are escaped the same way as stored hashes.
	if got := KnowledgeID([]string{"café", `"q"`}, nil, nil); got != "eba5a008bd233010" {
		t.Errorf("escaped knowledge id = %s", got)
	}
	// DEL is escaped like any other character outside printable ASCII.
	if got := KnowledgeID([]string{"a\x7fb"}, nil, nil); got != "95cdd163783e8ae9" {
		t.Errorf("DEL knowledge id = %s", got)
	}
}

func TestMoodID_KnownVectors(t *testing.T) {
	if got := MoodID("neutral", nil, 0.5); got != "cf730c115b50f187" {
		t.Errorf("MoodID(neutral, 0.5) = %s", got)
	}
	if got := MoodID("neutral", nil, 0.333); got != "2d5a2458fbb6932e" {
		t.Errorf("MoodID(neutral, 0.333) = %s", got)
	}
	if got := MoodID("numb", []string{"fire", "bridge"}, 1.0); got != "209a8b5055631f7a" {
		t.Errorf("MoodID(numb, 1.0) = %s", got)
	}
}

func TestHashes_OrderIndependent(t *testing.T) {
	a := []string{"A", "B", "C", "D"}
	permutations := [][]string{
		{"D", "C", "B", "A"},
		{"B", "D", "A", "C"},
		{"C", "A", "D", "B"},
	}

	base := OutcomeHash(a, a, a, "survived")
	baseK := KnowledgeID(a, a, a)
	for _, p := range permutations {
		if got := OutcomeHash(p, p, p, "survived"); got != base {
			t.Errorf("OutcomeHash(%v) = %s, want %s", p, got, base)
		}
		if got := KnowledgeID(p, p, p); got != baseK {
			t.Errorf("KnowledgeID(%v) = %s, want %s", p, got, baseK)
		}
	}
}

func TestOutcomeHash_DoesNotMutateInput(t *testing.T) {
	in := []string{"Z", "A"}
	OutcomeHash(in, nil, nil, "death")
	if in[0] != "Z" || in[1] != "A" {
		t.Errorf("input slice was reordered: %v", in)
	}
}

func TestHashLength(t *testing.T) {
	if got := len(OutcomeHash(nil, nil, nil, "")); got != 16 {
		t.Errorf("hash length = %d, want 16", got)
	}
}
