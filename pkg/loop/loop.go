package loop

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Epoch is a major phase of the protagonist's journey through the loops.
type Epoch string

const (
	EpochNaive     Epoch = "naive"
	EpochMapping   Epoch = "mapping"
	EpochObsession Epoch = "obsession"
	EpochRuthless  Epoch = "ruthless"
	EpochSynthesis Epoch = "synthesis"
)

var epochOrder = []Epoch{EpochNaive, EpochMapping, EpochObsession, EpochRuthless, EpochSynthesis}

// Epochs returns all epochs in progression order.
func Epochs() []Epoch {
	return slices.Clone(epochOrder)
}

// ParseEpoch converts a string into an Epoch.
func ParseEpoch(s string) (Epoch, error) {
	e := Epoch(strings.ToLower(strings.TrimSpace(s)))
	if e.Index() < 0 {
		return "", fmt.Errorf("invalid epoch: %q", s)
	}
	return e, nil
}

// Index returns the ordinal position of the epoch, or -1 if it is unknown.
func (e Epoch) Index() int {
	return slices.Index(epochOrder, e)
}

// Valid reports whether e is a known epoch.
func (e Epoch) Valid() bool {
	return e.Index() >= 0
}

// IsForwardProgression reports whether moving from one epoch to another keeps
// or advances the ordinal position. Regressions are legal but notable.
func IsForwardProgression(from, to Epoch) bool {
	return to.Index() >= from.Index()
}

// Common loop tags.
const (
	TagFirstLoop       = "first_loop"
	TagDeath           = "death"
	TagExplosion       = "explosion"
	TagSisterSaved     = "sister_saved"
	TagSisterDead      = "sister_dead"
	TagVillainCaught   = "villain_caught"
	TagVillainEscaped  = "villain_escaped"
	TagBombDefused     = "bomb_defused"
	TagPerfectRun      = "perfect_run"
	TagShortLoop       = "short_loop"
	TagBreakthrough    = "breakthrough"
	TagAnchor          = "anchor"
	TagTerminatedEarly = "terminated_early"
)

// ShortLoopThreshold is the trace length below which a loop counts as short.
const ShortLoopThreshold = 4

// HellLoopThreshold is the attempt count at which a sub-loop becomes a hell loop.
const HellLoopThreshold = 50

// ErrNotFound is returned by lookups when a loop, class, or sub-loop does not exist.
var ErrNotFound = errors.New("not found")

// NewLoopID returns a fresh loop identifier.
func NewLoopID() string { return "loop-" + shortID() }

// NewClassID returns a fresh equivalence class identifier.
func NewClassID() string { return "class-" + shortID() }

// NewSubLoopID returns a fresh sub-loop identifier.
func NewSubLoopID() string { return "subloop-" + shortID() }

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Loop is one complete traversal of the day graph.
type Loop struct {
	ID            string    `json:"id"`
	ParentID      string    `json:"parent_id,omitempty"`
	Epoch         Epoch     `json:"epoch"`
	KeyChoices    uint64    `json:"key_choices"`
	OutcomeHash   string    `json:"outcome_hash"`
	KnowledgeID   string    `json:"knowledge_id"`
	MoodID        string    `json:"mood_id,omitempty"`
	Tags          []string  `json:"tags"`
	DecisionTrace []string  `json:"decision_trace"`
	CreatedAt     time.Time `json:"created_at"`
	Notes         string    `json:"notes,omitempty"`
	ClassID       string    `json:"class_id,omitempty"`
}

// New creates an empty loop in the given epoch. An empty epoch defaults to naive.
func New(epoch Epoch) *Loop {
	if epoch == "" {
		epoch = EpochNaive
	}
	return &Loop{
		ID:            NewLoopID(),
		Epoch:         epoch,
		Tags:          []string{},
		DecisionTrace: []string{},
		CreatedAt:     time.Now().UTC(),
	}
}

// AddTag adds a tag if it is not already present.
func (l *Loop) AddTag(tag string) {
	if !l.HasTag(tag) {
		l.Tags = append(l.Tags, tag)
	}
}

// HasTag reports whether the loop carries tag.
func (l *Loop) HasTag(tag string) bool {
	return slices.Contains(l.Tags, tag)
}

// IsDeathLoop reports whether the loop ended in death.
func (l *Loop) IsDeathLoop() bool {
	return l.HasTag(TagDeath)
}

// IsShortLoop reports whether the decision trace is shorter than threshold.
func (l *Loop) IsShortLoop(threshold int) bool {
	return len(l.DecisionTrace) < threshold
}

// EquivalenceKey returns the pair used to group loops into classes.
func (l *Loop) EquivalenceKey() (string, string) {
	return l.OutcomeHash, l.KnowledgeID
}

// Equivalent reports whether two loops share outcome and knowledge state.
func Equivalent(a, b *Loop) bool {
	return a.OutcomeHash == b.OutcomeHash && a.KnowledgeID == b.KnowledgeID
}

// SubLoop is a nested reset within a single loop: the protagonist rewinds to
// an earlier time slot and retries a window of the day.
type SubLoop struct {
	ID              string   `json:"id"`
	ParentLoopID    string   `json:"parent_loop_id"`
	StartTime       int      `json:"start_time"`
	EndTime         int      `json:"end_time"`
	AttemptsCount   int      `json:"attempts_count"`
	BestOutcomeHash string   `json:"best_outcome_hash,omitempty"`
	KnowledgeGained []string `json:"knowledge_gained"`
	EmotionalEffect string   `json:"emotional_effect"`
}

// ErrInvalidWindow is returned when a sub-loop window does not move forward in time.
var ErrInvalidWindow = errors.New("end_time must be greater than start_time")

// NewSubLoop creates a sub-loop over [start, end). It fails when end <= start.
func NewSubLoop(parentLoopID string, start, end int) (*SubLoop, error) {
	if end <= start {
		return nil, fmt.Errorf("sub-loop window %d..%d: %w", start, end, ErrInvalidWindow)
	}
	return &SubLoop{
		ID:              NewSubLoopID(),
		ParentLoopID:    parentLoopID,
		StartTime:       start,
		EndTime:         end,
		AttemptsCount:   1,
		KnowledgeGained: []string{},
		EmotionalEffect: "neutral",
	}, nil
}

// Duration returns the number of time slots in the window.
func (s *SubLoop) Duration() int {
	return s.EndTime - s.StartTime
}

// IsHellLoop reports whether the protagonist has been trapped in the window
// for at least threshold attempts.
func (s *SubLoop) IsHellLoop(threshold int) bool {
	return s.AttemptsCount >= threshold
}

// MaxClassSamples bounds the number of sample loop ids kept per class.
const MaxClassSamples = 5

// Class groups loops that share both outcome hash and knowledge id.
type Class struct {
	ID               string    `json:"id"`
	OutcomeHash      string    `json:"outcome_hash"`
	KnowledgeID      string    `json:"knowledge_id"`
	KnowledgeDelta   []string  `json:"knowledge_delta"`
	MoodDelta        string    `json:"mood_delta,omitempty"`
	Count            int       `json:"count"`
	RepresentativeID string    `json:"representative_id,omitempty"`
	SampleIDs        []string  `json:"sample_ids"`
	CreatedAt        time.Time `json:"created_at"`
	Notes            string    `json:"notes,omitempty"`
}

// NewClass creates a class whose representative is l.
func NewClass(l *Loop) *Class {
	return &Class{
		ID:               NewClassID(),
		OutcomeHash:      l.OutcomeHash,
		KnowledgeID:      l.KnowledgeID,
		KnowledgeDelta:   []string{},
		Count:            1,
		RepresentativeID: l.ID,
		SampleIDs:        []string{l.ID},
		CreatedAt:        time.Now().UTC(),
	}
}

// AddLoop records another member of the class.
func (c *Class) AddLoop(loopID string) {
	c.Count++
	if len(c.SampleIDs) < MaxClassSamples {
		c.SampleIDs = append(c.SampleIDs, loopID)
	}
}

// EquivalenceKey returns the pair shared by every member of the class.
func (c *Class) EquivalenceKey() (string, string) {
	return c.OutcomeHash, c.KnowledgeID
}

// CompressionRatio returns how many loops the class stands for per sample.
func (c *Class) CompressionRatio() float64 {
	if len(c.SampleIDs) == 0 {
		return 0
	}
	return float64(c.Count) / float64(len(c.SampleIDs))
}
