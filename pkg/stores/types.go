package stores

import (
	"context"
	"errors"
	"fmt"

	"github.com/CrazyDubya/Loop/pkg/loop"
)

// Backend names.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// DefaultListLimit caps ListLoops when LoopFilter.Limit is unset.
const DefaultListLimit = 1000

// ErrAlreadyExists is returned when creating a record whose id is taken.
var ErrAlreadyExists = errors.New("already exists")

// LoopFilter selects loops. Empty fields match everything.
type LoopFilter struct {
	Epoch       loop.Epoch
	OutcomeHash string
	KnowledgeID string
	ClassID     string
	ParentID    string
	Limit       int
	Offset      int
}

func (f LoopFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

func (f LoopFilter) matches(l *loop.Loop) bool {
	return (f.Epoch == "" || l.Epoch == f.Epoch) &&
		(f.OutcomeHash == "" || l.OutcomeHash == f.OutcomeHash) &&
		(f.KnowledgeID == "" || l.KnowledgeID == f.KnowledgeID) &&
		(f.ClassID == "" || l.ClassID == f.ClassID) &&
		(f.ParentID == "" || l.ParentID == f.ParentID)
}

// Stats summarizes a store's contents.
type Stats struct {
	TotalLoops       int            `json:"total_loops"`
	TotalClasses     int            `json:"total_classes"`
	TotalSubLoops    int            `json:"total_subloops"`
	CompressionRatio float64        `json:"compression_ratio"`
	LoopsByEpoch     map[string]int `json:"loops_by_epoch"`
}

// Store defines the persistence layer for loops, sub-loops and equivalence
// classes. Lookups of missing records return an error wrapping
// loop.ErrNotFound.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
	HealthCheck(ctx context.Context) error

	// Loops
	CreateLoop(ctx context.Context, l *loop.Loop) (string, error)
	GetLoop(ctx context.Context, id string) (*loop.Loop, error)
	UpdateLoop(ctx context.Context, l *loop.Loop) error
	DeleteLoop(ctx context.Context, id string) error
	ListLoops(ctx context.Context, filter LoopFilter) ([]*loop.Loop, error)
	CountLoops(ctx context.Context, filter LoopFilter) (int, error)
	Lineage(ctx context.Context, id string) ([]*loop.Loop, error)

	// Sub-loops
	CreateSubLoop(ctx context.Context, s *loop.SubLoop) error
	GetSubLoop(ctx context.Context, id string) (*loop.SubLoop, error)
	ListSubLoops(ctx context.Context, loopID string) ([]*loop.SubLoop, error)
	DeleteSubLoop(ctx context.Context, id string) error

	// Equivalence classes
	CreateClass(ctx context.Context, c *loop.Class) error
	GetClass(ctx context.Context, id string) (*loop.Class, error)
	FindClass(ctx context.Context, outcomeHash, knowledgeID string) (*loop.Class, error)
	UpdateClass(ctx context.Context, c *loop.Class) error
	DeleteClass(ctx context.Context, id string) error
	ListClasses(ctx context.Context) ([]*loop.Class, error)
	AssignClass(ctx context.Context, l *loop.Loop) (*loop.Class, error)

	// Maintenance
	Stats(ctx context.Context) (*Stats, error)
	Clear(ctx context.Context) error
}

// Options selects and configures a backend for Open.
type Options struct {
	Backend  string
	Path     string
	InMemory bool
}

// Open creates the configured store, connects it and applies migrations.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		store Store
		err   error
	)
	switch opts.Backend {
	case BackendSQLite, "":
		path := opts.Path
		if opts.InMemory {
			path = ":memory:"
		}
		store, err = NewSQLiteStore(Config{Path: path})
	case BackendBadger:
		store, err = NewBadgerStore(BadgerConfig{Path: opts.Path, InMemory: opts.InMemory})
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", opts.Backend)
	}
	if err != nil {
		return nil, err
	}

	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, loop.ErrNotFound)
}

func alreadyExists(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrAlreadyExists)
}
