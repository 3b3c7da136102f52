package stores

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/CrazyDubya/Loop/pkg/loop"
	"github.com/CrazyDubya/Loop/pkg/telemetry"
	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// Key prefixes of the badger layout.
const (
	prefixLoop     = "loop/"
	prefixSubLoop  = "subloop/"
	prefixLoopSub  = "loopsub/"
	prefixClass    = "class/"
	prefixClassKey = "classkey/"
	keySchema      = "meta/schema_version"
)

const badgerSchemaVersion = "1"

// BadgerConfig holds badger store configuration.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in memory.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives badger's internal log output. Nil disables it.
	Logger *zerolog.Logger
}

// BadgerStore implements the Store interface on an embedded badger database.
type BadgerStore struct {
	db      *badger.DB
	cfg     BadgerConfig
	classMu sync.Mutex
}

// NewBadgerStore creates a badger store. Call Init before use.
func NewBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}
	return &BadgerStore{cfg: cfg}, nil
}

type badgerLogger struct {
	log zerolog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error().Msgf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn().Msgf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Info().Msgf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug().Msgf(format, args...)
}

// Init opens the database.
func (b *BadgerStore) Init(_ context.Context) error {
	var opts badger.Options
	if b.cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(b.cfg.Path, 0o750); err != nil {
			return fmt.Errorf("create database directory %s: %w", b.cfg.Path, err)
		}
		opts = badger.DefaultOptions(b.cfg.Path)
	}

	opts = opts.WithSyncWrites(b.cfg.SyncWrites).WithNumVersionsToKeep(1)
	if b.cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{log: b.cfg.Logger.With().Str("component", "badger").Logger()})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("open badger database: %w", err)
	}
	b.db = db
	return nil
}

// Migrate records the key layout version, refusing databases written with
// a different one.
func (b *BadgerStore) Migrate(_ context.Context) error {
	if b.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keySchema))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return txn.Set([]byte(keySchema), []byte(badgerSchemaVersion))
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			if string(v) != badgerSchemaVersion {
				return fmt.Errorf("unsupported badger schema version %s", v)
			}
			return nil
		})
	})
}

// Close closes the database.
func (b *BadgerStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// HealthCheck verifies the database is open and readable.
func (b *BadgerStore) HealthCheck(_ context.Context) error {
	if b.db == nil || b.db.IsClosed() {
		return fmt.Errorf("database not initialized")
	}
	return b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(keySchema))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

func loopKey(id string) []byte    { return []byte(prefixLoop + id) }
func subLoopKey(id string) []byte { return []byte(prefixSubLoop + id) }
func classKey(id string) []byte   { return []byte(prefixClass + id) }

func loopSubKey(loopID, subID string) []byte {
	return []byte(prefixLoopSub + loopID + "/" + subID)
}

func equivalenceKey(outcomeHash, knowledgeID string) []byte {
	return []byte(prefixClassKey + outcomeHash + "/" + knowledgeID)
}

func getJSON(txn *badger.Txn, key []byte, dest any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(v []byte) error {
		return json.Unmarshal(v, dest)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

func keyExists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// scanPrefix calls fn with the value of every key under prefix.
func scanPrefix(txn *badger.Txn, prefix string, fn func(key, value []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		if err := item.Value(func(v []byte) error {
			return fn(key, v)
		}); err != nil {
			return err
		}
	}
	return nil
}

// scanKeys returns every key under prefix without reading values.
func scanKeys(txn *badger.Txn, prefix string) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}

// CreateLoop stores a new loop and returns its id.
func (b *BadgerStore) CreateLoop(ctx context.Context, l *loop.Loop) (string, error) {
	err := telemetry.RecordStoreOperation(ctx, BackendBadger, "create_loop", func(context.Context) error {
		return b.db.Update(func(txn *badger.Txn) error {
			ok, err := keyExists(txn, loopKey(l.ID))
			if err != nil {
				return err
			}
			if ok {
				return alreadyExists("loop", l.ID)
			}
			return setJSON(txn, loopKey(l.ID), l)
		})
	})
	if err != nil {
		return "", err
	}

	announceLoop(ctx, l)
	return l.ID, nil
}

// GetLoop retrieves a loop by ID
func (b *BadgerStore) GetLoop(ctx context.Context, id string) (*loop.Loop, error) {
	var l loop.Loop
	err := telemetry.RecordStoreOperation(ctx, BackendBadger, "get_loop", func(context.Context) error {
		return b.db.View(func(txn *badger.Txn) error {
			err := getJSON(txn, loopKey(id), &l)
			if errors.Is(err, badger.ErrKeyNotFound) {
				return notFound("loop", id)
			}
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// UpdateLoop replaces a stored loop.
func (b *BadgerStore) UpdateLoop(ctx context.Context, l *loop.Loop) error {
	return telemetry.RecordStoreOperation(ctx, BackendBadger, "update_loop", func(context.Context) error {
		return b.db.Update(func(txn *badger.Txn) error {
			ok, err := keyExists(txn, loopKey(l.ID))
			if err != nil {
				return err
			}
			if !ok {
				return notFound("loop", l.ID)
			}
			return setJSON(txn, loopKey(l.ID), l)
		})
	})
}

// DeleteLoop deletes a loop and its sub-loops.
func (b *BadgerStore) DeleteLoop(ctx context.Context, id string) error {
	return telemetry.RecordStoreOperation(ctx, BackendBadger, "delete_loop", func(context.Context) error {
		return b.db.Update(func(txn *badger.Txn) error {
			ok, err := keyExists(txn, loopKey(id))
			if err != nil {
				return err
			}
			if !ok {
				return notFound("loop", id)
			}

			prefix := prefixLoopSub + id + "/"
			for _, key := range scanKeys(txn, prefix) {
				subID := string(bytes.TrimPrefix(key, []byte(prefix)))
				if err := txn.Delete(subLoopKey(subID)); err != nil {
					return err
				}
				if err := txn.Delete(key); err != nil {
					return err
				}
			}
			return txn.Delete(loopKey(id))
		})
	})
}

func (b *BadgerStore) filterLoops(filter LoopFilter) ([]*loop.Loop, error) {
	var loops []*loop.Loop
	err := b.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, prefixLoop, func(_, v []byte) error {
			var l loop.Loop
			if err := json.Unmarshal(v, &l); err != nil {
				return err
			}
			if filter.matches(&l) {
				loops = append(loops, &l)
			}
			return nil
		})
	})
	return loops, err
}

// ListLoops lists loops matching filter, oldest first.
func (b *BadgerStore) ListLoops(ctx context.Context, filter LoopFilter) ([]*loop.Loop, error) {
	loops := []*loop.Loop{}
	err := telemetry.RecordStoreOperation(ctx, BackendBadger, "list_loops", func(context.Context) error {
		matched, err := b.filterLoops(filter)
		if err != nil {
			return fmt.Errorf("failed to list loops: %w", err)
		}

		slices.SortFunc(matched, func(x, y *loop.Loop) int {
			if c := x.CreatedAt.Compare(y.CreatedAt); c != 0 {
				return c
			}
			return cmp.Compare(x.ID, y.ID)
		})

		start := min(max(filter.Offset, 0), len(matched))
		end := min(start+filter.limit(), len(matched))
		loops = append(loops, matched[start:end]...)
		return nil
	})
	return loops, err
}

// CountLoops counts loops matching filter. Limit and Offset are ignored.
func (b *BadgerStore) CountLoops(ctx context.Context, filter LoopFilter) (int, error) {
	var count int
	err := telemetry.RecordStoreOperation(ctx, BackendBadger, "count_loops", func(context.Context) error {
		matched, err := b.filterLoops(filter)
		count = len(matched)
		return err
	})
	return count, err
}

// Lineage returns the ancestry of id, oldest ancestor first.
func (b *BadgerStore) Lineage(ctx context.Context, id string) ([]*loop.Loop, error) {
	return lineage(ctx, b, id)
}

// CreateSubLoop stores a sub-loop. The parent loop must exist.
func (b *BadgerStore) CreateSubLoop(ctx context.Context, sub *loop.SubLoop) error {
	if sub.EndTime <= sub.StartTime {
		return fmt.Errorf("sub-loop %s: %w", sub.ID, loop.ErrInvalidWindow)
	}
	return telemetry.RecordStoreOperation(ctx, BackendBadger, "create_subloop", func(context.Context) error {
		return b.db.Update(func(txn *badger.Txn) error {
			ok, err := keyExists(txn, loopKey(sub.ParentLoopID))
			if err != nil {
				return err
			}
			if !ok {
				return notFound("loop", sub.ParentLoopID)
			}
			if ok, err = keyExists(txn, subLoopKey(sub.ID)); err != nil {
				return err
			}
			if ok {
				return alreadyExists("sub-loop", sub.ID)
			}

			if err := setJSON(txn, subLoopKey(sub.ID), sub); err != nil {
				return err
			}
			return txn.Set(loopSubKey(sub.ParentLoopID, sub.ID), nil)
		})
	})
}

// GetSubLoop retrieves a sub-loop by ID
func (b *BadgerStore) GetSubLoop(ctx context.Context, id string) (*loop.SubLoop, error) {
	var sub loop.SubLoop
	err := telemetry.RecordStoreOperation(ctx, BackendBadger, "get_subloop", func(context.Context) error {
		return b.db.View(func(txn *badger.Txn) error {
			err := getJSON(txn, subLoopKey(id), &sub)
			if errors.Is(err, badger.ErrKeyNotFound) {
				return notFound("sub-loop", id)
			}
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListSubLoops lists the sub-loops of a loop ordered by start time.
func (b *BadgerStore) ListSubLoops(ctx context.Context, loopID string) ([]*loop.SubLoop, error) {
	subs := []*loop.SubLoop{}
	err := telemetry.RecordStoreOperation(ctx, BackendBadger, "list_subloops", func(context.Context) error {
		return b.db.View(func(txn *badger.Txn) error {
			prefix := prefixLoopSub + loopID + "/"
			for _, key := range scanKeys(txn, prefix) {
				var sub loop.SubLoop
				id := string(bytes.TrimPrefix(key, []byte(prefix)))
				if err := getJSON(txn, subLoopKey(id), &sub); err != nil {
					return fmt.Errorf("failed to read sub-loop %s: %w", id, err)
				}
				subs = append(subs, &sub)
			}
			return nil
		})
	})

	slices.SortFunc(subs, func(x, y *loop.SubLoop) int {
		if c := cmp.Compare(x.StartTime, y.StartTime); c != 0 {
			return c
		}
		return cmp.Compare(x.ID, y.ID)
	})
	return subs, err
}

// DeleteSubLoop deletes a sub-loop.
func (b *BadgerStore) DeleteSubLoop(ctx context.Context, id string) error {
	return telemetry.RecordStoreOperation(ctx, BackendBadger, "delete_subloop", func(context.Context) error {
		return b.db.Update(func(txn *badger.Txn) error {
			var sub loop.SubLoop
			err := getJSON(txn, subLoopKey(id), &sub)
			if errors.Is(err, badger.ErrKeyNotFound) {
				return notFound("sub-loop", id)
			}
			if err != nil {
				return err
			}
			if err := txn.Delete(loopSubKey(sub.ParentLoopID, id)); err != nil {
				return err
			}
			return txn.Delete(subLoopKey(id))
		})
	})
}

// CreateClass stores a new equivalence class.
func (b *BadgerStore) CreateClass(ctx context.Context, c *loop.Class) error {
	err := telemetry.RecordStoreOperation(ctx, BackendBadger, "create_class", func(context.Context) error {
		return b.db.Update(func(txn *badger.Txn) error {
			for _, key := range [][]byte{classKey(c.ID), equivalenceKey(c.OutcomeHash, c.KnowledgeID)} {
				ok, err := keyExists(txn, key)
				if err != nil {
					return err
				}
				if ok {
					return alreadyExists("class", c.ID)
				}
			}

			if err := setJSON(txn, classKey(c.ID), c); err != nil {
				return err
			}
			return txn.Set(equivalenceKey(c.OutcomeHash, c.KnowledgeID), []byte(c.ID))
		})
	})
	if err != nil {
		return err
	}

	announceClass(ctx, c)
	return nil
}

// GetClass retrieves an equivalence class by ID
func (b *BadgerStore) GetClass(ctx context.Context, id string) (*loop.Class, error) {
	var c loop.Class
	err := telemetry.RecordStoreOperation(ctx, BackendBadger, "get_class", func(context.Context) error {
		return b.db.View(func(txn *badger.Txn) error {
			err := getJSON(txn, classKey(id), &c)
			if errors.Is(err, badger.ErrKeyNotFound) {
				return notFound("class", id)
			}
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindClass retrieves the class with the given equivalence key.
func (b *BadgerStore) FindClass(ctx context.Context, outcomeHash, knowledgeID string) (*loop.Class, error) {
	var c loop.Class
	err := telemetry.RecordStoreOperation(ctx, BackendBadger, "find_class", func(context.Context) error {
		return b.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get(equivalenceKey(outcomeHash, knowledgeID))
			if errors.Is(err, badger.ErrKeyNotFound) {
				return notFound("class for", outcomeHash+"/"+knowledgeID)
			}
			if err != nil {
				return err
			}
			id, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			err = getJSON(txn, classKey(string(id)), &c)
			if errors.Is(err, badger.ErrKeyNotFound) {
				return notFound("class", string(id))
			}
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateClass replaces a stored class. The equivalence key cannot change.
func (b *BadgerStore) UpdateClass(ctx context.Context, c *loop.Class) error {
	return telemetry.RecordStoreOperation(ctx, BackendBadger, "update_class", func(context.Context) error {
		return b.db.Update(func(txn *badger.Txn) error {
			var stored loop.Class
			err := getJSON(txn, classKey(c.ID), &stored)
			if errors.Is(err, badger.ErrKeyNotFound) {
				return notFound("class", c.ID)
			}
			if err != nil {
				return err
			}

			updated := *c
			updated.OutcomeHash, updated.KnowledgeID = stored.OutcomeHash, stored.KnowledgeID
			updated.CreatedAt = stored.CreatedAt
			return setJSON(txn, classKey(c.ID), &updated)
		})
	})
}

// DeleteClass unassigns the class's loops and deletes it.
func (b *BadgerStore) DeleteClass(ctx context.Context, id string) error {
	return telemetry.RecordStoreOperation(ctx, BackendBadger, "delete_class", func(context.Context) error {
		return b.db.Update(func(txn *badger.Txn) error {
			var c loop.Class
			err := getJSON(txn, classKey(id), &c)
			if errors.Is(err, badger.ErrKeyNotFound) {
				return notFound("class", id)
			}
			if err != nil {
				return err
			}

			var members []*loop.Loop
			err = scanPrefix(txn, prefixLoop, func(_, v []byte) error {
				var l loop.Loop
				if err := json.Unmarshal(v, &l); err != nil {
					return err
				}
				if l.ClassID == id {
					members = append(members, &l)
				}
				return nil
			})
			if err != nil {
				return err
			}
			for _, l := range members {
				l.ClassID = ""
				if err := setJSON(txn, loopKey(l.ID), l); err != nil {
					return err
				}
			}

			if err := txn.Delete(equivalenceKey(c.OutcomeHash, c.KnowledgeID)); err != nil {
				return err
			}
			return txn.Delete(classKey(id))
		})
	})
}

// ListClasses lists classes, largest first.
func (b *BadgerStore) ListClasses(ctx context.Context) ([]*loop.Class, error) {
	classes := []*loop.Class{}
	err := telemetry.RecordStoreOperation(ctx, BackendBadger, "list_classes", func(context.Context) error {
		return b.db.View(func(txn *badger.Txn) error {
			return scanPrefix(txn, prefixClass, func(_, v []byte) error {
				var c loop.Class
				if err := json.Unmarshal(v, &c); err != nil {
					return err
				}
				classes = append(classes, &c)
				return nil
			})
		})
	})

	slices.SortFunc(classes, func(x, y *loop.Class) int {
		if c := cmp.Compare(y.Count, x.Count); c != 0 {
			return c
		}
		return x.CreatedAt.Compare(y.CreatedAt)
	})
	return classes, err
}

// AssignClass adds l to the class sharing its equivalence key, creating the
// class when none exists, and records the assignment on the loop.
func (b *BadgerStore) AssignClass(ctx context.Context, l *loop.Loop) (*loop.Class, error) {
	b.classMu.Lock()
	defer b.classMu.Unlock()
	return assignClass(ctx, b, l)
}

// Stats returns record counts.
func (b *BadgerStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{LoopsByEpoch: map[string]int{}}
	err := telemetry.RecordStoreOperation(ctx, BackendBadger, "stats", func(context.Context) error {
		return b.db.View(func(txn *badger.Txn) error {
			err := scanPrefix(txn, prefixLoop, func(_, v []byte) error {
				var l loop.Loop
				if err := json.Unmarshal(v, &l); err != nil {
					return err
				}
				stats.TotalLoops++
				stats.LoopsByEpoch[string(l.Epoch)]++
				return nil
			})
			if err != nil {
				return err
			}
			stats.TotalClasses = len(scanKeys(txn, prefixClass))
			stats.TotalSubLoops = len(scanKeys(txn, prefixSubLoop))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	stats.CompressionRatio = compressionRatio(stats.TotalLoops, stats.TotalClasses)
	return stats, nil
}

// Clear deletes every record. The schema version is kept.
func (b *BadgerStore) Clear(ctx context.Context) error {
	return telemetry.RecordStoreOperation(ctx, BackendBadger, "clear", func(context.Context) error {
		prefixes := [][]byte{
			[]byte(prefixLoop),
			[]byte(prefixSubLoop),
			[]byte(prefixLoopSub),
			[]byte(prefixClass),
			[]byte(prefixClassKey),
		}
		return b.db.DropPrefix(prefixes...)
	})
}
