// Package generator turns walks of a day graph into loops.
//
// An Engine replays decision lists through the deterministic simulator,
// tags and encodes the resulting loop, and saves it when a store is
// configured. On top of that it offers random loops, shortest routes to a
// goal, chained batches that carry lineage and knowledge forward, and
// independent batches generated on a bounded worker pool.
package generator
