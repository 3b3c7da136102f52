// Package loop defines the artifacts produced by the loop engine and the
// canonical identifiers used to group them.
//
// # Artifacts
//
//   - Loop: one traversal of the day graph, recorded as a decision trace,
//     a key-choice bit vector, and outcome/knowledge/mood hashes
//   - SubLoop: a nested reset over a window of time slots within one loop
//   - Class: an equivalence class of loops sharing outcome hash and knowledge id
//
// # Canonical Hashing
//
// OutcomeHash, KnowledgeID and MoodID serialize their arguments as a JSON
// object with sorted keys and sorted set members, then keep the first 16 hex
// characters of the SHA-256 digest. Two semantically identical states hash
// identically regardless of construction order, and the byte layout matches
// the hashes stored by earlier tooling so existing archives stay comparable.
//
// # Decision Vectors
//
// Key choices are packed into a uint64. EncodeDecisions and DecodeDecisions
// map named flags to bit positions; MutateVector, CrossoverVectors and
// RandomVector take an explicit *rand.Rand so variation searches are
// reproducible.
package loop
