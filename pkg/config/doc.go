// Package config loads everything loopctl reads from disk: its own settings,
// day graph files and outcome scripts.
//
// # Settings
//
// Load merges a YAML settings file over Default, then applies the
// LOOPCTL_DB, LOOPCTL_BACKEND and LOG_LEVEL environment variables, and
// checks the result with struct tags (go-playground/validator).
//
// # Day graphs
//
// GraphLoader reads graphs written in JSON, YAML or CUE. Every format is
// checked against the built-in #DayGraph CUE schema held by SchemaRegistry,
// so a malformed graph is reported the same way whatever it was written in.
// CUE sources may be a single file, a package directory, or a file nesting
// the graph under a top-level graph field. Errors carry file positions when
// the source format provides them.
//
//	loader := config.NewGraphLoader(nil)
//	g, err := loader.Load(ctx, "day.cue")
//	var invalid *config.InvalidGraphError
//	if errors.As(err, &invalid) {
//	    for _, ve := range invalid.Errors {
//	        fmt.Println(ve)
//	    }
//	}
//
// GraphWatcher reloads a graph whenever its file changes, debouncing bursts
// of editor writes.
//
// # Outcome scripts
//
// StarlarkClassifier replaces a graph's outcome rules with a Starlark
// classify(state) function:
//
//	def classify(state):
//	    if state["is_dead"]:
//	        return {"survivors": [], "deaths": ["PROTAGONIST"], "ending": "death"}
//	    return {"survivors": ["PROTAGONIST"], "deaths": [], "ending": "survived"}
//
// Each call runs with a step limit. A script that fails or returns a
// malformed result falls back to the default rules for that call.
package config
