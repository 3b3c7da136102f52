package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/CrazyDubya/Loop/pkg/engine"
	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// ClassifyFunc is the function an outcome script must define.
const ClassifyFunc = "classify"

// MaxClassifySteps bounds the Starlark steps of one classify call.
const MaxClassifySteps = 100000

// StarlarkEvaluator executes Starlark scripts safely.
type StarlarkEvaluator struct {
	timeout time.Duration
}

// NewStarlarkEvaluator creates a new Starlark evaluator.
func NewStarlarkEvaluator(timeout time.Duration) *StarlarkEvaluator {
	if timeout == 0 {
		timeout = 30 * time.Second // Default timeout
	}
	return &StarlarkEvaluator{
		timeout: timeout,
	}
}

// Evaluate executes a Starlark script with the given input and returns its
// public globals.
func (se *StarlarkEvaluator) Evaluate(ctx context.Context, script string, input map[string]interface{}) (*StarlarkResult, error) {
	startTime := time.Now()

	globals, err := se.exec(ctx, "script.star", script, input)
	if err != nil {
		return &StarlarkResult{
			ExecutionTime: time.Since(startTime),
			Error:         err.Error(),
		}, err
	}

	// Convert globals to output map
	output := make(map[string]interface{})
	for name, val := range globals {
		// Skip internal variables (starting with _)
		if len(name) > 0 && name[0] == '_' {
			continue
		}
		if _, ok := val.(starlark.Callable); ok {
			continue
		}
		goVal, err := fromStarlarkValue(val)
		if err != nil {
			return nil, fmt.Errorf("failed to convert output %s: %w", name, err)
		}
		output[name] = goVal
	}

	return &StarlarkResult{
		Output:        output,
		ExecutionTime: time.Since(startTime),
	}, nil
}

// exec runs script to completion, cancelling the thread when ctx ends or the
// timeout elapses.
func (se *StarlarkEvaluator) exec(ctx context.Context, filename, script string, input map[string]interface{}) (starlark.StringDict, error) {
	evalCtx, cancel := context.WithTimeout(ctx, se.timeout)
	defer cancel()

	thread := &starlark.Thread{
		Name: "loopctl",
		Print: func(_ *starlark.Thread, msg string) {
			// Suppress print for security
		},
	}

	predeclared := starlark.StringDict{
		"struct": starlarkstruct.Default,
	}
	for key, val := range input {
		starlarkVal, err := toStarlarkValue(val)
		if err != nil {
			return nil, fmt.Errorf("failed to convert input %s: %w", key, err)
		}
		predeclared[key] = starlarkVal
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-evalCtx.Done():
			thread.Cancel(evalCtx.Err().Error())
		case <-done:
		}
	}()

	globals, err := starlark.ExecFile(thread, filename, script, predeclared)
	if err != nil {
		if evalCtx.Err() != nil {
			return nil, fmt.Errorf("starlark execution timeout after %v: %w", se.timeout, evalCtx.Err())
		}
		return nil, fmt.Errorf("starlark execution failed: %w", err)
	}
	return globals, nil
}

// StarlarkClassifier classifies outcomes with a script's classify(state)
// function. state is a dict with time_slot, current_node, location,
// knowledge, world_facts, visited_nodes, is_dead and death_node. The result
// must be a dict or struct with survivors, deaths and ending; state_changes
// defaults to the world facts. Calls that fail fall back to the graph's rule
// classifier once bound with WithFallback, or the default rules otherwise.
type StarlarkClassifier struct {
	filename string
	classify starlark.Callable
	fallback engine.OutcomeClassifier
	log      zerolog.Logger
}

// LoadStarlarkClassifier reads and compiles an outcome script.
func LoadStarlarkClassifier(ctx context.Context, path string, logger zerolog.Logger) (*StarlarkClassifier, error) {
	script, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read outcome script: %w", err)
	}
	return NewStarlarkClassifier(ctx, path, string(script), logger)
}

// NewStarlarkClassifier compiles script, which must define classify.
func NewStarlarkClassifier(ctx context.Context, filename, script string, logger zerolog.Logger) (*StarlarkClassifier, error) {
	globals, err := NewStarlarkEvaluator(0).exec(ctx, filename, script, nil)
	if err != nil {
		return nil, err
	}

	fn, ok := globals[ClassifyFunc].(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("%s does not define %s(state)", filename, ClassifyFunc)
	}
	globals.Freeze()

	return &StarlarkClassifier{
		filename: filename,
		classify: fn,
		fallback: engine.DefaultClassifier(),
		log:      logger.With().Str("component", "starlark_classifier").Str("script", filename).Logger(),
	}, nil
}

// WithFallback returns a copy of sc that classifies with fallback when the
// script fails.
func (sc *StarlarkClassifier) WithFallback(fallback engine.OutcomeClassifier) *StarlarkClassifier {
	bound := *sc
	if fallback != nil {
		bound.fallback = fallback
	}
	return &bound
}

// Classify implements engine.OutcomeClassifier.
func (sc *StarlarkClassifier) Classify(state *engine.WorldState) engine.Outcome {
	outcome, err := sc.call(state)
	if err != nil {
		sc.log.Warn().Err(err).Msg("outcome script failed, using graph rules")
		return sc.fallback.Classify(state)
	}
	return outcome
}

func (sc *StarlarkClassifier) call(state *engine.WorldState) (engine.Outcome, error) {
	thread := &starlark.Thread{
		Name:  "classify",
		Print: func(_ *starlark.Thread, msg string) {},
	}
	thread.SetMaxExecutionSteps(MaxClassifySteps)

	arg, err := toStarlarkValue(stateInput(state))
	if err != nil {
		return engine.Outcome{}, err
	}

	res, err := starlark.Call(thread, sc.classify, starlark.Tuple{arg}, nil)
	if err != nil {
		return engine.Outcome{}, err
	}
	raw, err := fromStarlarkValue(res)
	if err != nil {
		return engine.Outcome{}, err
	}
	fields, ok := raw.(map[string]interface{})
	if !ok {
		return engine.Outcome{}, fmt.Errorf("%s must return a dict, got %s", ClassifyFunc, res.Type())
	}

	outcome := engine.Outcome{StateChanges: state.WorldFacts.Sorted()}
	if outcome.Survivors, err = stringList(fields, "survivors"); err != nil {
		return engine.Outcome{}, err
	}
	if outcome.Deaths, err = stringList(fields, "deaths"); err != nil {
		return engine.Outcome{}, err
	}
	if _, ok := fields["state_changes"]; ok {
		if outcome.StateChanges, err = stringList(fields, "state_changes"); err != nil {
			return engine.Outcome{}, err
		}
	}
	ending, ok := fields["ending"].(string)
	if !ok || ending == "" {
		return engine.Outcome{}, fmt.Errorf("%s result needs a non-empty ending", ClassifyFunc)
	}
	outcome.EndingType = ending
	return outcome, nil
}

func stateInput(state *engine.WorldState) map[string]interface{} {
	return map[string]interface{}{
		"time_slot":     state.TimeSlot,
		"current_node":  state.CurrentNode,
		"location":      state.Location,
		"knowledge":     stringsToList(state.Knowledge.Sorted()),
		"world_facts":   stringsToList(state.WorldFacts.Sorted()),
		"visited_nodes": stringsToList(state.VisitedNodes),
		"is_dead":       state.IsDead,
		"death_node":    state.DeathNode,
	}
}

func stringsToList(items []string) []interface{} {
	out := make([]interface{}, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}

func stringList(fields map[string]interface{}, key string) ([]string, error) {
	v, ok := fields[key]
	if !ok || v == nil {
		return []string{}, nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%s must be a list", key)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%s must hold strings", key)
		}
		out = append(out, s)
	}
	return out, nil
}

// toStarlarkValue converts a Go value to a Starlark value.
func toStarlarkValue(v interface{}) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []interface{}:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			starlarkItem, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = starlarkItem
		}
		return starlark.NewList(list), nil
	case map[string]interface{}:
		dict := starlark.NewDict(len(val))
		for k, v := range val {
			starlarkVal, err := toStarlarkValue(v)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), starlarkVal); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// fromStarlarkValue converts a Starlark value to a Go value.
func fromStarlarkValue(v starlark.Value) (interface{}, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		list := make([]interface{}, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlarkValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case starlark.Tuple:
		list := make([]interface{}, len(val))
		for i, elem := range val {
			item, err := fromStarlarkValue(elem)
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case *starlark.Dict:
		dict := make(map[string]interface{})
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string")
			}
			value, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	case *starlarkstruct.Struct:
		dict := make(map[string]interface{})
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				continue
			}
			value, err := fromStarlarkValue(attr)
			if err != nil {
				return nil, err
			}
			dict[name] = value
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}
