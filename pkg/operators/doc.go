// Package operators implements the loop generation strategies: cause a
// target event, avoid one, trigger an ordered sequence, relive a stored loop,
// and change a stored loop slightly or greatly.
//
// Every operator replays its chosen decisions through the deterministic
// simulator before creating a loop, so a created loop is always a legal walk
// of the day graph. Randomness comes from the *rand.Rand given in Options;
// the same seed and graph produce the same result.
//
//	op, err := operators.New(operators.KindCause, graph, operators.Options{
//	    Store:  store,
//	    Rand:   engine.NewRand(42),
//	    Logger: logger,
//	})
//	res, err := op.Execute(ctx, operators.Params{Target: "success", Save: true})
//
// Structural failures are results, not errors: an unreachable target yields
// Success false and a message. Errors are reserved for storage and context
// failures.
package operators
