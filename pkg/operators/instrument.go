package operators

import (
	"context"
	"errors"

	"github.com/CrazyDubya/Loop/pkg/engine"
	"github.com/CrazyDubya/Loop/pkg/telemetry"
)

// Instrument wraps op so every execution opens an operator span, records
// run metrics and publishes a completion event through the telemetry found
// in the context. Without telemetry in the context the wrapper is
// transparent.
func Instrument(op Operator) Operator {
	return &instrumented{op: op}
}

type instrumented struct {
	op Operator
}

func (i *instrumented) Name() Kind { return i.op.Name() }

func (i *instrumented) Execute(ctx context.Context, p Params) (*Result, error) {
	tel := telemetry.FromTelemetryContext(ctx)
	if tel == nil {
		return i.op.Execute(ctx, p)
	}

	name := string(i.op.Name())
	ctx, span := tel.Tracer.StartOperatorSpan(ctx, name)
	defer span.End()
	if p.Target != "" {
		span.SetAttributes(telemetry.AttrOperatorTarget.String(p.Target))
	}

	logger := tel.Logger.NewComponentLogger("operators").WithOperator(name)
	if p.Epoch != "" {
		logger = logger.WithEpoch(string(p.Epoch))
	}
	timer := telemetry.NewTimer()

	res, err := i.op.Execute(ctx, p)
	duration := timer.Duration()

	if err != nil {
		telemetry.RecordError(span, err)
		tel.Metrics.RecordOperator(name, "error", duration)
		var ee *engine.EngineError
		if errors.As(err, &ee) {
			tel.Metrics.RecordError(string(ee.Class), ee.Code)
		}
		_ = tel.Events.PublishOperatorFailed(name, err.Error())
		logger.WithError(err).Error("operator failed")
		return nil, err
	}

	status := "failure"
	if res.Success {
		status = "success"
	}
	tel.Metrics.RecordOperator(name, status, duration)
	if res.Simulation != nil {
		tel.Metrics.RecordSimulation(simulationLabel(res.Simulation))
	}

	var loopID string
	if res.Loop != nil {
		loopID = res.Loop.ID
		logger = logger.WithLoopID(loopID)
		span.SetAttributes(telemetry.AttrLoopID.String(loopID))
		telemetry.AddLoopEvent(span, loopID, "operator.loop", res.Message)
	}
	span.SetAttributes(telemetry.AttrOperatorSuccess.Bool(res.Success))
	telemetry.RecordSuccess(span)

	_ = tel.Events.PublishOperatorCompleted(name, loopID, res.Message, res.Success, duration)
	logger.WithOutcome(res.Success, res.Attempts, res.PartialSuccess).Info(res.Message)

	return res, nil
}

func simulationLabel(r *engine.SimulationResult) string {
	switch {
	case !r.Success:
		return "failed"
	case r.DeathNode != "":
		return "death"
	default:
		return "success"
	}
}
