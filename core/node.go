package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	ledgererrors "excelsior/core/errors"
	"excelsior/core/events"
	"excelsior/core/state"
	"excelsior/core/types"
	"excelsior/native/bank"
	"excelsior/native/distributor"
	"excelsior/native/params"
	"excelsior/native/staking"
	"excelsior/native/swap"
	"excelsior/native/treasury"
	"excelsior/observability"
	"excelsior/observability/logging"
	"excelsior/observability/otel"
	"excelsior/storage"
)

// EventSink receives the events of every committed unit, in emission order.
type EventSink interface {
	Publish(ctx context.Context, evts []events.Event) error
}

// Option customises a Node.
type Option func(*Node)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(n *Node) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithEconomics overrides the economic parameters.
func WithEconomics(economics params.Economics) Option {
	return func(n *Node) { n.economics = economics.Normalize() }
}

// WithEmitter forwards committed events to emitter.
func WithEmitter(emitter events.Emitter) Option {
	return func(n *Node) { n.emitter = emitter }
}

// WithEventSink publishes committed events to sink.
func WithEventSink(sink EventSink) Option {
	return func(n *Node) { n.sink = sink }
}

// WithClock overrides the wall clock used for timestamps.
func WithClock(clock func() time.Time) Option {
	return func(n *Node) {
		if clock != nil {
			n.now = clock
		}
	}
}

// Node exposes the ledger operations. Each mutating call runs as exactly one
// store transaction; events raised inside it are published only after the
// transaction commits.
type Node struct {
	db        storage.Database
	economics params.Economics
	logger    *slog.Logger
	emitter   events.Emitter
	sink      EventSink
	metrics   *observability.LedgerMetrics
	tracer    trace.Tracer
	now       func() time.Time
}

// NewNode wires a node over db.
func NewNode(db storage.Database, opts ...Option) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database must not be nil")
	}
	n := &Node{
		db:        db,
		economics: params.DefaultEconomics(),
		logger:    slog.Default(),
		emitter:   events.NoopEmitter{},
		metrics:   observability.Ledger(),
		tracer:    otel.Tracer(),
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	if err := n.economics.Validate(); err != nil {
		return nil, fmt.Errorf("core: economics: %w", err)
	}
	return n, nil
}

// Economics returns the parameters the node was configured with.
func (n *Node) Economics() params.Economics { return n.economics }

// unit bundles the engines bound to one store transaction.
type unit struct {
	state       *state.Manager
	bank        *bank.Program
	staking     *staking.Engine
	treasury    *treasury.Engine
	swap        *swap.Engine
	distributor *distributor.Engine
}

func (n *Node) newUnit(tx storage.Tx, emitter events.Emitter) *unit {
	manager := state.NewManager(tx)

	program := bank.NewProgram()
	program.SetState(manager)
	program.SetEmitter(emitter)

	stakingEngine := staking.NewEngine()
	stakingEngine.SetState(manager)
	stakingEngine.SetTokens(program)
	stakingEngine.SetEmitter(emitter)

	treasuryEngine := treasury.NewEngine()
	treasuryEngine.SetState(manager)
	treasuryEngine.SetTokens(program)
	treasuryEngine.SetEconomics(n.economics)
	treasuryEngine.SetEmitter(emitter)
	treasuryEngine.SetClock(n.now)

	swapEngine := swap.NewEngine()
	swapEngine.SetState(manager)
	swapEngine.SetTokens(program)
	swapEngine.SetEconomics(n.economics)
	swapEngine.SetEmitter(emitter)

	distributorEngine := distributor.NewEngine()
	distributorEngine.SetState(manager)
	distributorEngine.SetTokens(program)
	distributorEngine.SetEmitter(emitter)
	distributorEngine.SetClock(n.now)

	return &unit{
		state:       manager,
		bank:        program,
		staking:     stakingEngine,
		treasury:    treasuryEngine,
		swap:        swapEngine,
		distributor: distributorEngine,
	}
}

// update runs fn as one atomic unit. Context cancellation is only honoured
// before the unit starts.
func (n *Node) update(ctx context.Context, op string, attrs []attribute.KeyValue, fn func(*unit) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	ctx, span := n.tracer.Start(ctx, "ledger."+op, trace.WithAttributes(attrs...))
	defer span.End()

	buf := &events.Buffer{}
	var ledger *types.GlobalLedger
	err := n.db.Update(func(tx storage.Tx) error {
		u := n.newUnit(tx, buf)
		if err := fn(u); err != nil {
			return err
		}
		current, ok, err := u.state.LedgerGet()
		if err != nil {
			return err
		}
		if ok {
			ledger = current
		}
		return nil
	})
	n.observe(ctx, span, op, start, err)
	if err != nil {
		return err
	}

	committed := buf.Events()
	for _, evt := range committed {
		observability.Events().RecordEvent(evt.EventType())
	}
	buf.FlushTo(n.emitter)
	if n.sink != nil && len(committed) > 0 {
		if err := n.sink.Publish(ctx, committed); err != nil {
			n.logger.WarnContext(ctx, "publish committed events failed",
				slog.String("op", op),
				slog.String("request_id", logging.RequestID(ctx)),
				slog.Any("error", err))
		}
	}
	if ledger != nil {
		n.metrics.SetLedger(ledger.TotalStaked, ledger.Acc(), ledger.UndistributedRewards)
	}
	return nil
}

// view runs fn against a read-only snapshot.
func (n *Node) view(ctx context.Context, fn func(*unit) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.db.View(func(tx storage.Tx) error {
		return fn(n.newUnit(tx, events.NoopEmitter{}))
	})
}

func (n *Node) observe(ctx context.Context, span trace.Span, op string, start time.Time, err error) {
	elapsed := time.Since(start)
	kind := ledgererrors.Kind(err)
	n.metrics.ObserveOperation(op, kind, elapsed)

	attrs := []slog.Attr{
		slog.String("op", op),
		slog.Duration("duration", elapsed),
	}
	if id := logging.RequestID(ctx); id != "" {
		attrs = append(attrs, slog.String("request_id", id))
	}
	if err == nil {
		span.SetStatus(codes.Ok, "")
		n.logger.LogAttrs(ctx, slog.LevelDebug, "ledger operation committed", attrs...)
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	attrs = append(attrs, slog.String("kind", kind), slog.Any("error", err))
	switch {
	case ledgererrors.IsInvariantViolation(err):
		n.logger.LogAttrs(ctx, slog.LevelError, "ledger invariant violated", attrs...)
	case kind == ledgererrors.KindInternal && !errors.Is(err, context.Canceled):
		n.logger.LogAttrs(ctx, slog.LevelError, "ledger operation failed", attrs...)
	default:
		n.logger.LogAttrs(ctx, slog.LevelInfo, "ledger operation rejected", attrs...)
	}
}
