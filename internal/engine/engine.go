package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/caras/internal/catalog"
	"github.com/roach88/caras/internal/model"
	"github.com/roach88/caras/internal/store"
)

// Catalog is the read-only inventory collaborator.
// *store.Store implements it against its local inventory table.
type Catalog interface {
	InventoryUnit(ctx context.Context, id string) (model.InventoryUnit, error)
	SearchInventory(ctx context.Context, f catalog.Filter) ([]model.InventoryUnit, error)
}

// TaskSource reports downstream work that holds reservations.
// *store.Store implements it against its local tasks table.
type TaskSource interface {
	ActiveTasksForReservations(ctx context.Context, ids []string) (map[string][]model.Task, error)
}

// Engine enforces the reservation and lock rules over a Store.
//
// Every mutation runs in one store transaction, appends to the change log
// in that transaction and publishes to the Broker after commit. Lock state
// and completion are never stored; each call recomputes them from the
// reservations it just read.
//
// Thread-safety: all methods are safe for concurrent use. Writers serialize
// in the store (IMMEDIATE transactions on a single connection).
//
// Collaborators (Catalog, TaskSource) are consulted before the transaction
// opens, never inside it. Task links in the local store are re-read inside
// the transaction that deletes the reservations they hold.
type Engine struct {
	store       *store.Store
	catalog     Catalog
	tasks       TaskSource
	broker      *Broker
	ids         IDGenerator
	codes       CodeGenerator
	overbooking OverbookingPolicy
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithIDGenerator replaces the UUIDv7 id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithCodeGenerator replaces the authorization code generator.
func WithCodeGenerator(g CodeGenerator) Option {
	return func(e *Engine) { e.codes = g }
}

// WithCodePrefix numbers generated codes with prefix ("APS-" by default).
func WithCodePrefix(prefix string) Option {
	return func(e *Engine) { e.codes = SequenceCodes{Prefix: prefix} }
}

// WithOverbooking sets the overbooking policy. Default: OverbookingReject.
func WithOverbooking(p OverbookingPolicy) Option {
	return func(e *Engine) { e.overbooking = p }
}

// WithCatalog replaces the inventory collaborator.
func WithCatalog(c Catalog) Option {
	return func(e *Engine) { e.catalog = c }
}

// WithTaskSource replaces the task collaborator.
func WithTaskSource(t TaskSource) Option {
	return func(e *Engine) { e.tasks = t }
}

// WithBroker shares a broker between engines.
func WithBroker(b *Broker) Option {
	return func(e *Engine) { e.broker = b }
}

// New creates an Engine over s. The store doubles as catalog and task
// source unless options replace them.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:       s,
		catalog:     s,
		tasks:       s,
		broker:      NewBroker(),
		ids:         UUIDv7Generator{},
		codes:       SequenceCodes{Prefix: DefaultCodePrefix},
		overbooking: OverbookingReject,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Broker returns the engine's change broker.
func (e *Engine) Broker() *Broker {
	return e.broker
}

// Subscribe is shorthand for e.Broker().Subscribe(campaignID).
func (e *Engine) Subscribe(campaignID string) *Subscription {
	return e.broker.Subscribe(campaignID)
}

// Changes reads the durable change log of a campaign after seq since.
func (e *Engine) Changes(ctx context.Context, campaignID string, since int64, limit int) ([]model.Change, error) {
	return e.store.Changes(ctx, campaignID, since, limit)
}

// write runs fn in a transaction, appends the changes it returns to the log
// and publishes them once the transaction has committed.
func (e *Engine) write(ctx context.Context, fn func(tx *store.Tx) ([]model.Change, error)) ([]model.Change, error) {
	var committed []model.Change
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		changes, err := fn(tx)
		if err != nil {
			return err
		}
		for i := range changes {
			seq, err := tx.AppendChange(ctx, changes[i])
			if err != nil {
				return err
			}
			changes[i].Seq = seq
		}
		committed = changes
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, c := range committed {
		e.broker.Publish(c)
	}
	return committed, nil
}

// logged records the outcome of a mutation: Info on success, Debug for a
// rule rejection, Error for anything else.
func (e *Engine) logged(ctx context.Context, op string, err error, attrs ...any) error {
	switch ee, ok := AsError(err); {
	case err == nil:
		e.logger.InfoContext(ctx, op, attrs...)
	case ok:
		e.logger.DebugContext(ctx, op+" rejected", append(attrs, "error_code", string(ee.Code))...)
	default:
		e.logger.ErrorContext(ctx, op+" failed", append(attrs, "error", err)...)
	}
	return err
}

// loadRequirement reads a requirement and its reservations, translating a
// missing requirement.
func loadRequirement(ctx context.Context, q interface {
	Requirement(context.Context, string) (model.FaceRequirement, error)
	ReservationsByRequirement(context.Context, string) ([]model.Reservation, error)
}, id string) (model.FaceRequirement, []model.Reservation, error) {
	req, err := q.Requirement(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return model.FaceRequirement{}, nil, notFoundError(CodeRequirementNotFound, "requirement %s does not exist", id)
	}
	if err != nil {
		return model.FaceRequirement{}, nil, err
	}
	res, err := q.ReservationsByRequirement(ctx, id)
	if err != nil {
		return model.FaceRequirement{}, nil, err
	}
	return req, res, nil
}

// dedupe drops blank and repeated ids, keeping first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func emptyBatch(op string) *Error {
	return validationError(CodeInvalidRequest, "reservation_ids", "%s needs at least one reservation id", op)
}

func requireBatch(op string, ids []string) ([]string, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, emptyBatch(op)
	}
	return ids, nil
}

func wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if _, ok := AsError(err); ok {
		return err
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
