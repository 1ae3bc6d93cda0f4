// Package engine enforces reservation and authorization rules for campaign
// face requirements.
//
// The engine owns three concerns:
//
//   - RequirementSet: create, update, list and delete face requirements,
//     subject to their lock state.
//   - Reservations: attach inventory units to requirements (duplicate,
//     period and quota guards) and delete batches of them.
//   - Authorization: stamp and clear authorization codes across batches of
//     reservations, and report active tasks holding reservations.
//
// Lock state and completion are never persisted. Every call reads the
// reservations it needs and derives them with package derive.
//
// CONCURRENCY:
//
// Mutations are request/response. Each runs in one IMMEDIATE store
// transaction, so concurrent writers serialize at BEGIN and the second of two
// overlapping AssignCode calls reads the first's codes and fails with
// ALREADY_CODED. A cancelled context aborts the transaction up to commit;
// once commit starts it lands whole.
//
// After commit the engine publishes one model.Change per touched requirement
// to its Broker. The same changes are in the durable change log, read with
// Changes, for consumers in other processes.
package engine
