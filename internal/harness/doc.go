// Package harness runs reservation scenarios against a fresh engine and
// records a deterministic trace for golden comparison.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: authorize_in_two_batches
//	description: "Partial then full authorization"
//	overbooking: reject
//	seed:
//	  inventory:
//	    - {id: a, code: MX-001, city: Monterrey, format: billboard}
//	  requirements:
//	    - {id: req, campaign: c1, article: A, start: 7/2026, end: 7/2026, flow: 1}
//	steps:
//	  - op: create_reservation
//	    reservation: r1
//	    requirement: req
//	    inventory: a
//	    type: flow
//	    period: 7/2026
//	  - op: assign_code
//	    reservations: [r1]
//	    code: APS-100
//	  - op: assign_code
//	    reservations: [r1]
//	    expect: {error: ALREADY_CODED}
//	assertions:
//	  - type: lock_state
//	    requirement: req
//	    state: fully_authorized
//
// The seed block uses the seed document format and is validated the same
// way. A step without expect must succeed; a step with expect.error must
// fail with that error code.
//
// The harness subscribes to every campaign before it is first written and
// records, per step, the seqs of the changes published to it. A run fails
// if those differ from the durable change log.
//
// Each run uses a new in-memory store, sequential ids and sequential codes,
// so the same scenario always yields byte-identical traces.
package harness
