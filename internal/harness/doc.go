// Package harness runs YAML scenarios against the record engine.
//
// Each scenario runs on a fresh in-memory store with a step clock and
// sequential event IDs, so the trace and final state of a scenario are
// byte-for-byte reproducible and can be compared against golden files.
//
// A scenario has three parts:
//
//   - setup: create steps that must succeed
//   - flow: create, retire, get and list steps, each with an optional expect
//   - assertions: checks on the trace and the final records
//
// Example:
//
//	name: retire-once
//	description: a record can be retired exactly once
//	setup:
//	  - action: create
//	    as: wind
//	    record: {project_name: Wind Farm, registry: Verra, vintage: 2024, quantity: "500", serial_number: VCS-WIND-001}
//	flow:
//	  - action: retire
//	    ref: wind
//	    expect: {status: RETIRED}
//	  - action: retire
//	    ref: wind
//	    expect: {error: ALREADY_RETIRED}
//	assertions:
//	  - type: event_order
//	    ref: wind
//	    events: [CREATED, RETIRED]
//
// Run all scenarios in a directory with `offset test <dir>`.
package harness
