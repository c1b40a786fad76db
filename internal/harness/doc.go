// Package harness runs calculation scenarios end to end.
//
// A scenario compiles one template, seeds a fresh in-memory catalog, drives
// a calculation through a list of steps and checks what happened: the
// calculation's values and state after each step, and the remote calls it
// made.
//
// # Scenario Format
//
// Scenarios are YAML files. Paths are relative to the scenario file:
//
//	name: car_commute
//	description: "Diesel car, recalculated after the distance changes"
//	template: templates/car.cue
//	catalog: catalog.yaml
//	setup:
//	  - key: [fuel=petrol, size=small]
//	    values: { distance: "5" }
//	steps:
//	  - action: choose
//	    values: { fuel: diesel, size: large, distance: "10" }
//	  - action: calculate
//	    expect:
//	      state: clean_bound
//	      values: { co2: "2" }
//	      calls: { item_create: 1 }
//	assertions:
//	  - type: call_count
//	    op: item_create
//	    count: 1
//	  - type: final_state
//	    table: items
//	    expect: { category: /transport/car }
//
// # Steps
//
//   - choose, try_choose: apply values and validate
//   - validate, calculate, reset, delete: the calculation operations
//   - bind: bind to setup item N (item: N)
//   - fail, heal: inject or clear remote faults for an operation
//
// # Assertion Types
//
//   - call_contains: a remote call with matching args was made
//   - call_order: remote operations happened in this order
//   - call_count: a remote operation happened exactly N times
//   - final_value: a field's value after the last step
//   - final_state: a row in the catalog database has the expected columns
//
// # Deterministic Testing
//
// IDs come from a sequential generator and every scenario gets its own
// in-memory SQLite database, so traces are identical across runs and can be
// compared against golden files.
package harness
