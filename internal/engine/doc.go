// Package engine implements calculation templates and the stateful
// calculations begun from them.
//
// A Template is an immutable, ordered field collection bound to one remote
// category. Begin clones it into a Calculation, which accepts user input,
// validates it against the remote catalog, and synchronizes it with a
// single remote item.
//
// LIFECYCLE:
//
//	Apply     -> StateDirty         (only when a value or binding changed)
//	Validate  -> StateValidated     (no-op unless dirty)
//	Calculate -> StateCleanBound    (item created or updated)
//	          -> StateCleanUnbound  (input not yet sufficient)
//
// Calculate and Validate are no-ops on a clean calculation, so repeating a
// choice with identical values issues no remote calls.
//
// SYNCHRONIZATION:
//
// Each Calculate runs one pass. A pass memoizes the container, the bound
// item and every drilldown answer for its duration and is discarded at the
// end; nothing remote is cached across passes. If any remote operation
// fails, an item created during the pass is deleted again and the error is
// returned as a DidNotCreate error. The calculation stays dirty.
//
// SELECTOR ORDERING:
//
// Selectors narrow the category in declaration order. A selector's choices
// depend on every earlier selector, so asking for them while an earlier one
// is unset is an ordering error. During validation such a selector is
// cleared with a message instead, and later selectors cascade the same way.
//
// A Calculation is not safe for concurrent use.
package engine
