// Package rosterclient is the viewer side of the check-in API. It keeps one
// push session per viewer (Supervisor), a keyed read cache of people and
// summaries (Cache), optimistic check-in/check-out with rollback
// (Coordinator), and folds pushed or polled events back into the cache
// (Reconciler, Poller).
package rosterclient
