// Package store implements the SQLite-backed credential and settings store.
//
// Values are kept as strings in a single key/value table. [Store] exposes
// get/set/remove/clear on named keys plus typed helpers for [models.Settings]
// and the cached access token.
//
// Every mutation publishes one [Change] per key whose value actually changed,
// in mutation order, to all subscribers registered with [Store.Subscribe].
// Publishing never blocks the writer: a subscriber whose buffer is full misses
// the change and a warning is logged.
package store
