// Package progress keeps per-workflow stage counters for dashboards and
// inbox views.  A tracker travels in the context so callers observing a
// submission or a decision see counter updates without polling the store;
// Of derives the same counters from a stored aggregate after the fact.
package progress
