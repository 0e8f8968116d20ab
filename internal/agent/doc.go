// Package agent is the host runtime for plugin actions. It resolves an
// action by name or simile, extracts structured parameters from free text
// through a language model when the caller did not supply them, runs the
// handler and records the outcome in the journal, the event stream and the
// metrics registry.
package agent
