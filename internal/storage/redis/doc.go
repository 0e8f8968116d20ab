// Package redis keeps the action journal in a capped Redis list so several
// agent processes can share one recent history.
package redis
