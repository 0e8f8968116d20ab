// Package mysql persists the action journal in MySQL. It owns the connection
// pool settings, the embedded schema migrations and the typed queries used
// to record and list action invocations.
package mysql
