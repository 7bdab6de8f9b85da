// Package memstore provides in-memory implementations of the auth user and
// session token repositories. They are safe for concurrent use and are
// meant for tests and single process deployments.
package memstore
