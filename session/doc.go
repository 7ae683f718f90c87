// Package session houses implementations of core.SessionStore and
// core.SessionLocker. The contracts live in core so that the runner never
// depends on concrete storage.
//
// InMemoryStore and MutexLocker suit tests and single process deployments.
// The redis sub-package shares sessions and locks between processes.
package session
