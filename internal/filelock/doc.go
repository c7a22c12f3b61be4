// Package filelock provides advisory cross-process mutual exclusion.
//
// Crew operations run in unrelated OS processes (each agent may run its own
// coordination server) that agree only via the shared filesystem. Every
// read-modify-write of shared state — a team config, an inbox, a task
// directory — is serialized by a named lock file beside the resource it
// protects.
//
// Locks use flock(2), so they are released by the kernel if the holding
// process dies. Acquisition is bounded by a timeout that surfaces as
// errors.ErrLockTimeout, a retryable condition, rather than blocking forever
// on a stuck peer.
//
// # Basic Usage
//
//	lock, err := filelock.Acquire(filepath.Join(dir, ".lock"), 5*time.Second)
//	if err != nil {
//		return err // errors.Is(err, errors.ErrLockTimeout) means retry later
//	}
//	defer lock.Release()
//
// Release must run on every exit path; the handle is safe to release twice.
package filelock
