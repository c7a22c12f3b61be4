// Package logging provides structured logging for crew processes.
//
// It wraps Go's log/slog package to produce JSON-formatted logs suitable for
// post-hoc analysis of a team session. Logs are written to a file under the
// crew root (by default <root>/logs/crew.log) so that every process touching
// a team — the lead's server, bridged agents' servers, CLI invocations —
// appends to one stream per machine.
//
// # Context Propagation
//
// Loggers carry persistent attributes that appear on every entry:
//
//	log := logger.WithTeam("t1").WithAgent("w1")
//	log.Info("message delivered", "message_id", 4)
//
// # Rotation
//
// File output goes through a RotatingWriter that rotates by size and keeps a
// bounded number of backups, since watcher loops can log for days.
package logging
