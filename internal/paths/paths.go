// Package paths maps crew resources to their locations under the crew root.
//
// The layout is the contract between every process sharing a root:
//
//	<root>/teams/<team>/config.json
//	<root>/teams/<team>/.lock
//	<root>/teams/<team>/inboxes/<agent>.json
//	<root>/teams/<team>/inboxes/.lock
//	<root>/tasks/<team>/<id>.json
//	<root>/tasks/<team>/.lock
//	<root>/logs/crew.log
package paths

import (
	"fmt"
	"path/filepath"
)

// TeamsDir returns the directory holding all team records.
func TeamsDir(root string) string {
	return filepath.Join(root, "teams")
}

// TeamDir returns the directory for one team.
func TeamDir(root, team string) string {
	return filepath.Join(TeamsDir(root), team)
}

// TeamConfig returns the path of a team's config record.
func TeamConfig(root, team string) string {
	return filepath.Join(TeamDir(root, team), "config.json")
}

// TeamLock returns the lock file guarding a team's config record.
func TeamLock(root, team string) string {
	return filepath.Join(TeamDir(root, team), ".lock")
}

// InboxDir returns the directory holding a team's inbox files.
func InboxDir(root, team string) string {
	return filepath.Join(TeamDir(root, team), "inboxes")
}

// Inbox returns the path of one agent's inbox file.
func Inbox(root, team, agent string) string {
	return filepath.Join(InboxDir(root, team), agent+".json")
}

// InboxLock returns the lock file guarding a team's inboxes.
func InboxLock(root, team string) string {
	return filepath.Join(InboxDir(root, team), ".lock")
}

// TasksDir returns the task directory for one team.
func TasksDir(root, team string) string {
	return filepath.Join(root, "tasks", team)
}

// Task returns the path of one task record.
func Task(root, team string, id int) string {
	return filepath.Join(TasksDir(root, team), fmt.Sprintf("%d.json", id))
}

// TaskLock returns the lock file guarding a team's task directory.
func TaskLock(root, team string) string {
	return filepath.Join(TasksDir(root, team), ".lock")
}
