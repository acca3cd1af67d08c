// Package events decouples services from background work. Services emit
// TaskRequestEvents naming a task type and a JSON payload; a handler in the
// task package turns them into tasks and submits them to the runner.
package events
