// Package session holds the timed-session domain model: the session record,
// its lifecycle state machine, the pure time-accounting functions, and the
// pomodoro cycle advisor. Nothing in this package touches storage or I/O.
package session
