// Package policy holds the pure entitlement rules: pack durations, the
// category access policy, the temporal gate with its fast-track bypass,
// sequential lesson locking, quiz grading and certificate thresholds.
// Nothing in here performs I/O; services load the inputs and call in.
package policy
