// Package kv is a minimal client for a REST key-value store. The watchdog
// uses it to look up the ID of the node that must be restarted first.
package kv
