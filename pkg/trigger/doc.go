/*
Package trigger produces "desired state may have changed" signals.

Ticker polls at a fixed interval, Kafka turns every message on a CDC topic
into a signal and Merge combines both so a change is picked up quickly
with the ticker as a fallback. Every trigger uses a one-slot channel, so
bursts collapse into a single pending signal while a reconciliation pass is
running.
*/
package trigger
