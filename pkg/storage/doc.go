/*
Package storage keeps the reconciliation pass history in BoltDB.

Every pass the coordinator runs is stored as a JSON PassRecord in the
"passes" bucket of <dataDir>/watchdog.db. Keys are the zero-padded start time
in nanoseconds followed by the pass ID, so a cursor walking backwards yields
the newest passes first. The store keeps the most recent DefaultRetention
records and drops older ones on write.
*/
package storage
