/*
Package nodeconfig rewrites a node's JSON configuration file.

Only the track-subnets key is owned by the watchdog. Every other key,
including the node-local public-ip, http-host and http-allowed-hosts and any
key this package does not recognize, is copied byte for byte from the
existing file. When the existing file is missing or unparsable the writer
logs it and falls back to a baseline with blank node-local keys.

The new document is written to a temp file in the same directory and
renamed over the old one, keeping the previous file mode.
*/
package nodeconfig
