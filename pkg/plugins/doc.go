/*
Package plugins keeps a node's plugin directory in step with the desired VM IDs.

Every desired VM ID must exist as a file named exactly after it, holding a
copy of the node's VM template binary; any other entry is stale and is
removed. Copies go through a temp file and a rename so the node process
never sees a partially written plugin.

Only a failure to list the directory aborts a sync. Individual copy or
removal failures are logged, counted in watchdog_plugin_operations_total and
returned in SyncResult.Failed; the next reconciliation pass retries them.
*/
package plugins
