/*
Package probe serves the health endpoint a load balancer polls in front of
a node.

A node is serviceable when its own health endpoint answers with a success
status within five seconds and the watchdog container next to it is running
and has been up for at least five seconds. A watchdog that keeps crashing
therefore takes the node out of rotation even while the node itself still
answers. Both checks run concurrently; GET / returns 200 "OK" or 500 with
the first failure.
*/
package probe
