/*
Package types defines the data structures shared by the watchdog packages.

# Core Types

SubnetBinding pairs a subnet ID with the VM plugin that implements it.
DesiredState is the deduplicated set of bindings fetched from the source;
two states are equal when they track the same subnet IDs, regardless of
fetch order:

	a := types.NewDesiredState([]types.SubnetBinding{{SubnetID: "x"}, {SubnetID: "y"}})
	b := types.NewDesiredState([]types.SubnetBinding{{SubnetID: "y"}, {SubnetID: "x"}})
	a.Equal(b) // true

NodeDescriptor is loaded once at startup from the nodes file and names the
config file, plugin directory, VM template binary, health endpoint and
container of one managed node.

PassRecord is the persisted summary of a reconciliation pass, including the
rollout phase reached when the pass stopped.
*/
package types
