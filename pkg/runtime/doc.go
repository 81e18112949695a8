/*
Package runtime finds and restarts node containers through containerd.

Node containers are created outside the watchdog, usually by nerdctl or a
compose file, so the package never builds OCI specs or pulls images. It only
lists the containers in a namespace and replaces a container's task:

	Controller.Restart(node, fragment)
	  └─ Find: first listed container whose ID or name label contains fragment
	       └─ RestartContainer
	            ├─ SIGTERM the task, SIGKILL after the stop timeout
	            ├─ delete the task
	            ├─ create and start a new task
	            └─ stamp watchdog.started-at on the container

Names are the container ID plus the nerdctl/name,
com.docker.compose.service and io.kubernetes.container.name labels. The
started-at label gives the health probe a container uptime; containers the
watchdog never restarted fall back to their metadata update time.

The Runtime interface is what the controller depends on, which keeps the
reconciler testable without a containerd socket.
*/
package runtime
