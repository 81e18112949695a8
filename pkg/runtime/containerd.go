package runtime

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/errdefs"
	"github.com/containerd/containerd/namespaces"
	"github.com/prometheus/procfs"
	"github.com/rs/zerolog"

	"github.com/cuemby/subnet-watchdog/pkg/log"
)

const (
	// DefaultNamespace is the containerd namespace nerdctl and compose use
	DefaultNamespace = "default"

	// DefaultSocketPath is the default containerd socket
	DefaultSocketPath = "/run/containerd/containerd.sock"

	// DefaultStopTimeout is how long a task gets to exit after SIGTERM
	DefaultStopTimeout = 30 * time.Second

	// LabelStartedAt records when the watchdog last started the container's task
	LabelStartedAt = "watchdog.started-at"
)

// nameLabels hold human-readable container names set by common frontends
var nameLabels = []string{
	"nerdctl/name",
	"com.docker.compose.service",
	"io.kubernetes.container.name",
}

// ContainerdRuntime implements Runtime using containerd
type ContainerdRuntime struct {
	client      *containerd.Client
	namespace   string
	stopTimeout time.Duration
	procRoot    string
	logger      zerolog.Logger
}

// NewContainerdRuntime creates a new containerd runtime client
func NewContainerdRuntime(socketPath, namespace string) (*ContainerdRuntime, error) {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}

	client, err := containerd.New(socketPath, containerd.WithTimeout(10*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to containerd: %w", err)
	}

	return &ContainerdRuntime{
		client:      client,
		namespace:   namespace,
		stopTimeout: DefaultStopTimeout,
		procRoot:    procfs.DefaultMountPoint,
		logger:      log.WithComponent("containerd"),
	}, nil
}

// WithStopTimeout overrides the graceful stop timeout used by restarts
func (r *ContainerdRuntime) WithStopTimeout(timeout time.Duration) *ContainerdRuntime {
	r.stopTimeout = timeout
	return r
}

// WithProcRoot sets where the host's proc filesystem is mounted. Task start
// times are read from it, so it must show the host pid namespace.
func (r *ContainerdRuntime) WithProcRoot(root string) *ContainerdRuntime {
	r.procRoot = root
	return r
}

// Close closes the containerd client connection
func (r *ContainerdRuntime) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Ping checks that the containerd daemon answers
func (r *ContainerdRuntime) Ping(ctx context.Context) error {
	serving, err := r.client.IsServing(ctx)
	if err != nil {
		return fmt.Errorf("containerd not serving: %w", err)
	}
	if !serving {
		return fmt.Errorf("containerd not serving")
	}
	return nil
}

// ListContainers returns the running and created containers in the namespace
func (r *ContainerdRuntime) ListContainers(ctx context.Context) ([]ContainerInfo, error) {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	containers, err := r.client.Containers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	infos := make([]ContainerInfo, 0, len(containers))
	for _, c := range containers {
		meta, err := c.Info(ctx, containerd.WithoutRefreshedMetadata)
		if err != nil {
			r.logger.Debug().Err(err).Str("container_id", c.ID()).Msg("skipping container without metadata")
			continue
		}

		state, pid := r.taskStatus(ctx, c)
		info := ContainerInfo{
			ID:        c.ID(),
			Names:     []string{c.ID()},
			State:     state,
			StartedAt: r.startedAt(c.ID(), meta.Labels, meta.UpdatedAt, pid),
		}
		for _, label := range nameLabels {
			if name := meta.Labels[label]; name != "" {
				info.Names = append(info.Names, name)
			}
		}

		if info.State == StateStopped || info.State == StateUnknown {
			continue
		}
		infos = append(infos, info)
	}

	return infos, nil
}

// taskStatus maps the containerd task status onto the runtime states and
// returns the task's pid, 0 when there is no live task
func (r *ContainerdRuntime) taskStatus(ctx context.Context, c containerd.Container) (string, uint32) {
	task, err := c.Task(ctx, nil)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return StateCreated, 0
		}
		return StateUnknown, 0
	}

	status, err := task.Status(ctx)
	if err != nil {
		return StateUnknown, 0
	}

	switch status.Status {
	case containerd.Running:
		return StateRunning, task.Pid()
	case containerd.Created:
		return StateCreated, task.Pid()
	case containerd.Paused, containerd.Pausing:
		return StatePaused, task.Pid()
	case containerd.Stopped:
		return StateStopped, 0
	default:
		return StateUnknown, 0
	}
}

// startedAt picks the most precise start time available: the task process
// start from procfs, then the stamp left by RestartContainer, then the last
// metadata update of the container.
func (r *ContainerdRuntime) startedAt(id string, labels map[string]string, updated time.Time, pid uint32) time.Time {
	if pid != 0 {
		started, err := processStart(r.procRoot, int(pid))
		if err == nil {
			return started
		}
		r.logger.Debug().Err(err).Str("container_id", id).Uint32("pid", pid).Msg("task start time unavailable from procfs")
	}
	if stamp, ok := labels[LabelStartedAt]; ok {
		if t, err := time.Parse(time.RFC3339Nano, stamp); err == nil {
			return t
		}
	}
	return updated
}

// processStart returns when pid started according to the proc filesystem at procRoot
func processStart(procRoot string, pid int) (time.Time, error) {
	fs, err := procfs.NewFS(procRoot)
	if err != nil {
		return time.Time{}, err
	}
	proc, err := fs.Proc(pid)
	if err != nil {
		return time.Time{}, err
	}
	stat, err := proc.Stat()
	if err != nil {
		return time.Time{}, err
	}
	secs, err := stat.StartTime()
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, int64(secs*float64(time.Second))).UTC(), nil
}

// RestartContainer stops the container's current task and starts a new one
func (r *ContainerdRuntime) RestartContainer(ctx context.Context, containerID string) error {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	container, err := r.client.LoadContainer(ctx, containerID)
	if err != nil {
		return fmt.Errorf("failed to load container %s: %w", containerID, err)
	}

	if err := r.stopTask(ctx, container); err != nil {
		return err
	}

	task, err := container.NewTask(ctx, cio.NullIO)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	if err := task.Start(ctx); err != nil {
		return fmt.Errorf("failed to start task: %w", err)
	}

	stamp := map[string]string{LabelStartedAt: time.Now().UTC().Format(time.RFC3339Nano)}
	if _, err := container.SetLabels(ctx, stamp); err != nil {
		r.logger.Warn().Err(err).Str("container_id", containerID).Msg("failed to record task start time")
	}

	return nil
}

// stopTask sends SIGTERM, escalates to SIGKILL after the stop timeout and
// deletes the task. A container without a task is left as is.
func (r *ContainerdRuntime) stopTask(ctx context.Context, container containerd.Container) error {
	task, err := container.Task(ctx, nil)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to load task: %w", err)
	}

	status, err := task.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get task status: %w", err)
	}

	if status.Status != containerd.Stopped {
		// Subscribe to the exit before signalling so it cannot be missed
		statusC, err := task.Wait(ctx)
		if err != nil {
			return fmt.Errorf("failed to wait for task: %w", err)
		}

		if err := task.Kill(ctx, syscall.SIGTERM); err != nil && !errdefs.IsNotFound(err) {
			return fmt.Errorf("failed to kill task: %w", err)
		}

		timer := time.NewTimer(r.stopTimeout)
		defer timer.Stop()

		select {
		case <-statusC:
		case <-timer.C:
			r.logger.Warn().Str("container_id", container.ID()).Msg("task ignored SIGTERM, sending SIGKILL")
			if err := task.Kill(ctx, syscall.SIGKILL); err != nil && !errdefs.IsNotFound(err) {
				return fmt.Errorf("failed to force kill task: %w", err)
			}
			select {
			case <-statusC:
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if _, err := task.Delete(ctx); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}
