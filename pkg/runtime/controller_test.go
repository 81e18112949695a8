package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/subnet-watchdog/pkg/metrics"
)

type fakeRuntime struct {
	containers []ContainerInfo
	listErr    error
	restartErr error
	restarted  []string

	// context seen by the last RestartContainer call
	restartCtx context.Context
}

func (f *fakeRuntime) ListContainers(ctx context.Context) ([]ContainerInfo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.containers, nil
}

func (f *fakeRuntime) RestartContainer(ctx context.Context, id string) error {
	f.restartCtx = ctx
	f.restarted = append(f.restarted, id)
	return f.restartErr
}

func TestControllerFind(t *testing.T) {
	rt := &fakeRuntime{containers: []ContainerInfo{
		{ID: "c1", Names: []string{"c1", "watchdog"}},
		{ID: "c2", Names: []string{"c2", "avalanche-node"}},
		{ID: "c3", Names: []string{"c3", "avalanche-node-2"}},
	}}
	ctrl := NewController(rt)

	t.Run("first match wins", func(t *testing.T) {
		ctr, err := ctrl.Find(context.Background(), "avalanche")
		require.NoError(t, err)
		assert.Equal(t, "c2", ctr.ID)
	})

	t.Run("matches by id", func(t *testing.T) {
		ctr, err := ctrl.Find(context.Background(), "c3")
		require.NoError(t, err)
		assert.Equal(t, "c3", ctr.ID)
	})

	t.Run("no match", func(t *testing.T) {
		_, err := ctrl.Find(context.Background(), "bvalanche")
		assert.ErrorIs(t, err, ErrContainerNotFound)
	})
}

func TestControllerFindListError(t *testing.T) {
	listErr := errors.New("socket closed")
	ctrl := NewController(&fakeRuntime{listErr: listErr})

	_, err := ctrl.Find(context.Background(), "avalanche")
	assert.ErrorIs(t, err, listErr)
	assert.NotErrorIs(t, err, ErrContainerNotFound)
}

func TestControllerRestart(t *testing.T) {
	rt := &fakeRuntime{containers: []ContainerInfo{
		{ID: "c1", Names: []string{"c1", "avalanche"}},
	}}
	ctrl := NewController(rt)

	ctr, err := ctrl.Restart(context.Background(), "avalanche", "avalanche")
	require.NoError(t, err)
	assert.Equal(t, "c1", ctr.ID)
	assert.Equal(t, []string{"c1"}, rt.restarted)
}

func TestControllerRestartNotFound(t *testing.T) {
	rt := &fakeRuntime{}
	ctrl := NewController(rt)

	_, err := ctrl.Restart(context.Background(), "avalanche", "avalanche")
	assert.ErrorIs(t, err, ErrContainerNotFound)
	assert.Empty(t, rt.restarted)
}

func TestControllerRestartFailure(t *testing.T) {
	rt := &fakeRuntime{
		containers: []ContainerInfo{{ID: "c1", Names: []string{"avalanche"}}},
		restartErr: errors.New("task start failed"),
	}
	ctrl := NewController(rt)

	_, err := ctrl.Restart(context.Background(), "avalanche", "avalanche")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRestart)
	assert.Contains(t, err.Error(), "task start failed")
}

func TestContainerInfoUptime(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 10, 0, time.UTC)

	assert.Equal(t, time.Duration(0), ContainerInfo{}.Uptime(now))

	started := ContainerInfo{StartedAt: now.Add(-10 * time.Second)}
	assert.Equal(t, 10*time.Second, started.Uptime(now))
}

func TestControllerRestartSurvivesCancellation(t *testing.T) {
	rt := &fakeRuntime{containers: []ContainerInfo{{ID: "c1", Names: []string{"avalanche"}}}}
	ctrl := NewController(rt).WithRestartTimeout(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ctrl.Restart(ctx, "avalanche", "avalanche")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, rt.restarted)

	require.NotNil(t, rt.restartCtx)
	assert.NoError(t, rt.restartCtx.Err())
	deadline, ok := rt.restartCtx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}

func TestControllerRestartTracksRuntimeHealth(t *testing.T) {
	rt := &fakeRuntime{
		containers: []ContainerInfo{{ID: "c1", Names: []string{"avalanche"}}},
		restartErr: errors.New("containerd unavailable"),
	}
	ctrl := NewController(rt)

	_, err := ctrl.Restart(context.Background(), "avalanche", "avalanche")
	require.Error(t, err)
	assert.Contains(t, metrics.GetHealth().Components[metrics.ComponentRuntime], "containerd unavailable")

	rt.restartErr = nil
	_, err = ctrl.Restart(context.Background(), "avalanche", "avalanche")
	require.NoError(t, err)
	assert.Equal(t, "healthy", metrics.GetHealth().Components[metrics.ComponentRuntime])

	rt.listErr = errors.New("socket closed")
	_, err = ctrl.Restart(context.Background(), "avalanche", "avalanche")
	require.Error(t, err)
	assert.Contains(t, metrics.GetHealth().Components[metrics.ComponentRuntime], "socket closed")
}
