package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/subnet-watchdog/pkg/nodeconfig"
	"github.com/cuemby/subnet-watchdog/pkg/plugins"
	"github.com/cuemby/subnet-watchdog/pkg/runtime"
	"github.com/cuemby/subnet-watchdog/pkg/types"
)

type fakeRuntime struct {
	containers []runtime.ContainerInfo
	restarted  []string
}

func (f *fakeRuntime) ListContainers(ctx context.Context) ([]runtime.ContainerInfo, error) {
	return f.containers, nil
}

func (f *fakeRuntime) RestartContainer(ctx context.Context, id string) error {
	f.restarted = append(f.restarted, id)
	return nil
}

func newNode(t *testing.T, name string) *types.NodeDescriptor {
	t.Helper()
	dir := t.TempDir()

	node := &types.NodeDescriptor{
		Name:                  name,
		ConfigPath:            filepath.Join(dir, "config.json"),
		PluginsDir:            filepath.Join(dir, "plugins"),
		VMBinarySource:        filepath.Join(dir, "subnet-evm"),
		ContainerNameFragment: name,
	}
	require.NoError(t, os.MkdirAll(node.PluginsDir, 0755))
	require.NoError(t, os.WriteFile(node.VMBinarySource, []byte("#!/bin/vm"), 0755))
	require.NoError(t, os.WriteFile(node.ConfigPath,
		[]byte(`{"public-ip":"1.2.3.4","http-host":"0.0.0.0","track-subnets":"old"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(node.PluginsDir, "stale"), []byte("x"), 0755))
	return node
}

func listPlugins(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestNodePipelineAppliesState(t *testing.T) {
	node := newNode(t, "avalanche")
	rt := &fakeRuntime{containers: []runtime.ContainerInfo{{ID: "c1", Names: []string{"c1", "avalanche"}}}}
	pipe := NewNodePipeline(nodeconfig.NewWriter(), plugins.NewSynchronizer(), runtime.NewController(rt))

	state := types.NewDesiredState([]types.SubnetBinding{
		{SubnetID: "S2", VMID: "V2"},
		{SubnetID: "S1", VMID: "V1"},
	})
	require.NoError(t, pipe.Update(context.Background(), node, state))

	data, err := os.ReadFile(node.ConfigPath)
	require.NoError(t, err)
	var cfg map[string]string
	require.NoError(t, json.Unmarshal(data, &cfg))
	assert.Equal(t, map[string]string{
		"public-ip":     "1.2.3.4",
		"http-host":     "0.0.0.0",
		"track-subnets": "S1,S2",
	}, cfg)

	assert.Equal(t, []string{"V1", "V2"}, listPlugins(t, node.PluginsDir))
	assert.Equal(t, []string{"c1"}, rt.restarted)
}

type failingWriter struct{ err error }

func (w failingWriter) Write(node *types.NodeDescriptor, state types.DesiredState) error {
	return w.err
}

func TestNodePipelineStopsAtFirstFailure(t *testing.T) {
	node := newNode(t, "avalanche")
	rt := &fakeRuntime{containers: []runtime.ContainerInfo{{ID: "c1", Names: []string{"avalanche"}}}}
	boom := errors.New("read-only file system")
	pipe := NewNodePipeline(failingWriter{err: boom}, plugins.NewSynchronizer(), runtime.NewController(rt))

	err := pipe.Update(context.Background(), node, types.NewDesiredState([]types.SubnetBinding{{SubnetID: "S1", VMID: "V1"}}))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"stale"}, listPlugins(t, node.PluginsDir))
	assert.Empty(t, rt.restarted)
}

func TestNodePipelineMissingPluginsDir(t *testing.T) {
	node := newNode(t, "avalanche")
	require.NoError(t, os.RemoveAll(node.PluginsDir))
	rt := &fakeRuntime{containers: []runtime.ContainerInfo{{ID: "c1", Names: []string{"avalanche"}}}}
	pipe := NewNodePipeline(nodeconfig.NewWriter(), plugins.NewSynchronizer(), runtime.NewController(rt))

	err := pipe.Update(context.Background(), node, types.NewDesiredState([]types.SubnetBinding{{SubnetID: "S1", VMID: "V1"}}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync plugins")
	assert.Empty(t, rt.restarted)
}

func TestNodePipelineContainerNotFound(t *testing.T) {
	node := newNode(t, "avalanche")
	rt := &fakeRuntime{containers: []runtime.ContainerInfo{{ID: "c9", Names: []string{"postgres"}}}}
	pipe := NewNodePipeline(nodeconfig.NewWriter(), plugins.NewSynchronizer(), runtime.NewController(rt))

	err := pipe.Update(context.Background(), node, types.NewDesiredState([]types.SubnetBinding{{SubnetID: "S1", VMID: "V1"}}))
	assert.ErrorIs(t, err, runtime.ErrContainerNotFound)
}

func TestCoordinatorIdempotentOnDisk(t *testing.T) {
	node := newNode(t, "avalanche")
	rt := &fakeRuntime{containers: []runtime.ContainerInfo{{ID: "c1", Names: []string{"avalanche"}}}}
	src := &fakeSource{bindings: []types.SubnetBinding{{SubnetID: "S1", VMID: "V1"}}}

	c, err := New(Options{
		Source:   src,
		Pipeline: NewNodePipeline(nodeconfig.NewWriter(), plugins.NewSynchronizer(), runtime.NewController(rt)),
		Nodes:    []*types.NodeDescriptor{node},
	})
	require.NoError(t, err)

	require.NoError(t, c.Tick(context.Background()))
	first, err := os.ReadFile(node.ConfigPath)
	require.NoError(t, err)

	require.NoError(t, c.Tick(context.Background()))
	second, err := os.ReadFile(node.ConfigPath)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"c1"}, rt.restarted)
	assert.Equal(t, []string{"V1"}, listPlugins(t, node.PluginsDir))
}

// partialSyncer installs every plugin except the ones listed in broken
type partialSyncer struct {
	real   *plugins.Synchronizer
	broken map[string]bool
}

func (s partialSyncer) Sync(node *types.NodeDescriptor, vmIDs []string) (plugins.SyncResult, error) {
	var ok []string
	for _, id := range vmIDs {
		if !s.broken[id] {
			ok = append(ok, id)
		}
	}
	result, err := s.real.Sync(node, ok)
	for id := range s.broken {
		result.Failed[id] = errors.New("no space left on device")
	}
	return result, err
}

func TestNodePipelineRestartsAfterPartialPluginFailure(t *testing.T) {
	node := newNode(t, "avalanche")
	rt := &fakeRuntime{containers: []runtime.ContainerInfo{{ID: "c1", Names: []string{"avalanche"}}}}
	syncer := partialSyncer{real: plugins.NewSynchronizer(), broken: map[string]bool{"V2": true}}
	pipe := NewNodePipeline(nodeconfig.NewWriter(), syncer, runtime.NewController(rt))

	state := types.NewDesiredState([]types.SubnetBinding{
		{SubnetID: "S1", VMID: "V1"},
		{SubnetID: "S2", VMID: "V2"},
		{SubnetID: "S3", VMID: "V3"},
	})
	require.NoError(t, pipe.Update(context.Background(), node, state))

	assert.Equal(t, []string{"V1", "V3"}, listPlugins(t, node.PluginsDir))
	assert.Equal(t, []string{"c1"}, rt.restarted)
}

func TestNodePipelineRestartsWhenTemplateMissing(t *testing.T) {
	node := newNode(t, "avalanche")
	require.NoError(t, os.Remove(node.VMBinarySource))
	rt := &fakeRuntime{containers: []runtime.ContainerInfo{{ID: "c1", Names: []string{"avalanche"}}}}
	pipe := NewNodePipeline(nodeconfig.NewWriter(), plugins.NewSynchronizer(), runtime.NewController(rt))

	err := pipe.Update(context.Background(), node, types.NewDesiredState([]types.SubnetBinding{{SubnetID: "S1", VMID: "V1"}}))
	require.NoError(t, err)
	assert.Empty(t, listPlugins(t, node.PluginsDir))
	assert.Equal(t, []string{"c1"}, rt.restarted)
}
