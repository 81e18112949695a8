package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeNodes(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nodes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadNodes(t *testing.T) {
	path := writeNodes(t, `
nodes:
  - name: avalanche
    nodeId: NodeID-A
    configPath: /nodes/a/config.json
    pluginsDir: /nodes/a/plugins
    vmBinarySource: /opt/subnet-evm
    healthURL: http://avalanche:9650/ext/health
    containerNameFragment: avalanche
  - name: bvalanche
    configPath: /nodes/b/config.json
    pluginsDir: /nodes/b/plugins
    vmBinarySource: /opt/subnet-evm
    healthURL: http://bvalanche:9650/ext/health
    containerNameFragment: bvalanche
`)

	nodes, err := LoadNodes(path)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "avalanche", nodes[0].Name)
	assert.Equal(t, "NodeID-A", nodes[0].NodeID)
	assert.Equal(t, "/nodes/b/plugins", nodes[1].PluginsDir)
	assert.Equal(t, "http://bvalanche:9650/ext/health", nodes[1].HealthURL)
}

func TestLoadNodesErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{name: "empty", body: `nodes: []`, wantMsg: "no nodes defined"},
		{name: "malformed", body: `nodes: [`, wantMsg: "failed to parse"},
		{
			name: "missing fields",
			body: `
nodes:
  - name: avalanche
    configPath: /c.json
`,
			wantMsg: "pluginsDir is required",
		},
		{
			name: "duplicate names",
			body: `
nodes:
  - {name: a, configPath: /c, pluginsDir: /p, vmBinarySource: /v, containerNameFragment: a}
  - {name: a, configPath: /c, pluginsDir: /p, vmBinarySource: /v, containerNameFragment: a}
`,
			wantMsg: "duplicate name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadNodes(writeNodes(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadNodesMissingFile(t *testing.T) {
	_, err := LoadNodes(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
