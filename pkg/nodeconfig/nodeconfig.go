package nodeconfig

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuemby/subnet-watchdog/pkg/log"
	"github.com/cuemby/subnet-watchdog/pkg/types"
)

// Recognized node config keys
const (
	KeyTrackSubnets     = "track-subnets"
	KeyPublicIP         = "public-ip"
	KeyHTTPHost         = "http-host"
	KeyHTTPAllowedHosts = "http-allowed-hosts"
)

// nodeLocalKeys are written blank when the existing config cannot be read
var nodeLocalKeys = []string{KeyPublicIP, KeyHTTPHost, KeyHTTPAllowedHosts}

// Document is a node config file. Values are kept as raw JSON so keys the
// watchdog does not know about survive a rewrite unchanged.
type Document map[string]json.RawMessage

// TrackSubnets returns the decoded track-subnets value, or "" if absent
func (d Document) TrackSubnets() string {
	return d.String(KeyTrackSubnets)
}

// String decodes a string value, returning "" when absent or not a string
func (d Document) String(key string) string {
	raw, ok := d[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// SetString stores a string value
func (d Document) SetString(key, value string) {
	raw, _ := json.Marshal(value)
	d[key] = raw
}

// JoinSubnets renders the desired subnet IDs as the track-subnets value
func JoinSubnets(state types.DesiredState) string {
	return strings.Join(state.SubnetIDs(), ",")
}

// Render builds the config document for a desired state on top of base
func Render(base Document, state types.DesiredState) Document {
	out := make(Document, len(base)+1)
	for k, v := range base {
		out[k] = v
	}
	out.SetString(KeyTrackSubnets, JoinSubnets(state))
	return out
}

// EncodeBase64 returns the compact JSON encoding of doc in standard base64,
// the form node images accept as an inline config
func EncodeBase64(doc Document) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Read loads and parses the config file at path
func Read(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	doc := Document{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return doc, nil
}

// Writer rewrites node config files
type Writer struct{}

// NewWriter creates a config writer
func NewWriter() *Writer {
	return &Writer{}
}

// Write merges the desired subnets into the node's config file. A missing or
// corrupt existing file is logged and replaced by a blank baseline.
func (w *Writer) Write(node *types.NodeDescriptor, state types.DesiredState) error {
	logger := log.WithNode("nodeconfig", node.Name)

	base, err := Read(node.ConfigPath)
	if err != nil {
		logger.Warn().Err(err).Msg("existing config unusable, node-local fields will be blank")
		base = Document{}
		for _, key := range nodeLocalKeys {
			base.SetString(key, "")
		}
	}

	doc := Render(base, state)
	if err := writeFileAtomic(node.ConfigPath, doc); err != nil {
		return err
	}

	logger.Info().
		Str("path", node.ConfigPath).
		Str(KeyTrackSubnets, doc.TrackSubnets()).
		Msg("config updated")
	return nil
}

// writeFileAtomic writes doc to a temp file beside path and renames it into place
func writeFileAtomic(path string, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	data = append(data, '\n')

	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp config in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close config: %w", err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("failed to set config mode: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace config %s: %w", path, err)
	}
	return nil
}
