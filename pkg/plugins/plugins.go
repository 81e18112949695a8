package plugins

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuemby/subnet-watchdog/pkg/log"
	"github.com/cuemby/subnet-watchdog/pkg/metrics"
	"github.com/cuemby/subnet-watchdog/pkg/types"
)

// ErrInvalidVMID is reported for VM IDs that are not a single file name
var ErrInvalidVMID = errors.New("invalid vm id")

// SyncResult summarizes one plugin synchronization
type SyncResult struct {
	Added   []string
	Removed []string
	Failed  map[string]error
}

// Changed reports whether any file was added or removed
func (r SyncResult) Changed() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0
}

// Synchronizer converges a node's plugin directory to one file per desired VM ID
type Synchronizer struct {
	// copyFile is swapped in tests to inject copy failures
	copyFile func(src, dst string) error
}

// NewSynchronizer creates a plugin synchronizer
func NewSynchronizer() *Synchronizer {
	return &Synchronizer{copyFile: copyFileAtomic}
}

// Sync adds missing plugins from the node's VM template and removes stale ones.
// Only a failure to list the plugin directory is returned; per-file failures
// are logged and reported in the result so the next pass can retry them.
func (s *Synchronizer) Sync(node *types.NodeDescriptor, vmIDs []string) (SyncResult, error) {
	logger := log.WithNode("plugins", node.Name)
	result := SyncResult{Failed: make(map[string]error)}

	entries, err := os.ReadDir(node.PluginsDir)
	if err != nil {
		return result, fmt.Errorf("failed to list plugins directory %s: %w", node.PluginsDir, err)
	}

	present := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		present[e.Name()] = struct{}{}
	}
	desired := make(map[string]struct{}, len(vmIDs))
	for _, id := range vmIDs {
		desired[id] = struct{}{}
	}

	for _, vmID := range vmIDs {
		if _, ok := present[vmID]; ok {
			continue
		}
		if err := validVMID(vmID); err != nil {
			metrics.PluginOperationsTotal.WithLabelValues("add", "error").Inc()
			logger.Error().Err(err).Str("vm_id", vmID).Msg("refusing to install plugin")
			result.Failed[vmID] = err
			continue
		}
		dst := filepath.Join(node.PluginsDir, vmID)
		if err := s.copyFile(node.VMBinarySource, dst); err != nil {
			metrics.PluginOperationsTotal.WithLabelValues("add", "error").Inc()
			logger.Error().Err(err).Str("vm_id", vmID).Msg("failed to copy VM binary")
			result.Failed[vmID] = err
			continue
		}
		metrics.PluginOperationsTotal.WithLabelValues("add", "ok").Inc()
		logger.Info().Str("vm_id", vmID).Str("path", dst).Msg("plugin added")
		result.Added = append(result.Added, vmID)
	}

	for _, e := range entries {
		name := e.Name()
		if _, ok := desired[name]; ok {
			continue
		}
		path := filepath.Join(node.PluginsDir, name)
		if err := os.RemoveAll(path); err != nil {
			metrics.PluginOperationsTotal.WithLabelValues("remove", "error").Inc()
			logger.Error().Err(err).Str("plugin", name).Msg("failed to remove stale plugin")
			result.Failed[name] = err
			continue
		}
		metrics.PluginOperationsTotal.WithLabelValues("remove", "ok").Inc()
		logger.Info().Str("plugin", name).Msg("stale plugin removed")
		result.Removed = append(result.Removed, name)
	}

	return result, nil
}

// validVMID rejects IDs that would resolve outside the plugins directory
func validVMID(vmID string) error {
	if vmID == "" || vmID == "." || vmID == ".." ||
		vmID != filepath.Base(vmID) || strings.ContainsAny(vmID, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidVMID, vmID)
	}
	return nil
}

// copyFileAtomic copies src to a temp file beside dst, keeping src's mode, and
// renames it into place so the node never loads a half-written plugin
func copyFileAtomic(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open VM binary %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat VM binary %s: %w", src, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp plugin: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to copy VM binary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp plugin: %w", err)
	}
	if err := os.Chmod(tmpName, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to set plugin mode: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("failed to install plugin %s: %w", dst, err)
	}
	return nil
}
