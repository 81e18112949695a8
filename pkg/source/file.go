package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cuemby/subnet-watchdog/pkg/types"
)

// Entry is one subnet in a subnets file
type Entry struct {
	Name     string `json:"name"`
	SubnetID string `json:"subnetId"`
	VMID     string `json:"vmId"`
}

// SubnetsFile is the JSON document read by FileSource and the seed command
type SubnetsFile struct {
	Subnets []Entry `json:"subnets"`
}

// LoadEntries parses a subnets file
func LoadEntries(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read subnets file: %w", err)
	}

	var file SubnetsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse subnets file %s: %w", path, err)
	}
	return file.Subnets, nil
}

// FileSource serves bindings from a JSON subnets file, re-read on every fetch
type FileSource struct {
	path string
}

// NewFileSource creates a source backed by the file at path
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// FetchAll returns the file's bindings in file order, skipping entries without a subnet ID
func (s *FileSource) FetchAll(ctx context.Context) ([]types.SubnetBinding, error) {
	entries, err := LoadEntries(s.path)
	if err != nil {
		return nil, err
	}

	result := make([]types.SubnetBinding, 0, len(entries))
	for _, e := range entries {
		if e.SubnetID == "" {
			continue
		}
		result = append(result, types.SubnetBinding{SubnetID: e.SubnetID, VMID: e.VMID})
	}
	return result, nil
}
