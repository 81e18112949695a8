package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/subnet-watchdog/pkg/types"
)

// NodesFile is the YAML document describing the managed nodes
//
//	nodes:
//	  - name: avalanche
//	    nodeId: NodeID-86ej2PyNFbJafTCSozj7PqLdWrAcSZJbz
//	    configPath: /nodes/avalanche/configs/chains/config.json
//	    pluginsDir: /nodes/avalanche/plugins
//	    vmBinarySource: /opt/subnet-evm
//	    healthURL: http://avalanche:9650/ext/health
//	    containerNameFragment: avalanche
type NodesFile struct {
	Nodes []*types.NodeDescriptor `yaml:"nodes"`
}

// LoadNodes reads and validates a nodes file
func LoadNodes(path string) ([]*types.NodeDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read nodes file: %w", err)
	}

	var file NodesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse nodes file %s: %w", path, err)
	}

	if err := ValidateNodes(file.Nodes); err != nil {
		return nil, fmt.Errorf("invalid nodes file %s: %w", path, err)
	}
	return file.Nodes, nil
}

// ValidateNodes checks required fields and name uniqueness
func ValidateNodes(nodes []*types.NodeDescriptor) error {
	if len(nodes) == 0 {
		return errors.New("no nodes defined")
	}

	names := make(map[string]struct{}, len(nodes))
	ids := make(map[string]struct{}, len(nodes))
	var errs []error
	for i, n := range nodes {
		if n == nil {
			errs = append(errs, fmt.Errorf("node %d: empty entry", i))
			continue
		}
		if n.Name == "" {
			errs = append(errs, fmt.Errorf("node %d: name is required", i))
		} else if _, dup := names[n.Name]; dup {
			errs = append(errs, fmt.Errorf("node %s: duplicate name", n.Name))
		}
		names[n.Name] = struct{}{}

		if n.NodeID != "" {
			if _, dup := ids[n.NodeID]; dup {
				errs = append(errs, fmt.Errorf("node %s: duplicate nodeId %s", n.Name, n.NodeID))
			}
			ids[n.NodeID] = struct{}{}
		}

		for _, f := range []struct{ name, value string }{
			{"configPath", n.ConfigPath},
			{"pluginsDir", n.PluginsDir},
			{"vmBinarySource", n.VMBinarySource},
			{"containerNameFragment", n.ContainerNameFragment},
		} {
			if f.value == "" {
				errs = append(errs, fmt.Errorf("node %s: %s is required", n.Name, f.name))
			}
		}
	}
	return errors.Join(errs...)
}
