package types

import (
	"sort"
	"time"
)

// SubnetBinding identifies one tracked chain and the VM plugin implementing it
type SubnetBinding struct {
	SubnetID string `json:"subnetId"`
	VMID     string `json:"vmId"`
}

// DesiredState is the set of subnet bindings as last fetched from the source.
// Bindings are deduplicated by SubnetID; the first occurrence wins.
type DesiredState struct {
	bindings []SubnetBinding
	index    map[string]struct{}
}

// NewDesiredState builds a DesiredState from a fetched binding list
func NewDesiredState(bindings []SubnetBinding) DesiredState {
	s := DesiredState{
		bindings: make([]SubnetBinding, 0, len(bindings)),
		index:    make(map[string]struct{}, len(bindings)),
	}
	for _, b := range bindings {
		if b.SubnetID == "" {
			continue
		}
		if _, seen := s.index[b.SubnetID]; seen {
			continue
		}
		s.index[b.SubnetID] = struct{}{}
		s.bindings = append(s.bindings, b)
	}
	return s
}

// Bindings returns a copy of the deduplicated bindings in fetch order
func (s DesiredState) Bindings() []SubnetBinding {
	out := make([]SubnetBinding, len(s.bindings))
	copy(out, s.bindings)
	return out
}

// Len returns the number of distinct subnets
func (s DesiredState) Len() int {
	return len(s.bindings)
}

// Contains reports whether the subnet is part of the desired state
func (s DesiredState) Contains(subnetID string) bool {
	_, ok := s.index[subnetID]
	return ok
}

// SubnetIDs returns the distinct subnet IDs, sorted
func (s DesiredState) SubnetIDs() []string {
	ids := make([]string, 0, len(s.bindings))
	for _, b := range s.bindings {
		ids = append(ids, b.SubnetID)
	}
	sort.Strings(ids)
	return ids
}

// VMIDs returns the distinct VM IDs required by the desired subnets, sorted
func (s DesiredState) VMIDs() []string {
	seen := make(map[string]struct{}, len(s.bindings))
	ids := make([]string, 0, len(s.bindings))
	for _, b := range s.bindings {
		if b.VMID == "" {
			continue
		}
		if _, ok := seen[b.VMID]; ok {
			continue
		}
		seen[b.VMID] = struct{}{}
		ids = append(ids, b.VMID)
	}
	sort.Strings(ids)
	return ids
}

// Equal compares the subnet ID sets of two states. Order and VM IDs are ignored.
func (s DesiredState) Equal(other DesiredState) bool {
	if s.Len() != other.Len() {
		return false
	}
	for _, b := range s.bindings {
		if !other.Contains(b.SubnetID) {
			return false
		}
	}
	return true
}

// NodeDescriptor is the static, operator-supplied description of a managed node
type NodeDescriptor struct {
	Name string `yaml:"name" json:"name"`

	// NodeID is the external identifier used to pick the primary node
	// in a multi-node rollout (e.g. "NodeID-86ej2PyNFbJafTCSozj7PqLdWrAcSZJbz")
	NodeID string `yaml:"nodeId" json:"nodeId,omitempty"`

	ConfigPath            string `yaml:"configPath" json:"configPath"`
	PluginsDir            string `yaml:"pluginsDir" json:"pluginsDir"`
	VMBinarySource        string `yaml:"vmBinarySource" json:"vmBinarySource"`
	HealthURL             string `yaml:"healthURL" json:"healthURL"`
	ContainerNameFragment string `yaml:"containerNameFragment" json:"containerNameFragment"`
}

// PassOutcome is the result of one reconciliation pass
type PassOutcome string

const (
	PassOutcomeSucceeded        PassOutcome = "succeeded"
	PassOutcomeFailed           PassOutcome = "failed"
	PassOutcomePrimaryFailed    PassOutcome = "primary_failed"
	PassOutcomePrimaryUnhealthy PassOutcome = "primary_unhealthy"
)

// RolloutPhase is the position of a pass within the primary-first sequence
type RolloutPhase string

const (
	PhasePrimaryPending   RolloutPhase = "primary-pending"
	PhasePrimaryHealthy   RolloutPhase = "primary-healthy"
	PhaseSecondaryPending RolloutPhase = "secondary-pending"
	PhaseDone             RolloutPhase = "done"
)

// PassRecord is the persisted summary of one reconciliation pass
type PassRecord struct {
	ID         string       `json:"id"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	SubnetIDs  []string     `json:"subnetIds"`
	Nodes      []string     `json:"nodes"`
	Outcome    PassOutcome  `json:"outcome"`
	Phase      RolloutPhase `json:"phase,omitempty"`
	Error      string       `json:"error,omitempty"`
}
