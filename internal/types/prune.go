package types

// PruneResult represents the result of a prune operation.
type PruneResult struct {
	NodesRemoved int `json:"nodesRemoved"`
	JobsRemoved  int `json:"jobsRemoved"`
}
