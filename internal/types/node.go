package types

import (
	"strings"
	"time"
)

// NodeStatus represents the current state of a node
type NodeStatus string

const (
	NodeOnline  NodeStatus = "online"
	NodeOffline NodeStatus = "offline"
)

// Setting is a key/value pair attached to a node and exported to jobs that hold it
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Node represents an exclusively-holdable execution node
type Node struct {
	Name          string     `json:"name"`
	Labels        string     `json:"labels"`
	Reservable    bool       `json:"reservable"`
	Settings      []Setting  `json:"settings,omitempty"`
	Status        NodeStatus `json:"status"`
	LastHeartbeat time.Time  `json:"lastHeartbeat"`
}

// LabelSet returns the node's labels as individual tags
func (n *Node) LabelSet() []string {
	return strings.Fields(n.Labels)
}

// HasLabel reports whether any of the node's tags equals label.
func (n *Node) HasLabel(label string) bool {
	label = strings.TrimSpace(label)
	if label == "" {
		return false
	}
	for _, tag := range n.LabelSet() {
		if tag == label {
			return true
		}
	}
	return false
}

// IsOnline reports whether the node is currently online
func (n *Node) IsOnline() bool {
	return n.Status == NodeOnline
}

// Matches reports whether the node is managed and carries label.
// Online state and reservations are not considered.
func (n *Node) Matches(label string) bool {
	return n.Reservable && n.HasLabel(label)
}
