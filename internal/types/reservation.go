package types

import "time"

// HolderKind identifies who owns a reservation
type HolderKind string

const (
	HolderJob  HolderKind = "job"
	HolderUser HolderKind = "user"
)

// Reservation records the current holder of a node
type Reservation struct {
	Node      string     `json:"node"`
	Holder    string     `json:"holder"`
	Kind      HolderKind `json:"kind"`
	Label     string     `json:"label,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Resource is a reservable node together with its current reservation, if any
type Resource struct {
	Node        Node         `json:"node"`
	Reservation *Reservation `json:"reservation,omitempty"`
}

// QueuedRequest describes an acquisition request waiting on a label
type QueuedRequest struct {
	Requester string    `json:"requester"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"createdAt"`
	InService bool      `json:"inService"`
}

// LabelQueue is a snapshot of one label's wait queue
type LabelQueue struct {
	Label    string          `json:"label"`
	Requests []QueuedRequest `json:"requests"`
}
