package models

import (
	"time"
)

// Click is one entry of the append-only visit log of a link.
type Click struct {
	ID        int64     `json:"id"`
	LinkID    int64     `json:"link_id"`
	IPAddress string    `json:"ip_address"`
	Timestamp time.Time `json:"timestamp"`
}

// LinkStats is the owner-facing analytics projection: the visit counter
// together with the full click log, in insertion order.
type LinkStats struct {
	ShortID    string  `json:"short_id"`
	VisitCount int64   `json:"visit_count"`
	Clicks     []Click `json:"clicks"`
}
