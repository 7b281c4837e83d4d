package notify

import "time"

// Event is one workflow status transition pushed to the notification/audit
// sink. Publishing is fire-and-forget: a failed publish never rolls back the
// transition that produced it.
type Event struct {
	Time        time.Time         `json:"time"`
	Kind        string            `json:"kind"` // approval.created|step.approved|step.rejected|step.skipped|approval.approved|approval.rejected|access.revoked
	ApprovalRef string            `json:"approval_ref"`
	Actor       string            `json:"actor"`
	Meta        map[string]string `json:"meta,omitempty"`
}

// Queue publishes workflow events to downstream consumers. Implementations
// are backed by Redis Streams, Kafka, or a no-op for dev.
type Queue interface {
	Publish(evt Event) error
	Close() error
}
