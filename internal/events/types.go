// Package events provides event management functionality.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	TransactionRealized EventType = "TRANSACTION_REALIZED"
	TransferRealized    EventType = "TRANSFER_REALIZED"
	TransactionAdded    EventType = "TRANSACTION_ADDED"
	ExceptionAdded      EventType = "EXCEPTION_ADDED"
	RuleDeactivated     EventType = "RULE_DEACTIVATED"
	PastDueDigest       EventType = "PAST_DUE_DIGEST"
	BackupCompleted     EventType = "BACKUP_COMPLETED"
	ErrorOccurred       EventType = "ERROR_OCCURRED"
)

// AllEventTypes lists every event type, for subscribers that stream the full
// feed (SSE, websocket).
var AllEventTypes = []EventType{
	TransactionRealized,
	TransferRealized,
	TransactionAdded,
	ExceptionAdded,
	RuleDeactivated,
	PastDueDigest,
	BackupCompleted,
	ErrorOccurred,
}

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Module    string                 `json:"module"`
	Data      map[string]interface{} `json:"data"`
}
