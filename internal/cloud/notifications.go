package cloud

// ChangeReason describes why a record changed on the remote store.
type ChangeReason string

const (
	ReasonCreated ChangeReason = "created"
	ReasonUpdated ChangeReason = "updated"
	ReasonDeleted ChangeReason = "deleted"
	ReasonUnknown ChangeReason = "unknown"
)

// Notification is a push-triggered pull signal.
type Notification struct {
	SubscriptionID string
	RecordID       string
	Reason         ChangeReason
}

// ParseNotification decodes a raw push payload. Absent or malformed keys
// are tolerated: a payload without a usable record id parses as not-ok and
// the caller logs and drops it. An unrecognized reason string degrades to
// ReasonUnknown rather than rejecting the payload.
func ParseNotification(payload map[string]interface{}) (Notification, bool) {
	if payload == nil {
		return Notification{}, false
	}

	recordID, ok := payload["recordId"].(string)
	if !ok || recordID == "" {
		return Notification{}, false
	}

	subscriptionID, _ := payload["subscriptionId"].(string)

	reason := ReasonUnknown
	if raw, ok := payload["reason"].(string); ok {
		switch ChangeReason(raw) {
		case ReasonCreated, ReasonUpdated, ReasonDeleted:
			reason = ChangeReason(raw)
		}
	}

	return Notification{
		SubscriptionID: subscriptionID,
		RecordID:       recordID,
		Reason:         reason,
	}, true
}
