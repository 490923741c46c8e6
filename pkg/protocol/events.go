package protocol

// Event kinds pushed over a user's topic when a connection record changes.
//
// CONNECTION_REQUEST goes to the elderly user's topic; CONNECTION_APPROVED
// and CONNECTION_REJECTED go to the caregiver's topic. Delivery is
// best-effort and at-most-once: a subscriber that is offline when an event
// is published recovers by refreshing its connection lists.
const (
	EventConnectionRequest  = "CONNECTION_REQUEST"
	EventConnectionApproved = "CONNECTION_APPROVED"
	EventConnectionRejected = "CONNECTION_REJECTED"
)

// Event is the payload of one notification.
//
// Caregiver fields are set on CONNECTION_REQUEST so the elderly client can
// render an approve/reject prompt without a directory round-trip. Timestamps
// are unix millis.
type Event struct {
	Kind          string `json:"type"`
	ConnectionID  string `json:"connectionId"`
	CaregiverID   string `json:"caregiverId,omitempty"`
	CaregiverName string `json:"caregiverName,omitempty"`
	ElderlyID     string `json:"elderlyId,omitempty"`
	Status        string `json:"status,omitempty"`
	CreatedAt     int64  `json:"createdAt,omitempty"`
	ConfirmedAt   int64  `json:"confirmedAt,omitempty"`
}
