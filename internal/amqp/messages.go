package amqp

import (
	"encoding/json"
	"time"
)

// EntryMirrorMessage asks the worker to mirror one ledger entry to the sheet.
// It carries only the event id; the worker reads the full row from the
// database so the queue never holds stale entry data.
type EntryMirrorMessage struct {
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEntryMirrorMessage(eventID string) *EntryMirrorMessage {
	return &EntryMirrorMessage{
		EventID:   eventID,
		Timestamp: time.Now(),
	}
}

func (m *EntryMirrorMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func EntryMirrorMessageFromJSON(data []byte) (*EntryMirrorMessage, error) {
	var msg EntryMirrorMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
