package amqp

import (
	"encoding/json"
	"time"
)

// SummaryExportMessage asks the worker to archive a billing summary in the
// report spreadsheet. It carries only the query parameters; the worker
// re-reads the entries and recomputes the totals from storage so the
// archived document always reflects the stored state.
type SummaryExportMessage struct {
	View       string    `json:"view"`
	ProjectIDs []string  `json:"project_ids"`
	Months     []string  `json:"months"`
	StampDuty  bool      `json:"stamp_duty"`
	Surcharge  bool      `json:"surcharge"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewSummaryExportMessage creates an export request stamped with now.
func NewSummaryExportMessage(view string, projectIDs, months []string, stampDuty, surcharge bool) *SummaryExportMessage {
	return &SummaryExportMessage{
		View:       view,
		ProjectIDs: projectIDs,
		Months:     months,
		StampDuty:  stampDuty,
		Surcharge:  surcharge,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SummaryExportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SummaryExportMessageFromJSON creates a message from JSON bytes
func SummaryExportMessageFromJSON(data []byte) (*SummaryExportMessage, error) {
	var msg SummaryExportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
