package amqp

import (
	"testing"
)

func TestSummaryExportMessageRoundTrip(t *testing.T) {
	msg := NewSummaryExportMessage("billed", []string{"p1", "p2"}, []string{"2025-03"}, true, false)

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := SummaryExportMessageFromJSON(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.View != "billed" || len(got.ProjectIDs) != 2 || got.Months[0] != "2025-03" {
		t.Fatalf("message mismatch: %+v", got)
	}
	if !got.StampDuty || got.Surcharge {
		t.Fatalf("toggle mismatch: %+v", got)
	}
	if got.Timestamp.IsZero() {
		t.Fatal("timestamp must be set")
	}
}

func TestSummaryExportMessageRejectsGarbage(t *testing.T) {
	if _, err := SummaryExportMessageFromJSON([]byte("not json")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
