package message

import "testing"

func TestTypeClassification(t *testing.T) {
	requests := []Type{ScriptCall, RemoteRefOp, ForwardAutogradReq}
	responses := []Type{ScriptResp, RRefFetchResp, ForwardAutogradResp, Exception}

	for _, tt := range requests {
		if !tt.IsRequest() || tt.IsResponse() {
			t.Errorf("%s should classify as a request", tt)
		}
	}
	for _, tt := range responses {
		if !tt.IsResponse() || tt.IsRequest() {
			t.Errorf("%s should classify as a response", tt)
		}
	}
	if !Exception.IsError() {
		t.Error("Exception should classify as an error")
	}
	if ScriptResp.IsError() {
		t.Error("ScriptResp should not classify as an error")
	}
}

func TestUnknownTypeString(t *testing.T) {
	got := Type(999).String()
	if got != "MESSAGE_TYPE(999)" {
		t.Errorf("unexpected string for unknown tag: %s", got)
	}
}

func TestNewAssignsID(t *testing.T) {
	m1 := New(ScriptCall, []byte("p"), nil)
	m2 := New(ScriptCall, []byte("p"), nil)

	if m1.ID == "" {
		t.Fatal("New must assign a correlation ID")
	}
	if m1.ID == m2.ID {
		t.Error("correlation IDs should be unique per message")
	}
	if m1.Type != ScriptCall || string(m1.Payload) != "p" {
		t.Error("New must carry type and payload through")
	}
}
