package wire

import (
	"errors"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func TestMarshal_AskQuestionRequest(t *testing.T) {
	data, err := Marshal(NewAskQuestion("req-1", "Proceed?"))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if got.Cmd != CmdAskQuestion {
		t.Errorf("Cmd = %q, want %q", got.Cmd, CmdAskQuestion)
	}
	if got.AskQuestionRequest == nil {
		t.Fatal("AskQuestionRequest is nil")
	}
	if got.AskQuestionRequest.ID != "req-1" {
		t.Errorf("ID = %q, want 'req-1'", got.AskQuestionRequest.ID)
	}
	if got.AskQuestionRequest.Request.Question != "Proceed?" {
		t.Errorf("Question = %q, want 'Proceed?'", got.AskQuestionRequest.Request.Question)
	}
	if id, ok := got.RequestID(); !ok || id != "req-1" {
		t.Errorf("RequestID() = %q, %v", id, ok)
	}
}

func TestMarshal_TaskFinishReply(t *testing.T) {
	msg := &Message{
		Cmd: CmdTaskFinishReply,
		TaskFinishResponse: &TaskFinishResponse{
			ID:      "req-2",
			IsError: true,
			Contents: []ResultContent{
				Text("done"),
				{Type: ContentTypeImage, Image: &ImageContent{Data: "aGk=", MimeType: "image/png"}},
			},
		},
	}

	data, err := Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if id, ok := got.ReplyID(); !ok || id != "req-2" {
		t.Fatalf("ReplyID() = %q, %v, want 'req-2', true", id, ok)
	}
	contents, isError := got.Contents()
	if !isError {
		t.Error("expected IsError to survive round trip")
	}
	if len(contents) != 2 {
		t.Fatalf("len(contents) = %d, want 2", len(contents))
	}
	if contents[0].Type != ContentTypeText || contents[0].Text == nil || contents[0].Text.Text != "done" {
		t.Errorf("contents[0] = %+v, want text 'done'", contents[0])
	}
	if contents[1].Image == nil || contents[1].Image.MimeType != "image/png" {
		t.Errorf("contents[1] = %+v, want image/png", contents[1])
	}
}

func TestMarshal_EmptyBodyKeepsPayload(t *testing.T) {
	data, err := Marshal(NewTaskFinish("", ""))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.TaskFinishRequest == nil {
		t.Error("TaskFinishRequest should be present even with empty fields")
	}
}

func TestMarshal_Errors(t *testing.T) {
	if _, err := Marshal(nil); !errors.Is(err, ErrNilMessage) {
		t.Errorf("Marshal(nil) error = %v, want ErrNilMessage", err)
	}

	msg := NewAskQuestion("a", "b")
	msg.TaskFinishRequest = &TaskFinishRequest{ID: "c"}
	if _, err := Marshal(msg); !errors.Is(err, ErrMultiplePayloads) {
		t.Errorf("Marshal(two payloads) error = %v, want ErrMultiplePayloads", err)
	}
}

func TestUnmarshal_SkipsUnknownFields(t *testing.T) {
	data, err := Marshal(NewAskQuestion("req-3", "Why?"))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	data = protowire.AppendTag(data, 99, protowire.VarintType)
	data = protowire.AppendVarint(data, 7)
	data = protowire.AppendTag(data, 100, protowire.BytesType)
	data = protowire.AppendString(data, "future")

	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.AskQuestionRequest == nil || got.AskQuestionRequest.ID != "req-3" {
		t.Errorf("known fields lost: %+v", got)
	}
}

func TestUnmarshal_Truncated(t *testing.T) {
	data, err := Marshal(NewAskQuestion("req-4", "Truncate me"))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if _, err := Unmarshal(data[:len(data)-3]); err == nil {
		t.Error("expected error for truncated input")
	}
}

func TestUnmarshal_WrongWireType(t *testing.T) {
	data := protowire.AppendTag(nil, fieldCmd, protowire.VarintType)
	data = protowire.AppendVarint(data, 1)
	if _, err := Unmarshal(data); err == nil {
		t.Error("expected error for cmd encoded as varint")
	}
}

func TestReplyID(t *testing.T) {
	tests := []struct {
		name   string
		msg    *Message
		wantID string
		wantOK bool
	}{
		{
			name:   "ask question reply",
			msg:    &Message{Cmd: CmdAskQuestionReply, AskQuestionResponse: &AskQuestionResponse{ID: "a"}},
			wantID: "a",
			wantOK: true,
		},
		{
			name:   "task finish reply",
			msg:    &Message{Cmd: CmdTaskFinishReply, TaskFinishResponse: &TaskFinishResponse{ID: "b"}},
			wantID: "b",
			wantOK: true,
		},
		{
			name:   "request is not a reply",
			msg:    NewAskQuestion("c", "q"),
			wantOK: false,
		},
		{
			name:   "reply command without payload",
			msg:    &Message{Cmd: CmdAskQuestionReply},
			wantOK: false,
		},
		{
			name:   "response payload under a request command",
			msg:    &Message{Cmd: CmdAskQuestion, AskQuestionResponse: &AskQuestionResponse{ID: "d"}},
			wantOK: false,
		},
		{
			name:   "nil message",
			msg:    nil,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := tt.msg.ReplyID()
			if ok != tt.wantOK || id != tt.wantID {
				t.Errorf("ReplyID() = %q, %v, want %q, %v", id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}
