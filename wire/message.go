// Package wire defines the binary envelope exchanged with the front-end over
// the WebSocket transport.
//
// Every frame is one Message: a command name plus exactly one payload
// variant. Requests flow bridge → front-end, replies flow back and carry the
// identifier of the request they answer. The encoding is the protobuf wire
// format so the front-end can decode it with generated code from the same
// schema:
//
//	message Message {
//	  string cmd = 1;
//	  oneof payload {
//	    AskQuestionRequest  ask_question_request  = 2;
//	    TaskFinishRequest   task_finish_request   = 3;
//	    AskQuestionResponse ask_question_response = 4;
//	    TaskFinishResponse  task_finish_response  = 5;
//	  }
//	}
package wire

import "strings"

// Command names
const (
	CmdAskQuestion      = "AskQuestion"
	CmdTaskFinish       = "TaskFinish"
	CmdAskQuestionReply = "AskQuestionReply"
	CmdTaskFinishReply  = "TaskFinishReply"
)

// ReplySuffix marks a command name as a reply to an earlier request.
const ReplySuffix = "Reply"

// ContentType identifies the kind of a ResultContent item.
type ContentType int32

const (
	ContentTypeText     ContentType = 1
	ContentTypeImage    ContentType = 2
	ContentTypeAudio    ContentType = 3
	ContentTypeResource ContentType = 4
)

// Message is the envelope for every frame on the transport.
// At most one payload field is set.
type Message struct {
	Cmd string

	AskQuestionRequest  *AskQuestionRequest
	TaskFinishRequest   *TaskFinishRequest
	AskQuestionResponse *AskQuestionResponse
	TaskFinishResponse  *TaskFinishResponse
}

// AskQuestionRequest asks the user a question and waits for an answer.
type AskQuestionRequest struct {
	ID      string
	Request AskQuestion
}

// AskQuestion is the body of an AskQuestionRequest.
type AskQuestion struct {
	Question string
}

// TaskFinishRequest tells the user a task is finished.
type TaskFinishRequest struct {
	ID      string
	Request TaskFinish
}

// TaskFinish is the body of a TaskFinishRequest.
type TaskFinish struct {
	Summary string
}

// AskQuestionResponse is the front-end's answer to an AskQuestionRequest.
type AskQuestionResponse struct {
	ID       string
	IsError  bool
	Contents []ResultContent
}

// TaskFinishResponse is the front-end's acknowledgement of a TaskFinishRequest.
type TaskFinishResponse struct {
	ID       string
	IsError  bool
	Contents []ResultContent
}

// ResultContent is one typed item of a reply. Only the field matching Type
// is meaningful.
type ResultContent struct {
	Type  ContentType
	Text  *TextContent
	Image *ImageContent
}

// TextContent is a plain text reply item.
type TextContent struct {
	Text string
}

// ImageContent is a base64 image reply item.
type ImageContent struct {
	Data     string
	MimeType string
}

// NewAskQuestion builds an AskQuestion request message.
func NewAskQuestion(id, question string) *Message {
	return &Message{
		Cmd: CmdAskQuestion,
		AskQuestionRequest: &AskQuestionRequest{
			ID:      id,
			Request: AskQuestion{Question: question},
		},
	}
}

// NewTaskFinish builds a TaskFinish request message.
func NewTaskFinish(id, summary string) *Message {
	return &Message{
		Cmd: CmdTaskFinish,
		TaskFinishRequest: &TaskFinishRequest{
			ID:      id,
			Request: TaskFinish{Summary: summary},
		},
	}
}

// Text returns a text content item.
func Text(s string) ResultContent {
	return ResultContent{Type: ContentTypeText, Text: &TextContent{Text: s}}
}

// IsReply reports whether the command name denotes a reply variant.
func (m *Message) IsReply() bool {
	return m != nil && strings.HasSuffix(m.Cmd, ReplySuffix)
}

// ReplyID returns the request identifier carried by a reply. ok is false
// for non-reply commands and for replies without a recognised payload.
func (m *Message) ReplyID() (id string, ok bool) {
	if !m.IsReply() {
		return "", false
	}
	switch {
	case m.AskQuestionResponse != nil:
		return m.AskQuestionResponse.ID, true
	case m.TaskFinishResponse != nil:
		return m.TaskFinishResponse.ID, true
	}
	return "", false
}

// RequestID returns the identifier of a request variant.
func (m *Message) RequestID() (id string, ok bool) {
	if m == nil {
		return "", false
	}
	switch {
	case m.AskQuestionRequest != nil:
		return m.AskQuestionRequest.ID, true
	case m.TaskFinishRequest != nil:
		return m.TaskFinishRequest.ID, true
	}
	return "", false
}

// Contents returns the content items of a reply, and whether the front-end
// flagged the reply as an error.
func (m *Message) Contents() (contents []ResultContent, isError bool) {
	if m == nil {
		return nil, false
	}
	switch {
	case m.AskQuestionResponse != nil:
		return m.AskQuestionResponse.Contents, m.AskQuestionResponse.IsError
	case m.TaskFinishResponse != nil:
		return m.TaskFinishResponse.Contents, m.TaskFinishResponse.IsError
	}
	return nil, false
}
