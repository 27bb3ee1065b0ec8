package wire

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	// ErrNilMessage is returned when encoding a nil message.
	ErrNilMessage = errors.New("wire: nil message")
	// ErrMultiplePayloads is returned when more than one payload variant is set.
	ErrMultiplePayloads = errors.New("wire: more than one payload set")
)

// Field numbers, see the schema in the package documentation.
const (
	fieldCmd                 protowire.Number = 1
	fieldAskQuestionRequest  protowire.Number = 2
	fieldTaskFinishRequest   protowire.Number = 3
	fieldAskQuestionResponse protowire.Number = 4
	fieldTaskFinishResponse  protowire.Number = 5

	// AskQuestionRequest / TaskFinishRequest
	fieldRequestID   protowire.Number = 1
	fieldRequestBody protowire.Number = 2

	// AskQuestion.question / TaskFinish.summary
	fieldBodyText protowire.Number = 1

	// AskQuestionResponse / TaskFinishResponse
	fieldResponseID       protowire.Number = 1
	fieldResponseIsError  protowire.Number = 2
	fieldResponseContents protowire.Number = 3

	// ResultContent
	fieldContentType  protowire.Number = 1
	fieldContentText  protowire.Number = 2
	fieldContentImage protowire.Number = 3

	// TextContent.text
	fieldTextText protowire.Number = 1

	// ImageContent
	fieldImageData     protowire.Number = 1
	fieldImageMimeType protowire.Number = 2
)

// skipField tells consumeFields to skip a field it does not know.
const skipField = -1

// Marshal encodes m in protobuf wire format.
func Marshal(m *Message) ([]byte, error) {
	if m == nil {
		return nil, ErrNilMessage
	}
	if m.payloadCount() > 1 {
		return nil, ErrMultiplePayloads
	}

	b := appendString(nil, fieldCmd, m.Cmd)
	switch {
	case m.AskQuestionRequest != nil:
		r := m.AskQuestionRequest
		b = appendMessage(b, fieldAskQuestionRequest, appendRequest(nil, r.ID, r.Request.Question))
	case m.TaskFinishRequest != nil:
		r := m.TaskFinishRequest
		b = appendMessage(b, fieldTaskFinishRequest, appendRequest(nil, r.ID, r.Request.Summary))
	case m.AskQuestionResponse != nil:
		r := m.AskQuestionResponse
		b = appendMessage(b, fieldAskQuestionResponse, appendResponse(nil, r.ID, r.IsError, r.Contents))
	case m.TaskFinishResponse != nil:
		r := m.TaskFinishResponse
		b = appendMessage(b, fieldTaskFinishResponse, appendResponse(nil, r.ID, r.IsError, r.Contents))
	}
	return b, nil
}

// Unmarshal decodes a protobuf-encoded Message. Unknown fields are skipped.
func Unmarshal(data []byte) (*Message, error) {
	m := &Message{}
	err := consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldCmd:
			return consumeString(num, typ, b, &m.Cmd)
		case fieldAskQuestionRequest:
			r := &AskQuestionRequest{}
			m.AskQuestionRequest = r
			return consumeMessage(num, typ, b, func(v []byte) error {
				return decodeRequest(v, &r.ID, &r.Request.Question)
			})
		case fieldTaskFinishRequest:
			r := &TaskFinishRequest{}
			m.TaskFinishRequest = r
			return consumeMessage(num, typ, b, func(v []byte) error {
				return decodeRequest(v, &r.ID, &r.Request.Summary)
			})
		case fieldAskQuestionResponse:
			r := &AskQuestionResponse{}
			m.AskQuestionResponse = r
			return consumeMessage(num, typ, b, func(v []byte) error {
				return decodeResponse(v, &r.ID, &r.IsError, &r.Contents)
			})
		case fieldTaskFinishResponse:
			r := &TaskFinishResponse{}
			m.TaskFinishResponse = r
			return consumeMessage(num, typ, b, func(v []byte) error {
				return decodeResponse(v, &r.ID, &r.IsError, &r.Contents)
			})
		}
		return skipField, nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Message) payloadCount() int {
	n := 0
	if m.AskQuestionRequest != nil {
		n++
	}
	if m.TaskFinishRequest != nil {
		n++
	}
	if m.AskQuestionResponse != nil {
		n++
	}
	if m.TaskFinishResponse != nil {
		n++
	}
	return n
}

func appendRequest(b []byte, id, text string) []byte {
	b = appendString(b, fieldRequestID, id)
	return appendMessage(b, fieldRequestBody, appendString(nil, fieldBodyText, text))
}

func appendResponse(b []byte, id string, isError bool, contents []ResultContent) []byte {
	b = appendString(b, fieldResponseID, id)
	if isError {
		b = protowire.AppendTag(b, fieldResponseIsError, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	for _, c := range contents {
		b = appendMessage(b, fieldResponseContents, appendContent(nil, c))
	}
	return b
}

func appendContent(b []byte, c ResultContent) []byte {
	if c.Type != 0 {
		b = protowire.AppendTag(b, fieldContentType, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(c.Type)))
	}
	if c.Text != nil {
		b = appendMessage(b, fieldContentText, appendString(nil, fieldTextText, c.Text.Text))
	}
	if c.Image != nil {
		img := appendString(nil, fieldImageData, c.Image.Data)
		img = appendString(img, fieldImageMimeType, c.Image.MimeType)
		b = appendMessage(b, fieldContentImage, img)
	}
	return b
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// appendMessage always writes the field, even for an empty body, so that
// oneof presence survives a round trip.
func appendMessage(b []byte, num protowire.Number, body []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, body)
}

func decodeRequest(data []byte, id, text *string) error {
	return consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldRequestID:
			return consumeString(num, typ, b, id)
		case fieldRequestBody:
			return consumeMessage(num, typ, b, func(v []byte) error {
				return consumeFields(v, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
					if num == fieldBodyText {
						return consumeString(num, typ, b, text)
					}
					return skipField, nil
				})
			})
		}
		return skipField, nil
	})
}

func decodeResponse(data []byte, id *string, isError *bool, contents *[]ResultContent) error {
	return consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldResponseID:
			return consumeString(num, typ, b, id)
		case fieldResponseIsError:
			v, n, err := consumeVarint(num, typ, b)
			if err != nil {
				return 0, err
			}
			*isError = protowire.DecodeBool(v)
			return n, nil
		case fieldResponseContents:
			return consumeMessage(num, typ, b, func(v []byte) error {
				c, err := decodeContent(v)
				if err != nil {
					return err
				}
				*contents = append(*contents, c)
				return nil
			})
		}
		return skipField, nil
	})
}

func decodeContent(data []byte) (ResultContent, error) {
	var c ResultContent
	err := consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldContentType:
			v, n, err := consumeVarint(num, typ, b)
			if err != nil {
				return 0, err
			}
			c.Type = ContentType(int32(v))
			return n, nil
		case fieldContentText:
			t := &TextContent{}
			c.Text = t
			return consumeMessage(num, typ, b, func(v []byte) error {
				return consumeFields(v, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
					if num == fieldTextText {
						return consumeString(num, typ, b, &t.Text)
					}
					return skipField, nil
				})
			})
		case fieldContentImage:
			img := &ImageContent{}
			c.Image = img
			return consumeMessage(num, typ, b, func(v []byte) error {
				return consumeFields(v, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
					switch num {
					case fieldImageData:
						return consumeString(num, typ, b, &img.Data)
					case fieldImageMimeType:
						return consumeString(num, typ, b, &img.MimeType)
					}
					return skipField, nil
				})
			})
		}
		return skipField, nil
	})
	return c, err
}

// consumeFields walks every field in b. fn returns the number of bytes it
// consumed from the field value, or skipField to have the value skipped.
func consumeFields(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("wire: %w", protowire.ParseError(n))
		}
		b = b[n:]

		n, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if n == skipField {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("wire: field %d: %w", num, protowire.ParseError(n))
			}
		}
		b = b[n:]
	}
	return nil
}

func consumeString(num protowire.Number, typ protowire.Type, b []byte, dst *string) (int, error) {
	if typ != protowire.BytesType {
		return 0, wireTypeError(num, typ)
	}
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return 0, fmt.Errorf("wire: field %d: %w", num, protowire.ParseError(n))
	}
	*dst = v
	return n, nil
}

func consumeMessage(num protowire.Number, typ protowire.Type, b []byte, decode func([]byte) error) (int, error) {
	if typ != protowire.BytesType {
		return 0, wireTypeError(num, typ)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return 0, fmt.Errorf("wire: field %d: %w", num, protowire.ParseError(n))
	}
	if err := decode(v); err != nil {
		return 0, err
	}
	return n, nil
}

func consumeVarint(num protowire.Number, typ protowire.Type, b []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, wireTypeError(num, typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, fmt.Errorf("wire: field %d: %w", num, protowire.ParseError(n))
	}
	return v, n, nil
}

func wireTypeError(num protowire.Number, typ protowire.Type) error {
	return fmt.Errorf("wire: field %d: unexpected wire type %d", num, typ)
}
