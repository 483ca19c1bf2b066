// Package protocol defines the messages exchanged between a document
// session and its rich views, their JSON wire format, request
// correlation and the channels carrying them.
package protocol

import (
	"encoding/json"

	"github.com/pkg/errors"
)

type Type string

const (
	TypeReady       Type = "ready"
	TypeInit        Type = "init"
	TypeUpdate      Type = "update"
	TypeEdit        Type = "edit"
	TypeGetFileData Type = "getFileData"
	TypeResponse    Type = "response"
)

type Message interface {
	Type() Type
}

// Ready is sent by a view once it has loaded.
type Ready struct{}

// Init is the single answer to Ready.
type Init struct {
	Value    string
	Editable bool
}

// Update pushes content changed outside of the receiving view.
type Update struct {
	Content string
}

// Edit carries the Markdown of a view after user interaction.
type Edit struct {
	Content string
}

// GetFileData asks a view for its current content.
type GetFileData struct {
	RequestID int64
}

// Response answers GetFileData.
type Response struct {
	RequestID int64
	Body      string
}

func (Ready) Type() Type       { return TypeReady }
func (Init) Type() Type        { return TypeInit }
func (Update) Type() Type      { return TypeUpdate }
func (Edit) Type() Type        { return TypeEdit }
func (GetFileData) Type() Type { return TypeGetFileData }
func (Response) Type() Type    { return TypeResponse }

type envelope struct {
	Type      Type            `json:"type"`
	Body      json.RawMessage `json:"body,omitempty"`
	Content   *string         `json:"content,omitempty"`
	RequestID *int64          `json:"requestId,omitempty"`
}

type initBody struct {
	Value    string `json:"value"`
	Editable bool   `json:"editable"`
}

type updateBody struct {
	Content string `json:"content"`
}

func Encode(msg Message) ([]byte, error) {
	env := envelope{Type: msg.Type()}

	var err error
	switch m := msg.(type) {
	case Ready:
	case Init:
		env.Body, err = json.Marshal(initBody{Value: m.Value, Editable: m.Editable})
	case Update:
		env.Body, err = json.Marshal(updateBody{Content: m.Content})
	case Edit:
		env.Content = &m.Content
	case GetFileData:
		env.RequestID = &m.RequestID
	case Response:
		env.RequestID = &m.RequestID
		env.Body, err = json.Marshal(m.Body)
	default:
		return nil, errors.Errorf("unsupported message %T", msg)
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}

	data, err := json.Marshal(env)
	return data, errors.WithStack(err)
}

// Decode parses a single message. A message of a known type missing a
// required field is an error, as is an unknown type.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(err, "failed to decode message")
	}

	switch env.Type {
	case TypeReady:
		return Ready{}, nil

	case TypeInit:
		// editable defaults to true when omitted
		body := initBody{Editable: true}
		if err := unmarshalBody(env.Body, &body); err != nil {
			return nil, err
		}
		return Init{Value: body.Value, Editable: body.Editable}, nil

	case TypeUpdate:
		var body updateBody
		if err := unmarshalBody(env.Body, &body); err != nil {
			return nil, err
		}
		return Update{Content: body.Content}, nil

	case TypeEdit:
		if env.Content == nil {
			return nil, errors.New("edit message without content")
		}
		return Edit{Content: *env.Content}, nil

	case TypeGetFileData:
		if env.RequestID == nil {
			return nil, errors.New("getFileData message without requestId")
		}
		return GetFileData{RequestID: *env.RequestID}, nil

	case TypeResponse:
		if env.RequestID == nil {
			return nil, errors.New("response message without requestId")
		}
		var body string
		if err := unmarshalBody(env.Body, &body); err != nil {
			return nil, err
		}
		return Response{RequestID: *env.RequestID, Body: body}, nil
	}

	return nil, errors.Errorf("unknown message type %q", env.Type)
}

func unmarshalBody(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(raw, v), "failed to decode message body")
}
