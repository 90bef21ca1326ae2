package sanitize

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Shape identifies which conversation layout a request body uses.
type Shape int

const (
	// ShapeUnrecognized bodies are passed through untouched.
	ShapeUnrecognized Shape = iota
	// ShapeMessages is {"messages":[{role, content}, ...]}.
	ShapeMessages
	// ShapeChoices is {"choices":[{"message":{role, content}}, ...]}.
	ShapeChoices
)

func (s Shape) String() string {
	switch s {
	case ShapeMessages:
		return "messages"
	case ShapeChoices:
		return "choices"
	default:
		return "unrecognized"
	}
}

// Payload is a parsed conversation body. The concrete type is one of
// *MessagesPayload, *ChoicesPayload or *UnrecognizedPayload.
type Payload interface {
	Shape() Shape
	// Messages returns the messages to mask, in document order.
	Messages() []*Message
	// Marshal encodes the payload, including any rewritten content.
	Marshal() ([]byte, error)
}

// Message is one {role, content} object. Fields other than content are kept
// verbatim, in their original order.
type Message struct {
	raw    json.RawMessage
	fields map[string]json.RawMessage
	dirty  bool
}

// encode returns the message object with the rewritten content spliced into
// the original bytes.
func (m *Message) encode() (json.RawMessage, error) {
	if !m.dirty {
		return m.raw, nil
	}
	return setMember(m.raw, "content", m.fields["content"])
}

// Role returns the message role, or "" when absent or not a string.
func (m *Message) Role() string {
	var role string
	if raw, ok := m.fields["role"]; ok {
		_ = json.Unmarshal(raw, &role)
	}
	return role
}

// Content returns the content when it is a plain string.
func (m *Message) Content() (string, bool) {
	raw, ok := m.fields["content"]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// RewriteText applies fn to the message text: the content string itself,
// or the "text" field of every part when content is a multi-modal array.
// Content of any other type is left untouched. Fields are only re-encoded
// when fn actually changes them.
func (m *Message) RewriteText(fn func(string) (string, error)) error {
	raw, ok := m.fields["content"]
	if !ok {
		return nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		out, err := fn(s)
		if err != nil {
			return err
		}
		if out != s {
			b, err := marshalJSON(out)
			if err != nil {
				return err
			}
			m.fields["content"] = b
			m.dirty = true
		}
		return nil
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil
	}
	changed := false
	for j, partRaw := range parts {
		var part map[string]json.RawMessage
		if err := json.Unmarshal(partRaw, &part); err != nil {
			continue
		}
		textRaw, ok := part["text"]
		if !ok {
			continue
		}
		var text string
		if err := json.Unmarshal(textRaw, &text); err != nil {
			continue
		}
		out, err := fn(text)
		if err != nil {
			return err
		}
		if out != text {
			b, err := marshalJSON(out)
			if err != nil {
				return err
			}
			if parts[j], err = setMember(partRaw, "text", b); err != nil {
				return err
			}
			changed = true
		}
	}
	if changed {
		m.fields["content"] = joinArray(parts)
		m.dirty = true
	}
	return nil
}

// MessagesPayload is the {"messages":[...]} variant.
type MessagesPayload struct {
	raw      []byte
	messages []*Message
}

func (p *MessagesPayload) Shape() Shape         { return ShapeMessages }
func (p *MessagesPayload) Messages() []*Message { return p.messages }

func (p *MessagesPayload) Marshal() ([]byte, error) {
	if !anyDirty(p.messages) {
		return p.raw, nil
	}
	list := make([]json.RawMessage, len(p.messages))
	for i, m := range p.messages {
		b, err := m.encode()
		if err != nil {
			return nil, err
		}
		list[i] = b
	}
	return setMember(p.raw, "messages", joinArray(list))
}

// ChoicesPayload is the {"choices":[{"message":{...}}, ...]} variant. Only
// the first choice is considered.
type ChoicesPayload struct {
	raw     []byte
	choices []json.RawMessage
	message *Message
}

func (p *ChoicesPayload) Shape() Shape         { return ShapeChoices }
func (p *ChoicesPayload) Messages() []*Message { return []*Message{p.message} }

func (p *ChoicesPayload) Marshal() ([]byte, error) {
	if !p.message.dirty {
		return p.raw, nil
	}
	msg, err := p.message.encode()
	if err != nil {
		return nil, err
	}
	first, err := setMember(p.choices[0], "message", msg)
	if err != nil {
		return nil, err
	}
	choices := append([]json.RawMessage{first}, p.choices[1:]...)
	return setMember(p.raw, "choices", joinArray(choices))
}

// UnrecognizedPayload is any valid JSON document that has neither usable
// shape. It is returned exactly as received.
type UnrecognizedPayload struct {
	raw []byte
}

func (p *UnrecognizedPayload) Shape() Shape             { return ShapeUnrecognized }
func (p *UnrecognizedPayload) Messages() []*Message     { return nil }
func (p *UnrecognizedPayload) Marshal() ([]byte, error) { return p.raw, nil }

// ParsePayload classifies body. The only error is invalid JSON; every
// well-formed document maps to one of the three variants.
//
// "messages" wins when it is truthy. Otherwise choices[0].message is used.
// If the selected list is empty or any element is not a non-empty object,
// the body is unrecognized.
func ParsePayload(body []byte) (Payload, error) {
	if !json.Valid(body) {
		return nil, fmt.Errorf("request body is not valid JSON")
	}
	unrecognized := &UnrecognizedPayload{raw: body}

	var root map[string]json.RawMessage
	if err := json.Unmarshal(body, &root); err != nil || root == nil {
		return unrecognized, nil
	}

	if raw, ok := root["messages"]; ok && truthy(raw) {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return unrecognized, nil
		}
		msgs := make([]*Message, 0, len(items))
		for _, item := range items {
			fields, ok := messageObject(item)
			if !ok {
				return unrecognized, nil
			}
			msgs = append(msgs, &Message{raw: item, fields: fields})
		}
		return &MessagesPayload{raw: body, messages: msgs}, nil
	}

	raw, ok := root["choices"]
	if !ok {
		return unrecognized, nil
	}
	var choices []json.RawMessage
	if err := json.Unmarshal(raw, &choices); err != nil || len(choices) == 0 {
		return unrecognized, nil
	}
	var choice map[string]json.RawMessage
	if err := json.Unmarshal(choices[0], &choice); err != nil || choice == nil {
		return unrecognized, nil
	}
	msgRaw, ok := choice["message"]
	if !ok {
		return unrecognized, nil
	}
	fields, ok := messageObject(msgRaw)
	if !ok {
		return unrecognized, nil
	}
	return &ChoicesPayload{
		raw:     body,
		choices: choices,
		message: &Message{raw: msgRaw, fields: fields},
	}, nil
}

// messageObject decodes raw as a non-empty JSON object.
func messageObject(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || len(fields) == 0 {
		return nil, false
	}
	return fields, true
}

// truthy mirrors the loose emptiness test the shape detection relies on:
// null, false, 0, "", [] and {} are all falsy.
func truthy(raw json.RawMessage) bool {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

func anyDirty(msgs []*Message) bool {
	for _, m := range msgs {
		if m.dirty {
			return true
		}
	}
	return false
}

// marshalJSON encodes v without HTML escaping so that "<PERSON>" stays
// readable in responses.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// setMember replaces the value of key in the JSON object obj, keeping every
// other byte (member order, spacing) as it was. With duplicate keys the last
// one is replaced, matching what json.Unmarshal reads.
func setMember(obj []byte, key string, val []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(obj))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, fmt.Errorf("expected a JSON object")
	}
	start, end := -1, -1
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		from := int(dec.InputOffset())
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
		if name, _ := tok.(string); name == key {
			to := int(dec.InputOffset())
			for from < to && (obj[from] == ':' || isJSONSpace(obj[from])) {
				from++
			}
			start, end = from, to
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("member %q not found", key)
	}
	out := make([]byte, 0, len(obj)-(end-start)+len(val))
	out = append(out, obj[:start]...)
	out = append(out, val...)
	return append(out, obj[end:]...), nil
}

func isJSONSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// joinArray encodes already-encoded elements as a JSON array.
func joinArray(items []json.RawMessage) json.RawMessage {
	out := []byte{'['}
	for i, it := range items {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, it...)
	}
	return append(out, ']')
}
