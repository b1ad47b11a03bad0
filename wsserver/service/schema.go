package service

import "github.com/odin-telemetry/telemetry-sdk/logcontext"

// MessageSchema pairs a content encoding (how a request or response is
// serialized on the wire, e.g. "json", "ros1") with the schema describing
// its shape.
type MessageSchema struct {
	Encoding string
	Schema   logcontext.Schema
}

// Schema describes a service's call type and, optionally, the shape of its
// request and response messages. An absent request or response schema is
// advertised to clients as an empty-string sentinel; request and response
// payloads are not checked against either schema.
type Schema struct {
	Name     string
	request  *MessageSchema
	response *MessageSchema
}

// NewSchema creates a service schema named typeName (e.g.
// "std_srvs/SetBool").
func NewSchema(typeName string) Schema {
	return Schema{Name: typeName}
}

// WithRequest attaches a request schema, returning the updated value.
func (s Schema) WithRequest(encoding string, schema logcontext.Schema) Schema {
	s.request = &MessageSchema{Encoding: encoding, Schema: schema}
	return s
}

// WithResponse attaches a response schema, returning the updated value.
func (s Schema) WithResponse(encoding string, schema logcontext.Schema) Schema {
	s.response = &MessageSchema{Encoding: encoding, Schema: schema}
	return s
}

func (s Schema) Request() *MessageSchema  { return s.request }
func (s Schema) Response() *MessageSchema { return s.response }
