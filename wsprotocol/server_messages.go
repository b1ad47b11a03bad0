package wsprotocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// StatusLevel is the severity of a Status message.
type StatusLevel uint8

const (
	StatusLevelInfo    StatusLevel = 0
	StatusLevelWarning StatusLevel = 1
	StatusLevelError   StatusLevel = 2
)

// ServerInfo is the first message sent to every connecting client.
type ServerInfo struct {
	Op                 string       `json:"op"`
	Name               string       `json:"name"`
	Capabilities       []Capability `json:"capabilities"`
	SupportedEncodings []string     `json:"supportedEncodings"`
	Metadata           struct{}     `json:"metadata"`
	SessionID          string       `json:"sessionId"`
}

// EncodeServerInfo builds the serverInfo message sent immediately after a
// client connects.
func EncodeServerInfo(sessionID, name string, capabilities []Capability, supportedEncodings []string) ([]byte, error) {
	if capabilities == nil {
		capabilities = []Capability{}
	}
	if supportedEncodings == nil {
		supportedEncodings = []string{}
	}
	return json.Marshal(ServerInfo{
		Op:                 "serverInfo",
		Name:               name,
		Capabilities:       capabilities,
		SupportedEncodings: supportedEncodings,
		SessionID:          sessionID,
	})
}

// Status is an informational or error message the server pushes to a
// client outside the request/response flow.
type Status struct {
	Op      string      `json:"op"`
	Level   StatusLevel `json:"level"`
	Message string      `json:"message"`
	ID      *string     `json:"id,omitempty"`
}

// EncodeStatus builds a status message. If id is non-empty, the client can
// use it later to replace or remove this status via RemoveStatus.
func EncodeStatus(level StatusLevel, message string, id string) ([]byte, error) {
	s := Status{Op: "status", Level: level, Message: message}
	if id != "" {
		s.ID = &id
	}
	return json.Marshal(s)
}

// RemoveStatus asks the client to drop previously sent statuses by id.
type RemoveStatus struct {
	Op        string   `json:"op"`
	StatusIDs []string `json:"statusIds"`
}

func EncodeRemoveStatus(statusIDs []string) ([]byte, error) {
	return json.Marshal(RemoveStatus{Op: "removeStatus", StatusIDs: statusIDs})
}

// ChannelAdvertisement describes one channel within an Advertise message.
type ChannelAdvertisement struct {
	ID             uint64  `json:"id"`
	Topic          string  `json:"topic"`
	Encoding       string  `json:"encoding"`
	SchemaName     string  `json:"schemaName"`
	Schema         string  `json:"schema"`
	SchemaEncoding *string `json:"schemaEncoding,omitempty"`
}

type Advertise struct {
	Op       string                 `json:"op"`
	Channels []ChannelAdvertisement `json:"channels"`
}

// EncodeAdvertise builds an advertise message for a single channel. Per the
// protocol, the channel must have a schema; protobuf schemas are
// base64-encoded on the wire, everything else is sent as raw UTF-8.
func EncodeAdvertise(channelID uint64, topic, messageEncoding, schemaName, schemaEncoding string, schemaData []byte) ([]byte, error) {
	var schemaStr string
	if schemaEncoding == "protobuf" {
		schemaStr = base64.StdEncoding.EncodeToString(schemaData)
	} else {
		if !utf8.Valid(schemaData) {
			return nil, fmt.Errorf("wsprotocol: schema for topic %q is not valid utf-8", topic)
		}
		schemaStr = string(schemaData)
	}
	enc := schemaEncoding
	return json.Marshal(Advertise{
		Op: "advertise",
		Channels: []ChannelAdvertisement{{
			ID:             channelID,
			Topic:          topic,
			Encoding:       messageEncoding,
			SchemaName:     schemaName,
			Schema:         schemaStr,
			SchemaEncoding: &enc,
		}},
	})
}

type unadvertise struct {
	Op       string   `json:"op"`
	Channels []uint64 `json:"channels"`
}

func EncodeUnadvertise(channelID uint64) ([]byte, error) {
	return json.Marshal(unadvertise{Op: "unadvertise", Channels: []uint64{channelID}})
}

// ParameterType annotates the wire representation of a Parameter's value.
type ParameterType string

const (
	ParameterTypeByteArray    ParameterType = "byte_array"
	ParameterTypeFloat64      ParameterType = "float64"
	ParameterTypeFloat64Array ParameterType = "float64_array"
)

// Parameter carries a name, an optional type hint, and a value whose shape
// depends on Type: a plain JSON number/bool/array/object, or (for
// ParameterTypeByteArray) a base64-encoded string.
type Parameter struct {
	Name  string        `json:"name"`
	Type  ParameterType `json:"type,omitempty"`
	Value any           `json:"value,omitempty"`
}

type parameterValues struct {
	Op         string      `json:"op"`
	ID         *string     `json:"id,omitempty"`
	Parameters []Parameter `json:"parameters"`
}

// EncodeParameterValues builds a parameterValues message, optionally tagged
// with the request id that triggered it.
func EncodeParameterValues(parameters []Parameter, id string) ([]byte, error) {
	if parameters == nil {
		parameters = []Parameter{}
	}
	msg := parameterValues{Op: "parameterValues", Parameters: parameters}
	if id != "" {
		msg.ID = &id
	}
	return json.Marshal(msg)
}

// rawByteArray marshals as a JSON array of byte values, matching how the
// reference implementation serializes a raw schema byte slice (as opposed
// to ChannelAdvertisement.Schema, which is a UTF-8 or base64 string).
type rawByteArray []byte

func (b rawByteArray) MarshalJSON() ([]byte, error) {
	ints := make([]int, len(b))
	for i, v := range b {
		ints[i] = int(v)
	}
	return json.Marshal(ints)
}

// ServiceMessageSchema describes the request or response shape of a
// service.
type ServiceMessageSchema struct {
	Encoding       string       `json:"encoding"`
	SchemaName     string       `json:"schemaName"`
	SchemaEncoding string       `json:"schemaEncoding"`
	Schema         rawByteArray `json:"schema"`
}

// ServiceAdvertisement describes one service within an AdvertiseServices
// message. When a request or response schema is absent, the corresponding
// RequestSchema/ResponseSchema field is sent as an empty string, matching
// the sentinel the reference client expects.
type ServiceAdvertisement struct {
	ID             uint32                `json:"id"`
	Name           string                `json:"name"`
	Type           string                `json:"type"`
	Request        *ServiceMessageSchema `json:"request,omitempty"`
	RequestSchema  *string               `json:"requestSchema,omitempty"`
	Response       *ServiceMessageSchema `json:"response,omitempty"`
	ResponseSchema *string               `json:"responseSchema,omitempty"`
}

var emptySchemaSentinel = ""

// NewServiceAdvertisement fills in the empty-string sentinels for an absent
// request or response schema.
func NewServiceAdvertisement(id uint32, name, serviceType string, request, response *ServiceMessageSchema) *ServiceAdvertisement {
	sa := &ServiceAdvertisement{ID: id, Name: name, Type: serviceType}
	if request != nil {
		sa.Request = request
	} else {
		sa.RequestSchema = &emptySchemaSentinel
	}
	if response != nil {
		sa.Response = response
	} else {
		sa.ResponseSchema = &emptySchemaSentinel
	}
	return sa
}

type advertiseServices struct {
	Op       string                  `json:"op"`
	Services []*ServiceAdvertisement `json:"services"`
}

func EncodeAdvertiseServices(services []*ServiceAdvertisement) ([]byte, error) {
	if services == nil {
		services = []*ServiceAdvertisement{}
	}
	return json.Marshal(advertiseServices{Op: "advertiseServices", Services: services})
}

type unadvertiseServices struct {
	Op         string   `json:"op"`
	ServiceIDs []uint32 `json:"serviceIds"`
}

func EncodeUnadvertiseServices(ids []uint32) ([]byte, error) {
	if ids == nil {
		ids = []uint32{}
	}
	return json.Marshal(unadvertiseServices{Op: "unadvertiseServices", ServiceIDs: ids})
}

type serviceCallFailure struct {
	Op        string `json:"op"`
	ServiceID uint32 `json:"serviceId"`
	CallID    uint32 `json:"callId"`
	Message   string `json:"message"`
}

func EncodeServiceCallFailure(serviceID, callID uint32, message string) ([]byte, error) {
	return json.Marshal(serviceCallFailure{Op: "serviceCallFailure", ServiceID: serviceID, CallID: callID, Message: message})
}
