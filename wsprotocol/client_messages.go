package wsprotocol

import (
	"encoding/json"
	"fmt"
)

// Client message op strings.
const (
	OpSubscribe                    = "subscribe"
	OpUnsubscribe                  = "unsubscribe"
	OpAdvertise                    = "advertise"
	OpUnadvertise                  = "unadvertise"
	OpGetParameters                = "getParameters"
	OpSetParameters                = "setParameters"
	OpSubscribeParameterUpdates    = "subscribeParameterUpdates"
	OpUnsubscribeParameterUpdates  = "unsubscribeParameterUpdates"
	OpSubscribeConnectionGraph     = "subscribeConnectionGraph"
	OpUnsubscribeConnectionGraph   = "unsubscribeConnectionGraph"
	OpFetchAsset                   = "fetchAsset"
)

type Subscription struct {
	ID        uint32 `json:"id"`
	ChannelID uint64 `json:"channelId"`
}

type SubscribeMessage struct {
	Subscriptions []Subscription `json:"subscriptions"`
}

type UnsubscribeMessage struct {
	SubscriptionIDs []uint32 `json:"subscriptionIds"`
}

type ClientChannel struct {
	ID             uint32  `json:"id"`
	Topic          string  `json:"topic"`
	Encoding       string  `json:"encoding"`
	SchemaName     string  `json:"schemaName"`
	SchemaEncoding *string `json:"schemaEncoding,omitempty"`
	Schema         *string `json:"schema,omitempty"`
}

type ClientAdvertiseMessage struct {
	Channels []ClientChannel `json:"channels"`
}

type ClientUnadvertiseMessage struct {
	ChannelIDs []uint32 `json:"channelIds"`
}

type GetParametersMessage struct {
	ParameterNames []string `json:"parameterNames"`
	ID             *string  `json:"id,omitempty"`
}

type SetParametersMessage struct {
	Parameters []Parameter `json:"parameters"`
	ID         *string     `json:"id,omitempty"`
}

type ParameterNamesMessage struct {
	ParameterNames []string `json:"parameterNames"`
}

type FetchAssetMessage struct {
	URI       string `json:"uri"`
	RequestID uint32 `json:"requestId"`
}

// ClientMessage is the decoded form of any client -> server JSON control
// message. Exactly one of the pointer fields is populated, selected by
// Kind; SubscribeConnectionGraph/UnsubscribeConnectionGraph carry no
// payload at all.
type ClientMessage struct {
	Kind string

	Subscribe                  *SubscribeMessage
	Unsubscribe                *UnsubscribeMessage
	Advertise                  *ClientAdvertiseMessage
	Unadvertise                *ClientUnadvertiseMessage
	GetParameters               *GetParametersMessage
	SetParameters               *SetParametersMessage
	SubscribeParameterUpdates   *ParameterNamesMessage
	UnsubscribeParameterUpdates *ParameterNamesMessage
	FetchAsset                  *FetchAssetMessage
}

type clientEnvelope struct {
	Op string `json:"op"`
}

// ParseClientJSON decodes a client -> server JSON text frame, dispatching
// on its "op" field.
func ParseClientJSON(data []byte) (*ClientMessage, error) {
	var env clientEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("wsprotocol: decode envelope: %w", err)
	}

	msg := &ClientMessage{Kind: env.Op}
	switch env.Op {
	case OpSubscribe:
		var m SubscribeMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		msg.Subscribe = &m
	case OpUnsubscribe:
		var m UnsubscribeMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		msg.Unsubscribe = &m
	case OpAdvertise:
		var m ClientAdvertiseMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		msg.Advertise = &m
	case OpUnadvertise:
		var m ClientUnadvertiseMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		msg.Unadvertise = &m
	case OpGetParameters:
		var m GetParametersMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		msg.GetParameters = &m
	case OpSetParameters:
		var m SetParametersMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		msg.SetParameters = &m
	case OpSubscribeParameterUpdates:
		var m ParameterNamesMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		msg.SubscribeParameterUpdates = &m
	case OpUnsubscribeParameterUpdates:
		var m ParameterNamesMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		msg.UnsubscribeParameterUpdates = &m
	case OpSubscribeConnectionGraph, OpUnsubscribeConnectionGraph:
		// No payload beyond the op field.
	case OpFetchAsset:
		var m FetchAssetMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		msg.FetchAsset = &m
	default:
		return nil, fmt.Errorf("wsprotocol: unknown client op %q", env.Op)
	}
	return msg, nil
}
