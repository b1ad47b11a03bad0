package wsprotocol

import (
	"encoding/binary"
	"fmt"
)

// EncodeMessageData builds a server -> client binary frame carrying a
// published message: 1-byte opcode, 4-byte little-endian subscription id,
// 8-byte little-endian receive timestamp, then the raw payload.
func EncodeMessageData(subscriptionID uint32, receiveTime uint64, payload []byte) []byte {
	buf := make([]byte, 1+4+8+len(payload))
	buf[0] = OpcodeMessageData
	binary.LittleEndian.PutUint32(buf[1:5], subscriptionID)
	binary.LittleEndian.PutUint64(buf[5:13], receiveTime)
	copy(buf[13:], payload)
	return buf
}

// EncodeTimeData builds a server -> client binary frame broadcasting the
// server's current time: 1-byte opcode, 8-byte little-endian nanosecond
// timestamp.
func EncodeTimeData(nanos uint64) []byte {
	buf := make([]byte, 1+8)
	buf[0] = OpcodeTimeData
	binary.LittleEndian.PutUint64(buf[1:9], nanos)
	return buf
}

// EncodeServiceCallResponse builds a server -> client binary frame carrying
// the result of a service call: opcode, 4-byte service id, 4-byte call id,
// 4-byte encoding length, the encoding string, then the payload.
func EncodeServiceCallResponse(serviceID, callID uint32, encoding string, payload []byte) []byte {
	buf := make([]byte, 1+4+4+4+len(encoding)+len(payload))
	buf[0] = OpcodeServiceCallResponse
	binary.LittleEndian.PutUint32(buf[1:5], serviceID)
	binary.LittleEndian.PutUint32(buf[5:9], callID)
	binary.LittleEndian.PutUint32(buf[9:13], uint32(len(encoding)))
	copy(buf[13:13+len(encoding)], encoding)
	copy(buf[13+len(encoding):], payload)
	return buf
}

// EncodeFetchAssetResponse builds a server -> client binary frame answering
// a fetchAsset request: opcode, 4-byte request id, 1-byte status
// (AssetStatusSuccess/AssetStatusError), 4-byte error-message length, the
// error message, then the asset data (empty on error).
func EncodeFetchAssetResponse(requestID uint32, success bool, errMsg string, data []byte) []byte {
	status := AssetStatusSuccess
	if !success {
		status = AssetStatusError
		data = nil
	}
	buf := make([]byte, 1+4+1+4+len(errMsg)+len(data))
	buf[0] = OpcodeFetchAssetResponse
	binary.LittleEndian.PutUint32(buf[1:5], requestID)
	buf[5] = status
	binary.LittleEndian.PutUint32(buf[6:10], uint32(len(errMsg)))
	copy(buf[10:10+len(errMsg)], errMsg)
	copy(buf[10+len(errMsg):], data)
	return buf
}

// DecodeClientMessageData parses the body of a client -> server MessageData
// frame (opcode already stripped): 4-byte little-endian client channel id,
// then the raw payload.
func DecodeClientMessageData(data []byte) (channelID uint32, payload []byte, err error) {
	if len(data) < 4 {
		return 0, nil, fmt.Errorf("wsprotocol: message data frame too short")
	}
	channelID = binary.LittleEndian.Uint32(data[:4])
	return channelID, data[4:], nil
}

// DecodeServiceCallRequest parses the body of a client -> server
// ServiceCallRequest frame (opcode already stripped): 4-byte service id,
// 4-byte call id, 4-byte encoding length, the encoding string, then the
// payload.
func DecodeServiceCallRequest(data []byte) (serviceID, callID uint32, encoding string, payload []byte, err error) {
	if len(data) < 12 {
		return 0, 0, "", nil, fmt.Errorf("wsprotocol: service call request frame too short")
	}
	serviceID = binary.LittleEndian.Uint32(data[0:4])
	callID = binary.LittleEndian.Uint32(data[4:8])
	encLen := binary.LittleEndian.Uint32(data[8:12])
	rest := data[12:]
	if uint32(len(rest)) < encLen {
		return 0, 0, "", nil, fmt.Errorf("wsprotocol: service call request frame too short")
	}
	encoding = string(rest[:encLen])
	payload = rest[encLen:]
	return serviceID, callID, encoding, payload, nil
}

// ClientBinaryMessage is the decoded form of any client -> server binary
// frame.
type ClientBinaryMessage struct {
	Opcode    byte
	ChannelID uint32 // set for ClientOpcodeMessageData
	ServiceID uint32 // set for ClientOpcodeServiceCallRequest
	CallID    uint32 // set for ClientOpcodeServiceCallRequest
	Encoding  string // set for ClientOpcodeServiceCallRequest
	Payload   []byte
}

// DecodeClientBinary dispatches on the leading opcode byte of a client ->
// server binary frame. It returns (nil, nil) for an empty frame, which the
// protocol treats as a no-op rather than an error.
func DecodeClientBinary(data []byte) (*ClientBinaryMessage, error) {
	if len(data) == 0 {
		return nil, nil
	}
	opcode := data[0]
	rest := data[1:]
	switch opcode {
	case ClientOpcodeMessageData:
		channelID, payload, err := DecodeClientMessageData(rest)
		if err != nil {
			return nil, err
		}
		return &ClientBinaryMessage{Opcode: opcode, ChannelID: channelID, Payload: payload}, nil
	case ClientOpcodeServiceCallRequest:
		serviceID, callID, encoding, payload, err := DecodeServiceCallRequest(rest)
		if err != nil {
			return nil, err
		}
		return &ClientBinaryMessage{Opcode: opcode, ServiceID: serviceID, CallID: callID, Encoding: encoding, Payload: payload}, nil
	default:
		return nil, fmt.Errorf("wsprotocol: unknown client binary opcode %d", opcode)
	}
}
