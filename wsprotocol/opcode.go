package wsprotocol

// Binary opcodes sent server -> client.
const (
	OpcodeMessageData          byte = 1
	OpcodeTimeData             byte = 2
	OpcodeServiceCallResponse  byte = 3
	OpcodeFetchAssetResponse   byte = 4
)

// Binary opcodes sent client -> server. Note that opcode 1 is shared with
// the server -> client MessageData frame, but opcode 2 means something
// different in each direction: the server never sends opcode 2 to mean a
// service call, and a client never sends opcode 2 to mean a time update.
const (
	ClientOpcodeMessageData        byte = 1
	ClientOpcodeServiceCallRequest byte = 2
)

// Asset fetch status codes carried in a FetchAssetResponse frame.
const (
	AssetStatusSuccess byte = 0
	AssetStatusError   byte = 1
)
