package logcontext

// Schema describes the shape of the messages logged on a channel.
//
// Encoding identifies the schema language (e.g. "jsonschema", "protobuf",
// "flatbuffer", "ros2msg"); Data holds the raw schema bytes in that
// encoding. A channel may be created without a Schema. The container-file
// sink records such a channel with schema id 0; the WebSocket server
// refuses to advertise it to clients.
type Schema struct {
	Name     string
	Encoding string
	Data     []byte
}

// Equal reports whether two schemas describe the same thing. Two nil
// schemas are considered equal.
func (s *Schema) Equal(other *Schema) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.Name != other.Name || s.Encoding != other.Encoding {
		return false
	}
	if len(s.Data) != len(other.Data) {
		return false
	}
	for i := range s.Data {
		if s.Data[i] != other.Data[i] {
			return false
		}
	}
	return true
}
