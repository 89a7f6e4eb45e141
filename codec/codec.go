// Package codec centralizes snapshot document encoding.
//
// Codec selection is a breaking-change boundary: bytes persisted by one
// codec may not decode under another. Snapshot headers therefore record
// the codec name, and readers select the codec by name.
package codec

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}
