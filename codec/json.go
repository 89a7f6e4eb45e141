package codec

import "encoding/json"

// JSON is the standard-library JSON codec: the most portable option, and
// the one to pick when snapshots must be readable by non-Go tooling.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }

// Default is the codec used for newly written snapshots. Existing
// snapshots are self-describing and decode with whatever codec their
// header names.
var Default Codec = GoJSON{}
