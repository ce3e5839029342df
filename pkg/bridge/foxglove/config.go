package foxglove

// DefaultSchema describes the sample channel payload.
const DefaultSchema = `{
  "type": "object",
  "properties": {
    "ts": { "type": "string" },
    "elapsed_ms": { "type": "number" },
    "kind": { "type": "string" },
    "data": { "type": "object", "additionalProperties": true }
  },
  "required": ["ts", "kind", "data"]
}`

// DefaultMarkerSchema is a visualization_msgs/Marker-shaped object used
// to render the headset pose as a cube in Foxglove's 3D panel.
const DefaultMarkerSchema = `{
  "type": "object",
  "properties": {
    "header": { "type": "object", "additionalProperties": true },
    "ns": { "type": "string" },
    "id": { "type": "integer" },
    "type": { "type": "integer" },
    "action": { "type": "integer" },
    "pose": { "type": "object", "additionalProperties": true },
    "scale": { "type": "object", "additionalProperties": true },
    "color": { "type": "object", "additionalProperties": true }
  },
  "required": ["header", "pose"]
}`

// DefaultTransformSchema matches foxglove.FrameTransforms.
const DefaultTransformSchema = `{
  "type": "object",
  "properties": {
    "transforms": { "type": "array", "items": { "type": "object", "additionalProperties": true } }
  },
  "required": ["transforms"]
}`

type Config struct {
	WSAddr string
	Name   string

	Topic          string
	ChannelID      uint64
	SchemaName     string
	SchemaEncoding string
	Schema         string
	Encoding       string

	MarkerTopic          string
	MarkerChannelID      uint64
	MarkerSchemaName     string
	MarkerSchemaEncoding string
	MarkerSchema         string
	MarkerEncoding       string

	TransformTopic          string
	TransformChannelID      uint64
	TransformSchemaName     string
	TransformSchemaEncoding string
	TransformSchema         string
	TransformEncoding       string

	ParentFrameID string
	FrameID       string
	SendBuf       int
}

func DefaultConfig() Config {
	return Config{
		WSAddr: "127.0.0.1:8765",
		Name:   "imulink",

		Topic:          "imulink/sample",
		ChannelID:      1,
		SchemaName:     "imulink.Sample",
		SchemaEncoding: "jsonschema",
		Schema:         DefaultSchema,
		Encoding:       "json",

		MarkerTopic:          "/visualization_marker",
		MarkerChannelID:      2,
		MarkerSchemaName:     "visualization_msgs/Marker",
		MarkerSchemaEncoding: "jsonschema",
		MarkerSchema:         DefaultMarkerSchema,
		MarkerEncoding:       "json",

		TransformTopic:          "/tf",
		TransformChannelID:      3,
		TransformSchemaName:     "foxglove.FrameTransforms",
		TransformSchemaEncoding: "jsonschema",
		TransformSchema:         DefaultTransformSchema,
		TransformEncoding:       "json",

		ParentFrameID: "world",
		FrameID:       "imu_link",
		SendBuf:       256,
	}
}
