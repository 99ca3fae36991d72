package ir

// Version constants for the record schema and engine.
const (
	// SchemaVersion is the constraint record schema version.
	SchemaVersion = "1"

	// EngineVersion is the foodcsp engine version.
	EngineVersion = "0.1.0"
)
