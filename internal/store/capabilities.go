package store

import "fmt"

const (
	// SchemaVersionBase is the schema without optional segment columns.
	SchemaVersionBase = 1
	// SchemaVersionSegmentGroups adds segments.segment_group.
	SchemaVersionSegmentGroups = 2
	// LatestSchemaVersion is the newest schema the backends know how to create.
	LatestSchemaVersion = SchemaVersionSegmentGroups
)

// Capabilities describes optional schema features available to the stages.
// It is declared by configuration at startup rather than inferred from rows.
type Capabilities struct {
	SchemaVersion int
	SegmentGroups bool
}

// CapabilitiesFor returns the descriptor for a schema version.
func CapabilitiesFor(version int) (Capabilities, error) {
	if version < SchemaVersionBase || version > LatestSchemaVersion {
		return Capabilities{}, fmt.Errorf("unsupported schema version %d (want %d-%d)", version, SchemaVersionBase, LatestSchemaVersion)
	}
	return Capabilities{
		SchemaVersion: version,
		SegmentGroups: version >= SchemaVersionSegmentGroups,
	}, nil
}
