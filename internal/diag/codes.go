package diag

// Code identifies a diagnostic condition. Codes are string based so they stay
// readable in logs and in serialized results.
type Code string

const (
	// Resolution errors.

	// CodeUnresolvedDelayedField indicates a delayed field could not be evaluated.
	CodeUnresolvedDelayedField Code = "RESOLVE_DELAYED_FIELD"
	// CodeUnknownBindVariable indicates a bind variable is missing from the cache.
	CodeUnknownBindVariable Code = "RESOLVE_UNKNOWN_VARIABLE"
	// CodeUnresolvedAction indicates an action sequence reference cannot be resolved.
	CodeUnresolvedAction Code = "RESOLVE_ACTION"
	// CodeActionCollision warns that a relative action landed on a taken sequence.
	CodeActionCollision Code = "RESOLVE_ACTION_COLLISION"

	// Identity errors and warnings.

	// CodeDuplicateComponentGuid indicates unconditioned components share a GUID.
	CodeDuplicateComponentGuid Code = "IDENTITY_DUPLICATE_GUID"
	// CodeDuplicateConditionedGuid warns that conditioned components share a GUID.
	CodeDuplicateConditionedGuid Code = "IDENTITY_DUPLICATE_CONDITIONED_GUID"
	// CodeCannotGenerateGuid indicates a component's GUID cannot be generated.
	CodeCannotGenerateGuid Code = "IDENTITY_CANNOT_GENERATE"

	// Extraction errors.

	// CodeMissingFile indicates a payload file does not exist.
	CodeMissingFile Code = "EXTRACT_MISSING_FILE"
	// CodeCorruptContainer indicates a library or sub-package container is unreadable.
	CodeCorruptContainer Code = "EXTRACT_CORRUPT_CONTAINER"

	// Partition errors.

	// CodeMissingMedia indicates a file references a media that does not exist.
	CodeMissingMedia Code = "PARTITION_MISSING_MEDIA"
	// CodeMediaWithoutCabinet indicates compressed files are assigned to a media without a cabinet.
	CodeMediaWithoutCabinet Code = "PARTITION_NO_CABINET"
	// CodeInvalidMediaTemplate indicates the media template is malformed.
	CodeInvalidMediaTemplate Code = "PARTITION_INVALID_TEMPLATE"

	// Archive errors.

	// CodeCabinetFailed indicates the archive codec failed for a media group.
	CodeCabinetFailed Code = "ARCHIVE_FAILED"
	// CodeCabinetCache indicates the cabinet cache could not be read or written.
	CodeCabinetCache Code = "ARCHIVE_CACHE"
	// CodeDeltaPatch indicates a delta patch could not be produced.
	CodeDeltaPatch Code = "ARCHIVE_DELTA_PATCH"

	// Projection errors.

	// CodeNoTranslator indicates no table or extension can project a record type.
	CodeNoTranslator Code = "PROJECT_NO_TRANSLATOR"
	// CodeInvalidColumnValue indicates a record field does not fit its column.
	CodeInvalidColumnValue Code = "PROJECT_INVALID_VALUE"

	// Merge errors.

	// CodeInstallerVersion indicates a sub-package requires a newer installer engine.
	CodeInstallerVersion Code = "MERGE_INSTALLER_VERSION"
	// CodeMergeConflict indicates two rows share a primary key with different content.
	CodeMergeConflict Code = "MERGE_CONFLICT"
	// CodeMergeDuplicate warns that two rows share a primary key with identical content.
	CodeMergeDuplicate Code = "MERGE_DUPLICATE_ROW"

	// Infrastructure.

	// CodeIO indicates a filesystem operation failed.
	CodeIO Code = "IO_ERROR"
	// CodeDatabase indicates the package-database writer failed.
	CodeDatabase Code = "DATABASE_ERROR"
	// CodeInvalidInput indicates the intermediate model is malformed.
	CodeInvalidInput Code = "INVALID_INPUT"

	// CodeVerbose tags informational progress messages.
	CodeVerbose Code = "VERBOSE"
)
