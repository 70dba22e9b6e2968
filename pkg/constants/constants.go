// Package constants provides shared constants used throughout the crosswalk codebase.
// This includes default column names, limits, and file permissions that must
// stay consistent between the engine, the file layer, and the CLI.
package constants

import "time"

// Column name constants define the columns the engine adds or reads by default
const (
	// DefaultUIDColumn is the Entity ID column of the canonical reference table
	DefaultUIDColumn = "uid"

	// DefaultConflictIDColumn is the provisional ID column written by the conflict resolver
	DefaultConflictIDColumn = "conflict_id"

	// MatchedOnColumn records which column tuple produced a merged pair
	MatchedOnColumn = "matched_on"

	// DefaultMergeableColumn is the sentinel column marking a batch row as linkable
	DefaultMergeableColumn = "mergeable"

	// AlwaysNullSuffix is appended to a column name for its per-identity null flag
	AlwaysNullSuffix = "_always_null"

	// TupleSeparator joins tuple columns into a provenance label
	TupleSeparator = "-"
)

// Limit constants define various limits and capacities
const (
	// DefaultMaxTuples caps the generated column tuples of one criterion
	DefaultMaxTuples = 256

	// TupleCacheTTL is how long generated tuple lists stay memoized
	TupleCacheTTL = 30 * time.Minute

	// TupleCacheCleanup is the purge interval of the tuple cache
	TupleCacheCleanup = time.Hour

	// MaxPromptRows limits how many rows the manual prompt renders per group
	MaxPromptRows = 50

	// MaxReportIDs limits how many offending IDs an invariant report lists
	MaxReportIDs = 10
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// File name constants
const (
	// ConfigFileName is the application config file looked up in home and cwd
	ConfigFileName = ".crosswalk"

	// LockSuffix names the single-writer lock next to a canonical table
	LockSuffix = ".lock"

	// ReportSuffix names the markdown merge report next to a crosswalk
	ReportSuffix = ".report.md"
)

// Policy names accepted by the conflict resolver
const (
	PolicyDistinct = "distinct"
	PolicySame     = "same"
	PolicyManual   = "manual"
)
