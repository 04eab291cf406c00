// Package schema declares the go-jet table handles the repository layer
// queries against, hand-authored in jet's manual-table style. Column
// identity is bound to the table the same way jet's codegen output does
// it: by passing the column list into sqlite.NewTable.
package schema

import "github.com/go-jet/jet/v2/sqlite"

func newTable(name string, columns ...sqlite.Column) sqlite.Table {
	return sqlite.NewTable("", name, "", columns...)
}

// --- library ---

var (
	LibraryIDCol      = sqlite.IntegerColumn("id")
	LibraryNameCol    = sqlite.StringColumn("name")
	LibraryKindCol    = sqlite.StringColumn("kind")
	LibraryPathsCol   = sqlite.StringColumn("paths")
	LibraryIntervalCol = sqlite.IntegerColumn("scan_interval_minutes")
	LibraryEnabledCol = sqlite.BoolColumn("enabled")
	LibraryCreatedCol = sqlite.TimestampColumn("created_at")
	LibraryUpdatedCol = sqlite.TimestampColumn("updated_at")

	LibraryAllColumns = sqlite.ColumnList{LibraryIDCol, LibraryNameCol, LibraryKindCol, LibraryPathsCol, LibraryIntervalCol, LibraryEnabledCol, LibraryCreatedCol, LibraryUpdatedCol}
	LibraryTable      = newTable("library", LibraryIDCol, LibraryNameCol, LibraryKindCol, LibraryPathsCol, LibraryIntervalCol, LibraryEnabledCol, LibraryCreatedCol, LibraryUpdatedCol)
)

// --- media_file ---

var (
	MediaFileIDCol           = sqlite.IntegerColumn("id")
	MediaFileLibraryIDCol    = sqlite.IntegerColumn("library_id")
	MediaFilePathCol         = sqlite.StringColumn("path")
	MediaFileFilenameCol     = sqlite.StringColumn("filename")
	MediaFileSizeCol         = sqlite.IntegerColumn("size")
	MediaFileDiscoveredCol   = sqlite.TimestampColumn("discovered_at")
	MediaFileCreatedCol      = sqlite.TimestampColumn("created_at")
	MediaFileTechMetaCol     = sqlite.StringColumn("technical_metadata") // json
	MediaFileParsedInfoCol   = sqlite.StringColumn("parsed_info")        // json
	MediaFileDeviceIDCol     = sqlite.IntegerColumn("device_id")
	MediaFileInodeCol        = sqlite.IntegerColumn("inode")
	MediaFileModTimeCol      = sqlite.IntegerColumn("mod_time")
	MediaFileWeakHashCol     = sqlite.IntegerColumn("weak_hash")

	MediaFileAllColumns = sqlite.ColumnList{MediaFileIDCol, MediaFileLibraryIDCol, MediaFilePathCol, MediaFileFilenameCol, MediaFileSizeCol, MediaFileDiscoveredCol, MediaFileCreatedCol, MediaFileTechMetaCol, MediaFileParsedInfoCol, MediaFileDeviceIDCol, MediaFileInodeCol, MediaFileModTimeCol, MediaFileWeakHashCol}
	MediaFileTable      = newTable("media_file", MediaFileAllColumns...)
)

// --- movie_reference ---

var (
	MovieRefIDCol          = sqlite.IntegerColumn("id")
	MovieRefLibraryIDCol   = sqlite.IntegerColumn("library_id")
	MovieRefTMDBIDCol      = sqlite.IntegerColumn("tmdb_id")
	MovieRefTitleCol       = sqlite.StringColumn("title")
	MovieRefThemeColorCol  = sqlite.StringColumn("theme_color")
	MovieRefFileIDCol      = sqlite.IntegerColumn("file_id")
	MovieRefDetailsCol     = sqlite.StringColumn("details") // json
	MovieRefDetailStateCol = sqlite.StringColumn("detail_state")
	MovieRefCreatedCol     = sqlite.TimestampColumn("created_at")

	MovieReferenceAllColumns = sqlite.ColumnList{MovieRefIDCol, MovieRefLibraryIDCol, MovieRefTMDBIDCol, MovieRefTitleCol, MovieRefThemeColorCol, MovieRefFileIDCol, MovieRefDetailsCol, MovieRefDetailStateCol, MovieRefCreatedCol}
	MovieReferenceTable      = newTable("movie_reference", MovieReferenceAllColumns...)
)

// --- series_reference ---

var (
	SeriesRefIDCol           = sqlite.IntegerColumn("id")
	SeriesRefLibraryIDCol    = sqlite.IntegerColumn("library_id")
	SeriesRefTMDBIDCol       = sqlite.IntegerColumn("tmdb_id")
	SeriesRefTitleCol        = sqlite.StringColumn("title")
	SeriesRefThemeColorCol   = sqlite.StringColumn("theme_color")
	SeriesRefDetailsCol      = sqlite.StringColumn("details")
	SeriesRefDetailStateCol  = sqlite.StringColumn("detail_state")
	SeriesRefDiscoveredCol   = sqlite.TimestampColumn("discovered_at")
	SeriesRefCreatedCol      = sqlite.TimestampColumn("created_at")

	SeriesReferenceAllColumns = sqlite.ColumnList{SeriesRefIDCol, SeriesRefLibraryIDCol, SeriesRefTMDBIDCol, SeriesRefTitleCol, SeriesRefThemeColorCol, SeriesRefDetailsCol, SeriesRefDetailStateCol, SeriesRefDiscoveredCol, SeriesRefCreatedCol}
	SeriesReferenceTable      = newTable("series_reference", SeriesReferenceAllColumns...)
)

// --- season_reference ---

var (
	SeasonRefIDCol           = sqlite.IntegerColumn("id")
	SeasonRefLibraryIDCol    = sqlite.IntegerColumn("library_id")
	SeasonRefSeriesIDCol     = sqlite.IntegerColumn("series_id")
	SeasonRefNumberCol       = sqlite.IntegerColumn("season_number")
	SeasonRefTMDBSeriesIDCol = sqlite.IntegerColumn("tmdb_series_id")
	SeasonRefDetailsCol      = sqlite.StringColumn("details")
	SeasonRefDetailStateCol  = sqlite.StringColumn("detail_state")

	SeasonReferenceAllColumns = sqlite.ColumnList{SeasonRefIDCol, SeasonRefLibraryIDCol, SeasonRefSeriesIDCol, SeasonRefNumberCol, SeasonRefTMDBSeriesIDCol, SeasonRefDetailsCol, SeasonRefDetailStateCol}
	SeasonReferenceTable      = newTable("season_reference", SeasonReferenceAllColumns...)
)

// --- episode_reference ---

var (
	EpisodeRefIDCol           = sqlite.IntegerColumn("id")
	EpisodeRefLibraryIDCol    = sqlite.IntegerColumn("library_id")
	EpisodeRefSeriesIDCol     = sqlite.IntegerColumn("series_id")
	EpisodeRefSeasonIDCol     = sqlite.IntegerColumn("season_id")
	EpisodeRefTMDBSeriesIDCol = sqlite.IntegerColumn("tmdb_series_id")
	EpisodeRefSeasonNumCol    = sqlite.IntegerColumn("season_number")
	EpisodeRefEpisodeNumCol   = sqlite.IntegerColumn("episode_number")
	EpisodeRefFileIDCol       = sqlite.IntegerColumn("file_id")
	EpisodeRefDetailsCol      = sqlite.StringColumn("details")
	EpisodeRefDetailStateCol  = sqlite.StringColumn("detail_state")

	EpisodeReferenceAllColumns = sqlite.ColumnList{EpisodeRefIDCol, EpisodeRefLibraryIDCol, EpisodeRefSeriesIDCol, EpisodeRefSeasonIDCol, EpisodeRefTMDBSeriesIDCol, EpisodeRefSeasonNumCol, EpisodeRefEpisodeNumCol, EpisodeRefFileIDCol, EpisodeRefDetailsCol, EpisodeRefDetailStateCol}
	EpisodeReferenceTable      = newTable("episode_reference", EpisodeReferenceAllColumns...)
)

// --- person ---

var (
	PersonTMDBIDCol  = sqlite.IntegerColumn("tmdb_id")
	PersonNameCol    = sqlite.StringColumn("name")
	PersonAliasesCol = sqlite.StringColumn("aliases") // json
	PersonDeptCol    = sqlite.StringColumn("known_for_department")
	PersonProfileCol = sqlite.StringColumn("profile_path")
	PersonExternalCol = sqlite.StringColumn("external_ids") // json

	PersonAllColumns = sqlite.ColumnList{PersonTMDBIDCol, PersonNameCol, PersonAliasesCol, PersonDeptCol, PersonProfileCol, PersonExternalCol}
	PersonTable      = newTable("person", PersonAllColumns...)
)

// --- image_variant ---

var (
	ImageVariantIIDCol         = sqlite.StringColumn("iid")
	ImageVariantMediaIDCol     = sqlite.IntegerColumn("media_id")
	ImageVariantMediaTypeCol   = sqlite.StringColumn("media_type")
	ImageVariantTMDBPathCol    = sqlite.StringColumn("tmdb_path")
	ImageVariantWidthCol       = sqlite.IntegerColumn("width")
	ImageVariantHeightCol      = sqlite.IntegerColumn("height")
	ImageVariantLanguageCol    = sqlite.StringColumn("language")
	ImageVariantVoteAvgCol     = sqlite.FloatColumn("vote_average")
	ImageVariantVoteCountCol   = sqlite.IntegerColumn("vote_count")
	ImageVariantSizeClassCol   = sqlite.StringColumn("size_class")
	ImageVariantIsPrimaryCol   = sqlite.BoolColumn("is_primary")

	ImageVariantAllColumns = sqlite.ColumnList{ImageVariantIIDCol, ImageVariantMediaIDCol, ImageVariantMediaTypeCol, ImageVariantTMDBPathCol, ImageVariantWidthCol, ImageVariantHeightCol, ImageVariantLanguageCol, ImageVariantVoteAvgCol, ImageVariantVoteCountCol, ImageVariantSizeClassCol, ImageVariantIsPrimaryCol}
	ImageVariantTable      = newTable("image_variant", ImageVariantAllColumns...)
)

// --- scan_cursor ---

var (
	ScanCursorLibraryIDCol    = sqlite.IntegerColumn("library_id")
	ScanCursorFolderPathCol   = sqlite.StringColumn("folder_path")
	ScanCursorListingHashCol  = sqlite.StringColumn("listing_hash")
	ScanCursorEntryCountCol   = sqlite.IntegerColumn("entry_count")
	ScanCursorLastScanCol     = sqlite.TimestampColumn("last_scan_at")
	ScanCursorLastModifiedCol = sqlite.TimestampColumn("last_modified")
	ScanCursorDeviceIDCol     = sqlite.IntegerColumn("device_id")

	ScanCursorAllColumns = sqlite.ColumnList{ScanCursorLibraryIDCol, ScanCursorFolderPathCol, ScanCursorListingHashCol, ScanCursorEntryCountCol, ScanCursorLastScanCol, ScanCursorLastModifiedCol, ScanCursorDeviceIDCol}
	ScanCursorTable      = newTable("scan_cursor", ScanCursorAllColumns...)
)

// --- catalog_entry ---

var (
	CatalogEntryIDCol             = sqlite.IntegerColumn("id")
	CatalogEntryLibraryIDCol      = sqlite.IntegerColumn("library_id")
	CatalogEntryMediaTypeCol      = sqlite.StringColumn("media_type")
	CatalogEntryTitleCol          = sqlite.StringColumn("title")
	CatalogEntryShowTitleCol      = sqlite.StringColumn("show_title")
	CatalogEntrySeasonCol         = sqlite.IntegerColumn("season")
	CatalogEntryEpisodeCol        = sqlite.IntegerColumn("episode")
	CatalogEntryPosterIIDCol      = sqlite.StringColumn("poster_iid")
	CatalogEntryBackdropIIDCol    = sqlite.StringColumn("backdrop_iid")
	CatalogEntryPathCol           = sqlite.StringColumn("path")
	CatalogEntryFingerprintCol    = sqlite.StringColumn("fingerprint")
	CatalogEntryIdempotencyKeyCol = sqlite.StringColumn("idempotency_key")

	CatalogEntryAllColumns = sqlite.ColumnList{CatalogEntryIDCol, CatalogEntryLibraryIDCol, CatalogEntryMediaTypeCol, CatalogEntryTitleCol, CatalogEntryShowTitleCol, CatalogEntrySeasonCol, CatalogEntryEpisodeCol, CatalogEntryPosterIIDCol, CatalogEntryBackdropIIDCol, CatalogEntryPathCol, CatalogEntryFingerprintCol, CatalogEntryIdempotencyKeyCol}
	CatalogEntryTable      = newTable("catalog_entry", CatalogEntryAllColumns...)
)

// --- job ---

var (
	JobIDCol            = sqlite.IntegerColumn("id")
	JobKindCol          = sqlite.StringColumn("kind")
	JobPriorityCol       = sqlite.IntegerColumn("priority")
	JobLibraryIDCol      = sqlite.IntegerColumn("library_id")
	JobPayloadCol        = sqlite.StringColumn("payload")
	JobDedupeKeyCol      = sqlite.StringColumn("dedupe_key")
	JobStatusCol         = sqlite.StringColumn("status")
	JobAttemptCol        = sqlite.IntegerColumn("attempt")
	JobScheduledAtCol    = sqlite.TimestampColumn("scheduled_at")
	JobEnqueuedAtCol     = sqlite.TimestampColumn("enqueued_at")
	JobLeaseOwnerCol     = sqlite.StringColumn("lease_owner")
	JobLeaseExpiresCol   = sqlite.TimestampColumn("lease_expires_at")
	JobCorrelationIDCol  = sqlite.StringColumn("correlation_id")
	JobLastErrorCol      = sqlite.StringColumn("last_error")

	JobAllColumns = sqlite.ColumnList{JobIDCol, JobKindCol, JobPriorityCol, JobLibraryIDCol, JobPayloadCol, JobDedupeKeyCol, JobStatusCol, JobAttemptCol, JobScheduledAtCol, JobEnqueuedAtCol, JobLeaseOwnerCol, JobLeaseExpiresCol, JobCorrelationIDCol, JobLastErrorCol}
	JobTable      = newTable("job", JobAllColumns...)
)

// --- job_transition ---

var (
	JobTransitionIDCol        = sqlite.IntegerColumn("id")
	JobTransitionJobIDCol     = sqlite.IntegerColumn("job_id")
	JobTransitionFromCol      = sqlite.StringColumn("from_status")
	JobTransitionToCol        = sqlite.StringColumn("to_status")
	JobTransitionErrorCol     = sqlite.StringColumn("error")
	JobTransitionCreatedCol   = sqlite.TimestampColumn("created_at")

	JobTransitionAllColumns = sqlite.ColumnList{JobTransitionIDCol, JobTransitionJobIDCol, JobTransitionFromCol, JobTransitionToCol, JobTransitionErrorCol, JobTransitionCreatedCol}
	JobTransitionTable      = newTable("job_transition", JobTransitionAllColumns...)
)

// --- job_dead_letter ---

var (
	DeadLetterJobIDCol      = sqlite.IntegerColumn("job_id")
	DeadLetterKindCol        = sqlite.StringColumn("kind")
	DeadLetterPayloadCol     = sqlite.StringColumn("payload")
	DeadLetterErrorCol       = sqlite.StringColumn("error")
	DeadLetterAttemptCol     = sqlite.IntegerColumn("attempt")
	DeadLetterDeadLetteredAtCol = sqlite.TimestampColumn("dead_lettered_at")

	DeadLetterAllColumns = sqlite.ColumnList{DeadLetterJobIDCol, DeadLetterKindCol, DeadLetterPayloadCol, DeadLetterErrorCol, DeadLetterAttemptCol, DeadLetterDeadLetteredAtCol}
	DeadLetterTable      = newTable("job_dead_letter", DeadLetterAllColumns...)
)
