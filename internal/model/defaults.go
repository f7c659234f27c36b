package model

import "time"

// Job parameter keys.
const (
	ParamFiles              = "files"
	ParamDirectories        = "directories"
	ParamFileEncoding       = "file_encoding"
	ParamHasHeaderLine      = "has_header_line"
	ParamSeparatorCharacter = "separator_character"
	ParamQuoteCharacter     = "quote_character"
	ParamEscapeCharacter    = "escape_character"
	ParamQuoteDisabled      = "quote_disabled"
	ParamEscapeDisabled     = "escape_disabled"
	ParamIgnoreLeadingWS    = "ignore_leading_whitespaces"
	ParamIgnoreTrailingWS   = "ignore_trailing_whitespaces"
	ParamIgnoreEmptyLines   = "ignore_empty_lines"
	ParamIgnoreLinePatterns = "ignore_line_patterns"
	ParamNullString         = "null_string"
	ParamBreakString        = "break_string"
	ParamSkipLines          = "skip_lines"
	ParamTimestampMargin    = "timestamp_margin"
	ParamReadInterval       = "read_interval"
	ParamNumberOfThreads    = "number_of_threads"
	ParamScriptType         = "script_type"
	ParamDeleteProcessed    = "delete_processed_file"
	ParamIgnoreFileFailures = "ignore_file_failures"
)

// Record keys always set by the projector.
const (
	FieldCSVFile         = "csvfile"
	FieldCSVFileName     = "csvfilename"
	FieldCrawlingConfig  = "crawlingConfig"
	FieldCrawlingContext = "crawlingContext"
	FieldURL             = "url"
	CellPrefix           = "cell"
)

// Shared defaults.
const (
	DefaultEncoding        = "UTF-8"
	DefaultScriptType      = "cel"
	DefaultTimestampMargin = 10 * time.Second
	DefaultNumberOfThreads = 1
)

// FileSuffixes are the accepted delimited-text suffixes, matched case-insensitively.
var FileSuffixes = []string{".csv", ".tsv"}
