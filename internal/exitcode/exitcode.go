package exitcode

const (
	Success        = 0
	RuntimeFailure = 1
	InvalidUsage   = 2
	InvalidConfig  = 3

	// MissingDependency covers doctor errors and a downloader binary that
	// cannot be started.
	MissingDependency = 4

	// PartialSuccess means the downloader exited cleanly but produced no
	// audio files.
	PartialSuccess = 5

	Interrupted = 130
)
