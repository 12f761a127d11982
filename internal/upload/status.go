package upload

// Status is the overall state of the orchestrator for the current batch.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusUploading Status = "uploading"
	StatusDone      Status = "done"
	// StatusFailed is reserved for orchestrator-level failure (teardown
	// mid-batch, or strict mode). Individual file failures do not set it.
	StatusFailed Status = "failed"
)

// FileStatus is the state of a single file within a batch.
type FileStatus string

const (
	FileAuthorizing FileStatus = "authorizing"
	FileAccepted    FileStatus = "accepted"
	FileRejected    FileStatus = "rejected"
	FileUploading   FileStatus = "uploading"
	FileDone        FileStatus = "done"
	FileFailed      FileStatus = "failed"
	FileAborted     FileStatus = "aborted"
)

// Terminal reports whether no further transition can leave s.
func (s FileStatus) Terminal() bool {
	switch s {
	case FileRejected, FileDone, FileFailed, FileAborted:
		return true
	}
	return false
}
