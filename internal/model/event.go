package model

// FileOp is the kind of change observed on a file.
type FileOp int

const (
	// FileCreated is reported when a file appears.
	FileCreated FileOp = iota
	// FileChanged is reported when file content is written.
	FileChanged
	// FileDeleted is reported when a file is removed or renamed away.
	FileDeleted
)

func (op FileOp) String() string {
	switch op {
	case FileCreated:
		return "created"
	case FileChanged:
		return "changed"
	case FileDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// FileEvent is a single file-system notification.
type FileEvent struct {
	Path Path
	Op   FileOp
}
