package eventstore

import "fmt"

// VersionConflict is raised by Append when the stored max-sequence for a
// task does not match the caller's expected_version (§4.8).
type VersionConflict struct {
	TaskID   string
	Have     uint64
	Expected uint64
}

func (e *VersionConflict) Error() string {
	return fmt.Sprintf("eventstore: version conflict for task %q: have %d, expected %d", e.TaskID, e.Have, e.Expected)
}
