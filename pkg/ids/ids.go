// Package ids provides time-ordered, entity-tagged identifiers shared across
// every durable entity in the workflow core (tasks, assignments, workflows,
// annotations, users, goals, events).
package ids

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Tag identifies the entity type an ID was minted for.
type Tag string

const (
	TagTask       Tag = "task"
	TagAssignment Tag = "asgn"
	TagWorkflow   Tag = "wf"
	TagAnnotation Tag = "annot"
	TagUser       Tag = "user"
	TagGoal       Tag = "goal"
	TagEvent      Tag = "evt"
	TagProject    Tag = "proj"
)

var (
	// ErrMissingPrefix is returned when parsing a string with no "tag_" prefix.
	ErrMissingPrefix = errors.New("ids: missing prefix")
	// ErrInvalidUUID is returned when the suffix after the prefix is not a valid ULID.
	ErrInvalidUUID = errors.New("ids: invalid id body")
)

// WrongPrefixError reports that an ID carried a different entity tag than expected.
type WrongPrefixError struct {
	Expected Tag
	Got      Tag
}

func (e *WrongPrefixError) Error() string {
	return fmt.Sprintf("ids: wrong prefix: expected %q, got %q", e.Expected, e.Got)
}

// ID is a time-ordered, entity-tagged identifier, rendered as "<tag>_<ulid>".
type ID struct {
	tag Tag
	u   ulid.ULID
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// New mints a fresh, monotonic identifier for the given entity tag.
func New(tag Tag) ID {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ID{tag: tag, u: ulid.MustNew(ulid.Timestamp(time.Now()), entropy)}
}

// Parse decodes a textual id, verifying its tag and body.
func Parse(tag Tag, s string) (ID, error) {
	idx := strings.IndexByte(s, '_')
	if idx < 0 {
		return ID{}, ErrMissingPrefix
	}
	got := Tag(s[:idx])
	if got != tag {
		return ID{}, &WrongPrefixError{Expected: tag, Got: got}
	}
	u, err := ulid.ParseStrict(s[idx+1:])
	if err != nil {
		return ID{}, fmt.Errorf("%w: %v", ErrInvalidUUID, err)
	}
	return ID{tag: tag, u: u}, nil
}

// ParseAny decodes a textual id without checking which tag it carries.
func ParseAny(s string) (ID, error) {
	idx := strings.IndexByte(s, '_')
	if idx < 0 {
		return ID{}, ErrMissingPrefix
	}
	u, err := ulid.ParseStrict(s[idx+1:])
	if err != nil {
		return ID{}, fmt.Errorf("%w: %v", ErrInvalidUUID, err)
	}
	return ID{tag: Tag(s[:idx]), u: u}, nil
}

// Tag returns the entity tag this id was minted for.
func (id ID) Tag() Tag { return id.tag }

// Time returns the millisecond timestamp embedded in the id.
func (id ID) Time() time.Time {
	return ulid.Time(id.u.Time())
}

// String renders the id as "<tag>_<ulid>".
func (id ID) String() string {
	if id.tag == "" && id.u == (ulid.ULID{}) {
		return ""
	}
	return string(id.tag) + "_" + id.u.String()
}

// IsZero reports whether the id is the zero value.
func (id ID) IsZero() bool {
	return id.tag == "" && id.u == (ulid.ULID{})
}

// MarshalText implements encoding.TextMarshaler so IDs serialize as their
// prefixed string form in JSON and YAML.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. The tag is not checked
// here (callers that know the expected tag should use Parse instead); it is
// accepted as written so that generic payloads (event envelopes, JSON
// contexts) can round-trip ids of any entity type.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseAny(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
