package types

import (
	"strings"

	"github.com/kotadb/kotadb-go/kotaerr"
)

// MaxPathLength is the §3 "length < 4096" ceiling.
const MaxPathLength = 4096

// reservedNames are platform-reserved device names, checked
// case-insensitively and without regard to extension, matching the
// original implementation's reserved-name table (see SPEC_FULL.md §3).
var reservedNames = map[string]bool{
	"con": true, "prn": true, "aux": true, "nul": true,
	"com1": true, "com2": true, "com3": true, "com4": true, "com5": true,
	"com6": true, "com7": true, "com8": true, "com9": true,
	"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true, "lpt5": true,
	"lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
}

// ValidatedPath is a UTF-8 path that has passed every §3 check.
type ValidatedPath struct {
	value string
}

// NewValidatedPath validates p against every rule in §3: non-empty,
// length < 4096, no null byte, no parent-directory component, not a
// reserved platform name.
func NewValidatedPath(p string) (ValidatedPath, error) {
	if p == "" {
		return ValidatedPath{}, kotaerr.Field(kotaerr.ValidationInvalidInput, "path", "path must not be empty")
	}
	if len(p) >= MaxPathLength {
		return ValidatedPath{}, kotaerr.Field(kotaerr.ValidationInvalidInput, "path", "path length must be < 4096 bytes")
	}
	if strings.IndexByte(p, 0) >= 0 {
		return ValidatedPath{}, kotaerr.Field(kotaerr.ValidationInvalidInput, "path", "path must not contain a null byte")
	}
	for _, seg := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return ValidatedPath{}, kotaerr.Field(kotaerr.ValidationInvalidInput, "path", "path must not contain a parent-directory component")
		}
		base := seg
		if i := strings.IndexByte(base, '.'); i >= 0 {
			base = base[:i]
		}
		if reservedNames[strings.ToLower(base)] {
			return ValidatedPath{}, kotaerr.Field(kotaerr.ValidationInvalidInput, "path", "path segment is a reserved platform name: "+seg)
		}
	}
	return ValidatedPath{value: p}, nil
}

// String returns the underlying path text.
func (p ValidatedPath) String() string { return p.value }

// ValidatedTitle is a non-empty, <=1024 char document title.
type ValidatedTitle struct{ value string }

const MaxTitleLength = 1024

func NewValidatedTitle(t string) (ValidatedTitle, error) {
	if t == "" {
		return ValidatedTitle{}, kotaerr.Field(kotaerr.ValidationInvalidInput, "title", "title must not be empty")
	}
	if len([]rune(t)) > MaxTitleLength {
		return ValidatedTitle{}, kotaerr.Field(kotaerr.ValidationInvalidInput, "title", "title must be <= 1024 characters")
	}
	return ValidatedTitle{value: t}, nil
}

func (t ValidatedTitle) String() string { return t.value }

// Tag is a single alphanumeric+`-_ ` tag, <=128 chars.
type Tag struct{ value string }

const MaxTagLength = 128

func NewTag(t string) (Tag, error) {
	if t == "" || len(t) > MaxTagLength {
		return Tag{}, kotaerr.Field(kotaerr.ValidationInvalidInput, "tag", "tag must be 1-128 characters")
	}
	for _, r := range t {
		if !(r == '-' || r == '_' || r == ' ' ||
			(r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return Tag{}, kotaerr.Field(kotaerr.ValidationInvalidInput, "tag", "tag contains an invalid character")
		}
	}
	return Tag{value: t}, nil
}

func (t Tag) String() string { return t.value }
