package media

import (
	"path/filepath"

	"github.com/google/uuid"
)

// Target is one freshly named output location.
type Target struct {
	Path string
	Type FileType
}

// Empty reports whether t has no path.
func (t Target) Empty() bool { return t.Path == "" }

func (t Target) String() string { return t.Path }

// NewTarget names a new output file in dir for ft. Asking for a type that is
// not on the allow-list of want is a precondition violation reported as
// *ErrUnsupportedFileType.
func NewTarget(dir string, ft FileType, want FileKind) (Target, error) {
	if (want == KindVideo && !ft.IsVideo()) || (want == KindImage && !ft.IsImage()) {
		return Target{}, &ErrUnsupportedFileType{Name: ft.Name, Want: want}
	}
	name := uuid.NewString() + "." + ft.Ext
	return Target{Path: filepath.Join(dir, name), Type: ft}, nil
}
