package media

import (
	"fmt"
	"strings"
)

// FileKind separates video containers from still image formats.
type FileKind int

const (
	KindVideo FileKind = iota
	KindImage
)

func (k FileKind) String() string {
	if k == KindImage {
		return "image"
	}
	return "video"
}

// FileType is an output file format from the allow-list.
type FileType struct {
	Name string
	Ext  string
	Kind FileKind
}

var (
	FileTypeMOV  = FileType{Name: "mov", Ext: "mov", Kind: KindVideo}
	FileTypeMP4  = FileType{Name: "mp4", Ext: "mp4", Kind: KindVideo}
	FileTypeM4V  = FileType{Name: "m4v", Ext: "m4v", Kind: KindVideo}
	FileType3GP  = FileType{Name: "3gp", Ext: "3gp", Kind: KindVideo}
	FileType3G2  = FileType{Name: "3g2", Ext: "3g2", Kind: KindVideo}
	FileTypeJPG  = FileType{Name: "jpg", Ext: "jpg", Kind: KindImage}
	FileTypeTIFF = FileType{Name: "tiff", Ext: "tiff", Kind: KindImage}
	FileTypeHEIC = FileType{Name: "heic", Ext: "heic", Kind: KindImage}
)

var fileTypes = map[string]FileType{
	"mov":  FileTypeMOV,
	"mp4":  FileTypeMP4,
	"m4v":  FileTypeM4V,
	"3gp":  FileType3GP,
	"3g2":  FileType3G2,
	"jpg":  FileTypeJPG,
	"jpeg": FileTypeJPG,
	"tif":  FileTypeTIFF,
	"tiff": FileTypeTIFF,
	"heic": FileTypeHEIC,
}

// ErrUnsupportedFileType is returned for names outside the allow-list.
type ErrUnsupportedFileType struct {
	Name string
	Want FileKind
}

func (e *ErrUnsupportedFileType) Error() string {
	return fmt.Sprintf("file type %q is not supported for %s", e.Name, e.Want)
}

// LookupFileType resolves a name against the allow-list for kind.
func LookupFileType(name string, kind FileKind) (FileType, error) {
	ft, ok := fileTypes[strings.ToLower(strings.TrimPrefix(name, "."))]
	if !ok || ft.Kind != kind {
		return FileType{}, &ErrUnsupportedFileType{Name: name, Want: kind}
	}
	return ft, nil
}

// IsVideo reports whether ft is an allowed video container.
func (ft FileType) IsVideo() bool {
	got, ok := fileTypes[ft.Name]
	return ok && got == ft && ft.Kind == KindVideo
}

// IsImage reports whether ft is an allowed image format.
func (ft FileType) IsImage() bool {
	got, ok := fileTypes[ft.Name]
	return ok && got == ft && ft.Kind == KindImage
}

func (ft FileType) String() string { return ft.Name }
