// Package archive reads and patches the fixed-offset header of BTDX
// game-archive containers. Only the header is touched; file tables and
// asset data are opaque to this package.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// BTDX header layout: magic at offset 0 (4 bytes), version byte at
// offset 4, type magic at offset 8 (4 bytes).
const (
	magic = "BTDX"

	versionOffset = 4
	typeOffset    = 8
	typeLen       = 4

	// headerLen is the number of header bytes the inspector cares about.
	headerLen = typeOffset + typeLen

	// minFileSize is the smallest file that can carry a version byte.
	minFileSize = versionOffset + 1

	// Extension is the conventional file extension for BTDX containers.
	Extension = ".ba2"

	typeGeneral = "GNRL"
	typeTexture = "DX10"
)

// Version is the archive's on-disk format generation, encoded as a single
// byte at versionOffset.
type Version byte

const (
	VersionUnknown Version = 0x00
	V1             Version = 0x01
	V7             Version = 0x07
	V8             Version = 0x08
)

func (v Version) String() string {
	switch v {
	case V1:
		return "v1"
	case V7:
		return "v7"
	case V8:
		return "v8"
	default:
		return "unknown"
	}
}

// ParseVersion converts a user-supplied version name ("v1", "1", ...) to a
// Version. Only recognized generations are accepted.
func ParseVersion(s string) (Version, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "v1", "1":
		return V1, nil
	case "v7", "7":
		return V7, nil
	case "v8", "8":
		return V8, nil
	default:
		return VersionUnknown, fmt.Errorf("unrecognized archive version %q (want v1, v7, or v8)", s)
	}
}

// Type is the archive content type, encoded as a 4-byte magic at typeOffset.
type Type string

const (
	TypeUnknown Type = "unknown"
	TypeGeneral Type = "general"
	TypeTexture Type = "texture"
)

// Descriptor is the result of inspecting one archive file. It is produced
// fresh on every Inspect call and never cached.
type Descriptor struct {
	Path      string  `json:"path"`
	FileName  string  `json:"fileName"`
	Valid     bool    `json:"valid"`
	Version   Version `json:"version"`
	Type      Type    `json:"type"`
	SizeBytes int64   `json:"sizeBytes"`
	ReadOnly  bool    `json:"readOnly"`
}

// Inspect reads the header of the file at path and reports what it found.
// A missing file yields (nil, nil). Malformed content is not an error: the
// descriptor carries Unknown fields and Valid=false. I/O failures (locked
// file, permission denied) are returned as errors so callers can tell them
// apart from bad content.
func Inspect(path string) (*Descriptor, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	desc := &Descriptor{
		Path:      path,
		FileName:  filepath.Base(path),
		Version:   VersionUnknown,
		Type:      TypeUnknown,
		SizeBytes: info.Size(),
		ReadOnly:  isReadOnly(path, info),
	}

	if info.Size() < minFileSize {
		return desc, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	header := make([]byte, headerLen)
	n, err := f.ReadAt(header, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	header = header[:n]

	if len(header) < minFileSize || string(header[:len(magic)]) != magic {
		return desc, nil
	}

	// Version and type are decoded independently of the composite validity
	// flag; callers may want either one on its own.
	desc.Version = decodeVersion(header[versionOffset])
	if len(header) >= typeOffset+typeLen {
		desc.Type = decodeType(string(header[typeOffset : typeOffset+typeLen]))
	}

	desc.Valid = desc.Version != VersionUnknown && desc.Type != TypeUnknown
	return desc, nil
}

func decodeVersion(b byte) Version {
	switch Version(b) {
	case V1, V7, V8:
		return Version(b)
	default:
		return VersionUnknown
	}
}

func decodeType(s string) Type {
	switch s {
	case typeGeneral:
		return TypeGeneral
	case typeTexture:
		return TypeTexture
	default:
		return TypeUnknown
	}
}

// hasMagic reports whether the file starts with the BTDX magic and is large
// enough to hold a version byte.
func hasMagic(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, minFileSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}
		return false, err
	}
	return string(buf[:len(magic)]) == magic, nil
}
