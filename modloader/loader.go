// Package modloader reads WebAssembly simulation cores from disk. Modules
// may be shipped bare or inside an archive (ZIP, 7z, gzip, tar.gz, RAR).
package modloader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DefaultMaxSize bounds the size of an extracted module.
const DefaultMaxSize = 64 * 1024 * 1024

// ModuleExt is the file extension of a WebAssembly module.
const ModuleExt = ".wasm"

// Magic bytes for container and module detection
var (
	magicWasm   = []byte{0x00, 0x61, 0x73, 0x6D} // "\0asm"
	magicZIP    = []byte{0x50, 0x4B, 0x03, 0x04}
	magicZIPEnd = []byte{0x50, 0x4B, 0x05, 0x06}
	magic7z     = []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}
	magicGzip   = []byte{0x1F, 0x8B}
	magicRAR    = []byte{0x52, 0x61, 0x72, 0x21} // "Rar!"
)

var (
	ErrNoModule          = errors.New("no WebAssembly module found in archive")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrFileTooLarge      = errors.New("module exceeds maximum size limit")
	ErrNotWebAssembly    = errors.New("file is not a WebAssembly module")
)

// Container identifies how a module was packaged.
type Container int

const (
	ContainerUnknown Container = iota
	ContainerRaw
	ContainerZIP
	Container7z
	ContainerGzip
	ContainerTarGz
	ContainerRAR
)

func (c Container) String() string {
	switch c {
	case ContainerRaw:
		return "raw"
	case ContainerZIP:
		return "zip"
	case Container7z:
		return "7z"
	case ContainerGzip:
		return "gzip"
	case ContainerTarGz:
		return "tar.gz"
	case ContainerRAR:
		return "rar"
	default:
		return "unknown"
	}
}

// Image is a module read from disk.
type Image struct {
	Data      []byte
	Name      string // base name of the module file
	Container Container
}

// Options controls which archive entry is picked.
type Options struct {
	// Entry selects an archive member by base name. When empty the first
	// member with the .wasm extension is used.
	Entry string
	// MaxSize overrides DefaultMaxSize.
	MaxSize int64
}

// selector decides which archive members qualify and reads them with a
// size limit.
type selector struct {
	entry string
	limit int64
}

func newSelector(opts Options) selector {
	limit := opts.MaxSize
	if limit <= 0 {
		limit = DefaultMaxSize
	}
	return selector{entry: opts.Entry, limit: limit}
}

// matches reports whether an archive member name qualifies. Archive names
// always use forward slashes.
func (s selector) matches(name string) bool {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if s.entry != "" {
		return strings.EqualFold(base, s.entry)
	}
	return strings.EqualFold(path.Ext(base), ModuleExt)
}

// read reads r fully, failing once more than the limit has been read.
func (s selector) read(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.limit {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

// Load reads a module from filePath, unpacking it from an archive when the
// file is one.
func Load(filePath string, opts Options) (*Image, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	header := make([]byte, 16)
	n, herr := io.ReadFull(f, header)
	if herr != nil && herr != io.EOF && herr != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("failed to read file header: %w", herr)
	}
	header = header[:n]
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek file: %w", err)
	}

	sel := newSelector(opts)
	container := sniff(header, filePath)

	var img *Image
	switch container {
	case ContainerRaw:
		img, err = fromRaw(f, filePath, sel)
	case ContainerZIP:
		img, err = fromZIP(filePath, sel)
	case Container7z:
		img, err = from7z(filePath, sel)
	case ContainerGzip, ContainerTarGz:
		img, err = fromGzip(f, filePath, container, sel)
	case ContainerRAR:
		img, err = fromRAR(filePath, sel)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filePath)
	}
	if err != nil {
		return nil, err
	}

	img.Container = container
	if !IsWebAssembly(img.Data) {
		return nil, fmt.Errorf("%w: %s", ErrNotWebAssembly, img.Name)
	}
	return img, nil
}

func fromRaw(r io.Reader, filePath string, sel selector) (*Image, error) {
	data, err := sel.read(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read module: %w", err)
	}
	return &Image{Data: data, Name: filepath.Base(filePath)}, nil
}

// IsWebAssembly reports whether data starts with the WebAssembly magic.
func IsWebAssembly(data []byte) bool {
	return bytes.HasPrefix(data, magicWasm)
}

// sniff picks the container from the header, falling back to the name.
func sniff(header []byte, filePath string) Container {
	lower := strings.ToLower(filePath)

	switch {
	case bytes.HasPrefix(header, magicWasm):
		return ContainerRaw
	case bytes.HasPrefix(header, magicZIP), bytes.HasPrefix(header, magicZIPEnd):
		return ContainerZIP
	case bytes.HasPrefix(header, magicRAR):
		return ContainerRAR
	case bytes.HasPrefix(header, magic7z):
		return Container7z
	case bytes.HasPrefix(header, magicGzip):
		if isTarGz(lower) {
			return ContainerTarGz
		}
		return ContainerGzip
	}

	switch {
	case strings.HasSuffix(lower, ".zip"):
		return ContainerZIP
	case strings.HasSuffix(lower, ".7z"):
		return Container7z
	case isTarGz(lower):
		return ContainerTarGz
	case strings.HasSuffix(lower, ".gz"):
		return ContainerGzip
	case strings.HasSuffix(lower, ".rar"):
		return ContainerRAR
	case strings.HasSuffix(lower, ModuleExt):
		return ContainerRaw
	}
	return ContainerUnknown
}

func isTarGz(lower string) bool {
	return strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz")
}
