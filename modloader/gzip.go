package modloader

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
)

// fromGzip unpacks a gzip stream from f. A bare .gz holds the module
// itself; a tarball is searched for a matching member.
func fromGzip(f io.Reader, filePath string, container Container, sel selector) (*Image, error) {
	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gr.Close()

	if container == ContainerTarGz {
		return fromTar(gr, sel)
	}

	data, err := sel.read(gr)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress gzip: %w", err)
	}

	name := gr.Name
	if name == "" {
		name = filepath.Base(filePath)
		if strings.HasSuffix(strings.ToLower(name), ".gz") {
			name = name[:len(name)-3]
		}
	}
	return &Image{Data: data, Name: path.Base(name)}, nil
}

func fromTar(r io.Reader, sel selector) (*Image, error) {
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil, ErrNoModule
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar entry: %w", err)
		}
		if header.Typeflag != tar.TypeReg || !sel.matches(header.Name) {
			continue
		}

		data, err := sel.read(tr)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s from tar: %w", header.Name, err)
		}
		return &Image{Data: data, Name: path.Base(header.Name)}, nil
	}
}
