package modloader

import (
	"fmt"
	"path"

	"github.com/bodgit/sevenzip"
)

func from7z(filePath string, sel selector) (*Image, error) {
	r, err := sevenzip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open 7z: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !sel.matches(f.Name) {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s in archive: %w", f.Name, err)
		}
		data, err := sel.read(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
		return &Image{Data: data, Name: path.Base(f.Name)}, nil
	}

	return nil, ErrNoModule
}
