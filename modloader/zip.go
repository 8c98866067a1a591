package modloader

import (
	"archive/zip"
	"fmt"
	"path"
)

func fromZIP(filePath string, sel selector) (*Image, error) {
	r, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !sel.matches(f.Name) {
			continue
		}
		if int64(f.UncompressedSize64) > sel.limit {
			return nil, fmt.Errorf("%s: %w", f.Name, ErrFileTooLarge)
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
