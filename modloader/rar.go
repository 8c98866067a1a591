package modloader

import (
	"fmt"
	"io"
	"path"

	"github.com/nwaples/rardecode/v2"
)

func fromRAR(filePath string, sel selector) (*Image, error) {
	r, err := rardecode.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open rar: %w", err)
	}
	defer r.Close()

	for {
		header, err := r.Next()
		if err == io.EOF {
			return nil, ErrNoModule
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read rar entry: %w", err)
		}
		if header.IsDir || !sel.matches(header.Name) {
			continue
		}

		data, err := sel.read(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", header.Name, err)
		}
		return &Image{Data: data, Name: path.Base(header.Name)}, nil
	}
}
