package modloader

import (
	"testing"
)

func TestFrom7z_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"not 7z", []byte("not a 7z file")},
		{"empty", []byte{}},
		{"partial magic", []byte{0x37, 0x7A, 0xBC}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := writeFile(t, "core.7z", tc.data)
			if _, err := from7z(p, newSelector(Options{})); err == nil {
				t.Error("Expected error for invalid 7z file")
			}
		})
	}

	if _, err := from7z("/nonexistent/path/core.7z", newSelector(Options{})); err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestFromRAR_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"not rar", []byte("not a rar file")},
		{"empty", []byte{}},
		{"partial magic", []byte{0x52, 0x61, 0x72}},
		{"magic only", []byte{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x00}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := writeFile(t, "core.rar", tc.data)
			if _, err := fromRAR(p, newSelector(Options{})); err == nil {
				t.Error("Expected error for invalid RAR file")
			}
		})
	}

	if _, err := fromRAR("/nonexistent/path/core.rar", newSelector(Options{})); err == nil {
		t.Error("Expected error for nonexistent file")
	}
}
