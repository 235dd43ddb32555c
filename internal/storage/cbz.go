package storage

import (
	"archive/zip"
	"bytes"
	"fmt"
	"sort"
)

// BuildCBZ packs page files into an in-memory CBZ (zip) archive. Entries
// are written in ascending name order, which matches page numbering since
// page files carry zero-padded indexes.
func BuildCBZ(pages map[string][]byte) ([]byte, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("cbz: no pages")
	}

	names := make([]string, 0, len(pages))
	for name := range pages {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	z := zip.NewWriter(&buf)

	for _, name := range names {
		w, err := z.CreateHeader(&zip.FileHeader{
			Name:   name,
			Method: zip.Deflate,
		})
		if err != nil {
			return nil, fmt.Errorf("cbz: %w", err)
		}
		if _, err := w.Write(pages[name]); err != nil {
			return nil, fmt.Errorf("cbz: %w", err)
		}
	}

	if err := z.Close(); err != nil {
		return nil, fmt.Errorf("cbz: %w", err)
	}

	return buf.Bytes(), nil
}
