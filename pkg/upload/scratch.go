package upload

import (
	"fmt"
	"io"
	"os"
)

// createScratchAt opens (or reopens, for repeated part re-uploads) a
// scratch file at a deterministic path. Truncated on open so a
// re-uploaded part fully replaces the prior bytes at that path.
func createScratchAt(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("upload: open scratch file: %w", err)
	}
	return f, nil
}

// appendPart streams partPath's contents onto the end of dst,
// returning the number of bytes copied.
func appendPart(dst *os.File, partPath string) (int64, error) {
	src, err := os.Open(partPath)
	if err != nil {
		return 0, fmt.Errorf("open part file: %w", err)
	}
	defer src.Close()

	buf := make([]byte, chunkSize)
	return io.CopyBuffer(dst, src, buf)
}
