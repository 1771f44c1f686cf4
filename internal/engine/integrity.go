package engine

import (
	"fmt"

	"fluxdl/internal/dlerror"
)

// verifyComplete checks that a finished run actually delivered every
// byte and every chunk. This is a count check, not a hash check: the
// engine trusts the server's Content-Length and its own chunk
// accounting rather than re-reading and hashing the output file.
func verifyComplete(downloadedBytes, totalSize int64, completedChunks, totalChunks int64) error {
	if downloadedBytes < totalSize || completedChunks < totalChunks {
		return dlerror.New(dlerror.Integrity, fmt.Sprintf(
			"download incomplete: %d/%d bytes, %d/%d chunks",
			downloadedBytes, totalSize, completedChunks, totalChunks))
	}
	return nil
}
