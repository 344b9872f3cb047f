package s3utils

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// S3 protocol-wide part limits.
const (
	MinPartSize   = 5 * humanize.MiByte
	MaxPartSize   = 5 * humanize.GiByte
	MaxObjectSize = 5 * humanize.TiByte
	MaxPartsCount = 10000
)

// OptimalPartInfo computes (partCount, partSize, lastPartSize) for an upload of the given
// object size and a caller-requested part size. objectSize of -1 means
// unknown (streaming) size; in that case partCount is returned as -1 to
// signal "determine by look-ahead during upload".
func OptimalPartInfo(objectSize int64, configuredPartSize uint64) (partCount int, partSize int64, lastPartSize int64, err error) {
	if configuredPartSize > 0 {
		if configuredPartSize < MinPartSize {
			return 0, 0, 0, fmt.Errorf("part size must be at least %s", humanize.IBytes(MinPartSize))
		}
		if configuredPartSize > MaxPartSize {
			return 0, 0, 0, fmt.Errorf("part size must be at most %s", humanize.IBytes(MaxPartSize))
		}
		partSize = int64(configuredPartSize)
	}

	if objectSize == -1 {
		if partSize == 0 {
			return 0, 0, 0, fmt.Errorf("a valid part size must be specified when object size is unknown")
		}
		return -1, partSize, 0, nil
	}

	if objectSize < 0 {
		return 0, 0, 0, fmt.Errorf("object size must be non-negative, or -1 for unknown size")
	}

	if partSize == 0 {
		// Spread the object over at most 10000 parts, rounding the part
		// size up to the next 5 MiB boundary, then clamp to the object
		// size for small objects.
		partSize = int64(((objectSize+MaxPartsCount-1)/MaxPartsCount + MinPartSize - 1) / MinPartSize * MinPartSize)
		if partSize == 0 {
			partSize = MinPartSize
		}
		if partSize > objectSize {
			partSize = objectSize
		}
	}

	if objectSize == 0 {
		return 1, partSize, 0, nil
	}

	partCount = int((objectSize + partSize - 1) / partSize)
	if partCount > MaxPartsCount {
		return 0, 0, 0, fmt.Errorf("object of size %s with part size %s requires more than the maximum %d parts",
			humanize.IBytes(uint64(objectSize)), humanize.IBytes(uint64(partSize)), MaxPartsCount)
	}

	lastPartSize = objectSize - (int64(partCount-1) * partSize)
	return partCount, partSize, lastPartSize, nil
}
