package jobs

import "github.com/treeglot/treeglot/internal/treecodec"

// SplitLeaves partitions leaves into contiguous chunks of at most chunkSize,
// preserving document order. A non-positive chunkSize puts everything in one
// chunk.
func SplitLeaves(leaves []treecodec.Leaf, chunkSize int) [][]treecodec.Leaf {
	if len(leaves) == 0 {
		return nil
	}
	if chunkSize <= 0 || chunkSize >= len(leaves) {
		return [][]treecodec.Leaf{leaves}
	}

	chunks := make([][]treecodec.Leaf, 0, (len(leaves)+chunkSize-1)/chunkSize)
	for start := 0; start < len(leaves); start += chunkSize {
		end := min(start+chunkSize, len(leaves))
		chunks = append(chunks, leaves[start:end])
	}
	return chunks
}
