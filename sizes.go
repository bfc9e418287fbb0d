package selfencrypt

// sentinelPosition mirrors the source's UINT64_MAX sentinel: "no chunks,
// inline content only".
const sentinelPosition = ^uint64(0)

// calculateSizes derives the normal chunk size and the offset of the last
// chunk from the current logical file size, per the sizing algorithm:
//
//   - size < 3*Cmin: no chunking at all (tiny inline file).
//   - size < 3*C: three roughly-equal chunks, normal = size/3.
//   - otherwise: normal = C, and the last chunk absorbs the trailing
//     remainder so it always lands in [Cmin, 2*C).
func calculateSizes(fileSize, chunkSize, minChunkSize uint64) (normal, lastChunkPosition uint64) {
	switch {
	case fileSize < 3*minChunkSize:
		return 0, sentinelPosition
	case fileSize < 3*chunkSize:
		normal = fileSize / 3
		return normal, 2 * normal
	default:
		normal = chunkSize
		k := fileSize / chunkSize
		if fileSize%chunkSize < minChunkSize {
			k--
		}
		return normal, k * chunkSize
	}
}
