package enroll

import (
	"encoding/binary"
	"sort"

	"github.com/zeebo/blake3"

	"github.com/f3rmion/fyenroll/group"
)

const transcriptDomain = "fyenroll/enroll/v1"

// Transcript returns a 32-byte digest binding an enrollment session to its
// public context. Holders attach it to their aggregates so the newcomer can
// tell that all of them worked on the same session. The order of set does
// not matter.
func Transcript(g group.Group, sessionID string, set []int, newIndex, threshold, total int, groupKey group.Point) []byte {
	sorted := append([]int(nil), set...)
	sort.Ints(sorted)

	h := blake3.New()
	writeBytes(h, []byte(transcriptDomain))
	writeBytes(h, []byte(g.Name()))
	writeBytes(h, []byte(sessionID))
	writeUint(h, uint64(len(sorted)))
	for _, i := range sorted {
		writeUint(h, uint64(i))
	}
	writeUint(h, uint64(newIndex))
	writeUint(h, uint64(threshold))
	writeUint(h, uint64(total))
	writeBytes(h, groupKey.Bytes())
	return h.Sum(nil)
}

func writeUint(h *blake3.Hasher, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, _ = h.Write(buf[:])
}

func writeBytes(h *blake3.Hasher, b []byte) {
	writeUint(h, uint64(len(b)))
	_, _ = h.Write(b)
}
