// Package memzero wipes secret buffers once they are no longer needed.
package memzero

import "crypto/subtle"

// Zero overwrites each buffer with zeros. This is best effort: copies made
// by the runtime or by callers are not reached.
func Zero(bufs ...[]byte) {
	for _, b := range bufs {
		if len(b) == 0 {
			continue
		}
		subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
	}
}
