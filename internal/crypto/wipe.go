package crypto

import "crypto/subtle"

// Wipe overwrites b with zeros in a constant-time friendly way. Best effort:
// copies made by the runtime before the call are out of reach.
func Wipe(b []byte) {
	if len(b) == 0 {
		return
	}
	subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
}
