package crypto

import (
	"crypto/cipher"
	"encoding/binary"
)

// ctr64 is AES-CTR where only the low 64 bits of the counter block
// increment, wrapping modulo 2^64. The high 64 bits stay fixed.
type ctr64 struct {
	block   cipher.Block
	counter [16]byte
	stream  [16]byte
	used    int
}

// NewCTR64 returns a stream over block starting at counter block iv.
// iv must be one block long.
func NewCTR64(block cipher.Block, iv []byte) cipher.Stream {
	if len(iv) != block.BlockSize() || block.BlockSize() != 16 {
		panic("crypto: NewCTR64 requires a 16-byte block and IV")
	}
	c := &ctr64{block: block, used: 16}
	copy(c.counter[:], iv)
	return c
}

func (c *ctr64) refill() {
	c.block.Encrypt(c.stream[:], c.counter[:])
	low := binary.BigEndian.Uint64(c.counter[8:])
	binary.BigEndian.PutUint64(c.counter[8:], low+1)
	c.used = 0
}

func (c *ctr64) XORKeyStream(dst, src []byte) {
	if len(dst) < len(src) {
		panic("crypto: output smaller than input")
	}
	for i := range src {
		if c.used == len(c.stream) {
			c.refill()
		}
		dst[i] = src[i] ^ c.stream[c.used]
		c.used++
	}
}
