package semihosting

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type request struct {
	op    SemiHostingOp
	param []byte
}

type recorder struct {
	calls []request
}

func (r *recorder) Call(op SemiHostingOp, param []byte) uint32 {
	r.calls = append(r.calls, request{op, param})
	return 42
}

func TestExitUsesExtendedCall(t *testing.T) {
	r := &recorder{}
	Exit(r, 0)
	Exit(r, 3)
	assert.Equal(t, []request{
		{SemiHostOpExitExtended, []byte{0x26, 0x00, 0x02, 0x00, 0, 0, 0, 0}},
		{SemiHostOpExitExtended, []byte{0x23, 0x00, 0x02, 0x00, 3, 0, 0, 0}},
	}, r.calls)
}

func TestWriteAndClock(t *testing.T) {
	r := &recorder{}
	w := Writer{C: r}
	n, err := w.Write([]byte("halt\n"))
	assert.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte("halt\n\x00"), r.calls[0].param)
	assert.Equal(t, uint32(42), Clock(r))
	assert.Equal(t, SemiHostOpClock, r.calls[1].op)
}
