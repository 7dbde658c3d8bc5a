package converter

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stdf2h5/stdf2h5/pkg/stdf"
)

func TestSession_Transitions(t *testing.T) {
	s := newSession("x.stdf", DefaultSLogger())
	assert.Equal(t, Idle, s.State())

	_, err := uuid.Parse(s.ID)
	require.NoError(t, err)

	s.transition(Decoding)
	s.transition(Finalizing)
	s.transition(Done)
	assert.Equal(t, Done, s.State())
	assert.True(t, s.State().Terminal())
}

func TestSession_IllegalTransitionsPanic(t *testing.T) {
	tests := []struct {
		from, to State
	}{
		{Idle, Finalizing},
		{Idle, Done},
		{Decoding, Done},
		{Done, Decoding},
		{Failed, Decoding},
		{Aborted, Done},
		{Finalizing, Aborted},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			s := &Session{state: tt.from, logger: DefaultSLogger()}
			assert.Panics(t, func() { s.transition(tt.to) })
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "finalizing", Finalizing.String())
	assert.Equal(t, "State(42)", State(42).String())
	assert.False(t, Decoding.Terminal())
}

func TestClassify(t *testing.T) {
	_, pathErr := os.Open("/definitely/not/here")
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{pathErr, ClassIO},
		{fmt.Errorf("wrap: %w", stdf.ErrTruncated), ClassCorrupt},
		{stdf.ErrNotSTDF, ClassFormat},
		{stdf.ErrUnsupportedVersion, ClassFormat},
		{fmt.Errorf("%w: %w", ErrOutput, pathErr), ClassOutput},
		{errors.New("other"), ClassInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), "%v", tt.err)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(Options{})
	a := r.Create()
	b := r.Create()
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, r.Len())

	c, ok := r.Get(a)
	require.True(t, ok)
	assert.Equal(t, int32(0), c.GetFinishT())

	assert.True(t, r.Delete(a))
	assert.False(t, r.Delete(a))
	_, ok = r.Get(a)
	assert.False(t, ok)
	_, ok = r.Get(ksuid.New())
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestDecodeWide(t *testing.T) {
	assert.Equal(t, "C:\\lot\\ä.stdf", DecodeUTF16([]uint16{'C', ':', '\\', 'l', 'o', 't', '\\', 0xe4, '.', 's', 't', 'd', 'f', 0, 'x'}))
	assert.Equal(t, "😀", DecodeUTF16([]uint16{0xd83d, 0xde00}))
	assert.Equal(t, "\uFFFD", DecodeUTF16([]uint16{0xd83d}))
	assert.Equal(t, "", DecodeUTF16(nil))

	assert.Equal(t, "/lot/😀", DecodeUTF32([]uint32{'/', 'l', 'o', 't', '/', 0x1f600, 0, 'x'}))
	assert.Equal(t, "\uFFFD", DecodeUTF32([]uint32{0x110000}))
	assert.Equal(t, "\uFFFD", DecodeUTF32([]uint32{0xd800}))
}
