/*
DESCRIPTION
  session_test.go provides testing for the shared decode session state.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package stream

import (
	"testing"

	"github.com/ausocean/utils/logging"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/ausocean/hwdec/codec/bits"
	"github.com/ausocean/hwdec/hw"
	"github.com/ausocean/hwdec/hw/sim"
)

type dumbLogger struct{}

func (dl *dumbLogger) Log(l int8, m string, a ...interface{})  {}
func (dl *dumbLogger) SetLevel(l int8)                         {}
func (dl *dumbLogger) Debug(msg string, args ...interface{})   {}
func (dl *dumbLogger) Info(msg string, args ...interface{})    {}
func (dl *dumbLogger) Warning(msg string, args ...interface{}) {}
func (dl *dumbLogger) Error(msg string, args ...interface{})   {}
func (dl *dumbLogger) Fatal(msg string, args ...interface{})   {}

type pic struct{}

func (pic) Profile() hw.Profile { return hw.ProfileH264High }

func TestSliceSubmission(t *testing.T) {
	dev := sim.New()
	s := NewSession(dev, (*logging.TestLogger)(t), 16, 16)
	if err := s.CreateCodec(hw.CodecTemplate{Profile: hw.ProfileH264High}); err != nil {
		t.Fatalf("could not create codec: %v", err)
	}
	if err := s.NeedTarget(); err != nil {
		t.Fatalf("could not create target: %v", err)
	}
	if err := s.BeginFrame(pic{}); err != nil {
		t.Fatalf("could not begin frame: %v", err)
	}

	// First reader holds the start of a slice at offset 2.
	r := bits.NewReader([]byte{0xaa, 0xbb, 0x01, 0x02, 0x03})
	s.StartSlice(2)
	r.EatBits(40)
	s.SubmitSlice(r)

	// The slice continues from the start of the next reader.
	r = bits.NewReader([]byte{0x04, 0x05, 0x00, 0x00, 0x01})
	s.ContinueSlice()
	r.EatBits(16)
	s.EndSlice(r)
	if s.SlicePending() {
		t.Errorf("slice still pending after EndSlice")
	}

	if err := s.EndFrame(); err != nil {
		t.Fatalf("could not end frame: %v", err)
	}

	c := dev.Codecs()[0]
	want := [][]byte{{0x01, 0x02, 0x03}, {0x04, 0x05}}
	if !cmp.Equal(c.Frames[0].Data, want) {
		t.Errorf("unexpected slice data\ngot: %v\nwant: %v", c.Frames[0].Data, want)
	}
	if s.TakeErr() != nil {
		t.Errorf("unexpected session error")
	}
}

func TestStickyError(t *testing.T) {
	dev := &sim.Device{MaxBuffers: 1}
	s := NewSession(dev, &dumbLogger{}, 8, 8)
	if err := s.NeedTarget(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Target = nil
	err := s.NeedTarget()
	if errors.Cause(err) != hw.ErrInsufficientResources {
		t.Fatalf("expected resource error, got: %v", err)
	}
	s.Fail(errors.New("second"))
	if got := s.TakeErr(); errors.Cause(got) != hw.ErrInsufficientResources {
		t.Errorf("first error not kept, got: %v", got)
	}
	if s.TakeErr() != nil {
		t.Errorf("error not cleared")
	}
}

func TestFillOutput(t *testing.T) {
	dev := sim.New()
	s := NewSession(dev, (*logging.TestLogger)(t), 2, 2)
	s.NeedTarget()
	out := NewBuffer(16)
	if err := s.FillOutput(s.Target, out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Filled != 6 {
		t.Errorf("unexpected filled length, got: %d, want: 6", out.Filled)
	}
}
