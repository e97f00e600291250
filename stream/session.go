/*
DESCRIPTION
  session.go provides Session, the decode state shared between the decode
  pump and a codec parser: the hardware session, the current target picture,
  the frame started and finished flags and any pending slice data.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package stream

import (
	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"

	"github.com/ausocean/hwdec/codec/bits"
	"github.com/ausocean/hwdec/hw"
)

// Used to indicate package in logging.
const pkg = "stream: "

// Session holds the state of one decode session.
type Session struct {
	Device hw.Device
	Log    logging.Logger

	// Width and Height are the port dimensions, used for codec sessions
	// created before a sequence header has given the coded size.
	Width  int
	Height int

	// Codec is created lazily when the first frame begins.
	Codec hw.Codec

	// Target is the picture currently being decoded into.
	Target hw.Buffer

	// Picture holds the decode parameters of the frame in Target.
	Picture hw.Picture

	FrameStarted  bool
	FrameFinished bool

	// In is the input buffer currently being consumed.
	In *Buffer

	slice     bool
	sliceFrom int
	err       error
}

// NewSession returns a new Session decoding with dev.
func NewSession(dev hw.Device, log logging.Logger, width, height int) *Session {
	return &Session{Device: dev, Log: log, Width: width, Height: height}
}

// CreateCodec creates the hardware codec session from t if one does not yet
// exist.
func (s *Session) CreateCodec(t hw.CodecTemplate) error {
	if s.Codec != nil {
		return nil
	}
	if t.Width == 0 || t.Height == 0 {
		t.Width, t.Height = s.Width, s.Height
	}
	c, err := s.Device.CreateCodec(t)
	if err != nil {
		return s.Fail(errors.Wrap(err, "could not create codec"))
	}
	s.Log.Debug(pkg+"created codec", "profile", t.Profile.String(), "width", t.Width, "height", t.Height)
	s.Codec = c
	return nil
}

// NeedTarget allocates a target picture if there is none.
func (s *Session) NeedTarget() error {
	if s.Target != nil {
		return nil
	}
	b, err := s.Device.CreateBuffer(hw.BufferTemplate{
		Width:  s.Width,
		Height: s.Height,
		Format: s.Device.PreferredFormat(),
	})
	if err != nil {
		return s.Fail(errors.Wrap(err, "could not create target picture"))
	}
	s.Target = b
	return nil
}

// BeginFrame starts decoding pic into the target picture.
func (s *Session) BeginFrame(pic hw.Picture) error {
	if s.Codec == nil || s.Target == nil {
		return s.Fail(errors.New("frame begun without codec or target"))
	}
	s.Picture = pic
	err := s.Codec.BeginFrame(s.Target, pic)
	if err != nil {
		return s.Fail(errors.Wrap(err, "could not begin frame"))
	}
	s.FrameStarted = true
	return nil
}

// EndFrame completes decoding of the target picture.
func (s *Session) EndFrame() error {
	s.FrameStarted = false
	if s.Codec == nil || s.Target == nil {
		return nil
	}
	err := s.Codec.EndFrame(s.Target, s.Picture)
	if err != nil {
		return s.Fail(errors.Wrap(err, "could not end frame"))
	}
	return nil
}

// Decode submits data for the target picture.
func (s *Session) Decode(data ...[]byte) error {
	if s.Codec == nil || s.Target == nil {
		return s.Fail(errors.New("bitstream submitted without codec or target"))
	}
	err := s.Codec.DecodeBitstream(s.Target, s.Picture, data...)
	if err != nil {
		return s.Fail(errors.Wrap(err, "could not decode bitstream"))
	}
	return nil
}

// StartSlice marks the start of slice data at logical stream offset pos of the
// reader being parsed.
func (s *Session) StartSlice(pos int) {
	s.slice = true
	s.sliceFrom = pos
}

// SlicePending returns true if slice data has been started but not yet
// submitted.
func (s *Session) SlicePending() bool { return s.slice }

// ContinueSlice moves a pending slice to the start of a new reader, i.e. the
// remainder of the slice continues in the next input buffer.
func (s *Session) ContinueSlice() {
	if s.slice {
		s.sliceFrom = 0
	}
}

// SubmitSlice submits the pending slice data, from its start up to the current
// position of r, to the codec. The slice remains pending so that more of it
// may follow.
func (s *Session) SubmitSlice(r *bits.Reader) {
	if !s.slice {
		return
	}
	end := r.Pos()
	if end > s.sliceFrom {
		s.Decode(r.Bytes(s.sliceFrom, end))
	}
	s.sliceFrom = end
}

// EndSlice submits the pending slice data up to the current position of r and
// clears it.
func (s *Session) EndSlice(r *bits.Reader) {
	s.SubmitSlice(r)
	s.slice = false
}

// FillOutput downloads pic into out.
func (s *Session) FillOutput(pic hw.Buffer, out *Buffer) error {
	n, err := s.Device.Download(pic, out.Data)
	if err != nil {
		out.Filled = 0
		return s.Fail(errors.Wrap(err, "could not download picture"))
	}
	out.Filled = n
	return nil
}

// Fail records err as the session error if there is not one already and
// returns err. Parsers continue after a failure; the recorded error is
// reported by the decode pump.
func (s *Session) Fail(err error) error {
	if s.err == nil {
		s.err = err
	}
	s.Log.Error(pkg+"decode failure", "error", err.Error())
	return err
}

// TakeErr returns and clears the recorded session error.
func (s *Session) TakeErr() error {
	err := s.err
	s.err = nil
	return err
}

// Close destroys the target picture and the codec session.
func (s *Session) Close() {
	if s.Target != nil {
		s.Target.Destroy()
		s.Target = nil
	}
	if s.Codec != nil {
		s.Codec.Destroy()
		s.Codec = nil
	}
}
