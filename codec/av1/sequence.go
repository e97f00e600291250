/*
DESCRIPTION
  sequence.go provides parsing of the AV1 sequence header OBU, section 5.5.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package av1

import (
	"fmt"

	"github.com/pkg/errors"
)

const (
	maxOperatingPoints = 32

	// selectScreenContentTools and selectIntegerMV mark the choice as made
	// per frame.
	selectScreenContentTools = 2
	selectIntegerMV          = 2
)

// Colour description values, see section 6.4.2.
const (
	cpBT709       = 1
	cpUnspecified = 2
	tcUnspecified = 2
	tcSRGB        = 13
	mcIdentity    = 0
	mcUnspecified = 2
)

// ErrInvalidProfile is returned for a sequence header with a reserved
// seq_profile.
var ErrInvalidProfile = errors.New("invalid seq_profile")

// ColorConfig is a color_config() structure.
type ColorConfig struct {
	BitDepth                int
	MonoChrome              bool
	NumPlanes               int
	ColorPrimaries          int
	TransferCharacteristics int
	MatrixCoefficients      int
	ColorRange              bool
	SubsamplingX            int
	SubsamplingY            int
	ChromaSamplePosition    int
	SeparateUVDeltaQ        bool
}

// SequenceHeader is a sequence_header_obu().
type SequenceHeader struct {
	Profile                   int
	StillPicture              bool
	ReducedStillPictureHeader bool

	TimingInfoPresent    bool
	EqualPictureInterval bool

	DecoderModelInfoPresent           bool
	BufferDelayLengthMinus1           int
	NumUnitsInDecodingTick            uint32
	BufferRemovalTimeLengthMinus1     int
	FramePresentationTimeLengthMinus1 int

	OperatingPointsCntMinus1     int
	OperatingPointIDC            [maxOperatingPoints]int
	SeqLevelIdx                  [maxOperatingPoints]int
	SeqTier                      [maxOperatingPoints]int
	DecoderModelPresentForThisOp [maxOperatingPoints]bool

	FrameWidthBitsMinus1  int
	FrameHeightBitsMinus1 int
	MaxFrameWidthMinus1   int
	MaxFrameHeightMinus1  int

	FrameIDNumbersPresent         bool
	DeltaFrameIDLengthMinus2      int
	AdditionalFrameIDLengthMinus1 int

	Use128x128Superblock     bool
	EnableFilterIntra        bool
	EnableIntraEdgeFilter    bool
	EnableInterintraCompound bool
	EnableMaskedCompound     bool
	EnableWarpedMotion       bool
	EnableDualFilter         bool
	EnableOrderHint          bool
	EnableJntComp            bool
	EnableRefFrameMVs        bool
	ForceScreenContentTools  int
	ForceIntegerMV           int
	OrderHintBits            int

	EnableSuperres    bool
	EnableCDEF        bool
	EnableRestoration bool

	Color ColorConfig

	FilmGrainParamsPresent bool
}

// MaxWidth returns the maximum frame width.
func (s *SequenceHeader) MaxWidth() int { return s.MaxFrameWidthMinus1 + 1 }

// MaxHeight returns the maximum frame height.
func (s *SequenceHeader) MaxHeight() int { return s.MaxFrameHeightMinus1 + 1 }

// idLen returns the length of frame ids in bits.
func (s *SequenceHeader) idLen() int {
	if !s.FrameIDNumbersPresent {
		return 0
	}
	return s.AdditionalFrameIDLengthMinus1 + s.DeltaFrameIDLengthMinus2 + 3
}

// parseSequenceHeader parses a sequence header OBU payload.
func parseSequenceHeader(r *reader) (*SequenceHeader, error) {
	s := &SequenceHeader{}
	s.Profile = r.f(3)
	if s.Profile > 2 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidProfile, s.Profile)
	}
	s.StillPicture = r.flag()
	s.ReducedStillPictureHeader = r.flag()

	if s.ReducedStillPictureHeader {
		s.SeqLevelIdx[0] = r.f(5)
	} else {
		s.TimingInfoPresent = r.flag()
		if s.TimingInfoPresent {
			r.f(32) // num_units_in_display_tick
			r.f(32) // time_scale
			s.EqualPictureInterval = r.flag()
			if s.EqualPictureInterval {
				r.uvlc() // num_ticks_per_picture_minus_1
			}
			s.DecoderModelInfoPresent = r.flag()
			if s.DecoderModelInfoPresent {
				s.BufferDelayLengthMinus1 = r.f(5)
				s.NumUnitsInDecodingTick = uint32(r.f(32))
				s.BufferRemovalTimeLengthMinus1 = r.f(5)
				s.FramePresentationTimeLengthMinus1 = r.f(5)
			}
		}

		initialDisplayDelayPresent := r.flag()
		s.OperatingPointsCntMinus1 = r.f(5)
		for i := 0; i <= s.OperatingPointsCntMinus1; i++ {
			s.OperatingPointIDC[i] = r.f(12)
			s.SeqLevelIdx[i] = r.f(5)
			if s.SeqLevelIdx[i] > 7 {
				s.SeqTier[i] = r.f(1)
			}
			if s.DecoderModelInfoPresent {
				s.DecoderModelPresentForThisOp[i] = r.flag()
				if s.DecoderModelPresentForThisOp[i] {
					n := s.BufferDelayLengthMinus1 + 1
					r.f(n) // decoder_buffer_delay
					r.f(n) // encoder_buffer_delay
					r.f(1) // low_delay_mode_flag
				}
			}
			if initialDisplayDelayPresent && r.flag() {
				r.f(4) // initial_display_delay_minus_1
			}
		}
	}

	s.FrameWidthBitsMinus1 = r.f(4)
	s.FrameHeightBitsMinus1 = r.f(4)
	s.MaxFrameWidthMinus1 = r.f(s.FrameWidthBitsMinus1 + 1)
	s.MaxFrameHeightMinus1 = r.f(s.FrameHeightBitsMinus1 + 1)

	if !s.ReducedStillPictureHeader {
		s.FrameIDNumbersPresent = r.flag()
	}
	if s.FrameIDNumbersPresent {
		s.DeltaFrameIDLengthMinus2 = r.f(4)
		s.AdditionalFrameIDLengthMinus1 = r.f(3)
	}

	s.Use128x128Superblock = r.flag()
	s.EnableFilterIntra = r.flag()
	s.EnableIntraEdgeFilter = r.flag()

	if s.ReducedStillPictureHeader {
		s.ForceScreenContentTools = selectScreenContentTools
		s.ForceIntegerMV = selectIntegerMV
	} else {
		s.EnableInterintraCompound = r.flag()
		s.EnableMaskedCompound = r.flag()
		s.EnableWarpedMotion = r.flag()
		s.EnableDualFilter = r.flag()
		s.EnableOrderHint = r.flag()
		if s.EnableOrderHint {
			s.EnableJntComp = r.flag()
			s.EnableRefFrameMVs = r.flag()
		}

		s.ForceScreenContentTools = selectScreenContentTools
		if !r.flag() { // seq_choose_screen_content_tools
			s.ForceScreenContentTools = r.f(1)
		}
		s.ForceIntegerMV = selectIntegerMV
		if s.ForceScreenContentTools > 0 && !r.flag() { // seq_choose_integer_mv
			s.ForceIntegerMV = r.f(1)
		}

		if s.EnableOrderHint {
			s.OrderHintBits = r.f(3) + 1
		}
	}

	s.EnableSuperres = r.flag()
	s.EnableCDEF = r.flag()
	s.EnableRestoration = r.flag()
	s.Color = colorConfig(r, s.Profile)
	s.FilmGrainParamsPresent = r.flag()

	if r.br.Err() != nil {
		return nil, errors.Wrap(r.br.Err(), "could not read sequence header")
	}
	return s, nil
}

// colorConfig parses a color_config() for a sequence of the given profile.
func colorConfig(r *reader, profile int) ColorConfig {
	var c ColorConfig
	highBitDepth := r.flag()
	switch {
	case profile == 2 && highBitDepth:
		c.BitDepth = 10
		if r.flag() { // twelve_bit
			c.BitDepth = 12
		}
	case highBitDepth:
		c.BitDepth = 10
	default:
		c.BitDepth = 8
	}

	if profile != 1 {
		c.MonoChrome = r.flag()
	}
	c.NumPlanes = 3
	if c.MonoChrome {
		c.NumPlanes = 1
	}

	c.ColorPrimaries, c.TransferCharacteristics, c.MatrixCoefficients = cpUnspecified, tcUnspecified, mcUnspecified
	if r.flag() { // color_description_present_flag
		c.ColorPrimaries = r.f(8)
		c.TransferCharacteristics = r.f(8)
		c.MatrixCoefficients = r.f(8)
	}

	switch {
	case c.MonoChrome:
		c.ColorRange = r.flag()
		c.SubsamplingX, c.SubsamplingY = 1, 1
		return c
	case c.ColorPrimaries == cpBT709 && c.TransferCharacteristics == tcSRGB && c.MatrixCoefficients == mcIdentity:
		c.ColorRange = true
	default:
		c.ColorRange = r.flag()
		switch {
		case profile == 0:
			c.SubsamplingX, c.SubsamplingY = 1, 1
		case profile == 1:
		case c.BitDepth == 12:
			c.SubsamplingX = r.f(1)
			if c.SubsamplingX == 1 {
				c.SubsamplingY = r.f(1)
			}
		default:
			c.SubsamplingX = 1
		}
		if c.SubsamplingX == 1 && c.SubsamplingY == 1 {
			c.ChromaSamplePosition = r.f(2)
		}
	}
	c.SeparateUVDeltaQ = r.flag()
	return c
}
