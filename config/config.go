/*
NAME
  config.go

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package config contains the configuration settings for hwdec.
package config

import (
	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"
)

// Input containers.
const (
	// Indicates no option has been set.
	NothingDefined = iota

	// ContainerRaw is an elementary stream with no container.
	ContainerRaw

	// ContainerMTS is an MPEG-TS stream carrying the elementary stream.
	ContainerMTS
)

// ErrNoInput is returned by Validate when no input path is configured.
var ErrNoInput = errors.New("no input path")

// Config provides parameters relevant to a decode session. A new config must
// be passed to Validate before use so that defaults are applied to unset
// fields.
type Config struct {
	// Logger holds an implementation of the Logger interface as defined in
	// the utils logging package. This must be set for hwdec to work
	// correctly.
	Logger logging.Logger

	// LogLevel is the logging verbosity level.
	// Valid values are defined by enums from the logger package: logging.Debug,
	// logging.Info, logging.Warning logging.Error, logging.Fatal.
	LogLevel int8

	// Suppress holds logger suppression state.
	Suppress bool

	// Codec defines the codec of the input bitstream. Valid values are
	// defined in the codecutil package.
	Codec string

	// Width and Height are the port dimensions. They size the hardware codec
	// session for codecs that begin decoding before a sequence header gives
	// the coded size.
	Width  uint
	Height uint

	InputPath  string // Path of the input file.
	OutputPath string // Path decoded frames are written to. No output is written if empty.

	// InputContainer defines the container of the input. Valid values are
	// defined by the Container enums above.
	InputContainer uint8

	// ChunkSize is the size of the input buffers the input is divided into.
	// AV1 input is divided at temporal unit boundaries instead.
	ChunkSize uint

	AV1QueueDepth uint // Number of AV1 frames held before output.
	H264DPBSize   uint // Number of H.264 pictures held before output.
	H265DPBSize   uint // Number of H.265 pictures held before output.

	// PoolCapacity is the capacity in bytes of the ring buffer between the
	// input reader and the decoder.
	PoolCapacity uint

	// PoolElementSize is the initial element size of the ring buffer.
	PoolElementSize uint

	// PoolReadTimeout is the ring buffer read timeout in seconds.
	PoolReadTimeout uint
}

// Validate checks for any errors in the config fields and defaults settings
// if particular parameters have not been defined. ErrNoInput is returned if
// there is no input path; all other fields are defaulted.
func (c *Config) Validate() error {
	for _, v := range Variables {
		if v.Validate != nil {
			v.Validate(c)
		}
	}
	if c.InputPath == "" {
		return ErrNoInput
	}
	return nil
}

// Update takes a map of configuration variable names and their corresponding
// values, parses the string values and converting into correct type, and then
// sets the config struct fields as appropriate.
func (c *Config) Update(vars map[string]string) {
	for _, value := range Variables {
		if v, ok := vars[value.Name]; ok && value.Update != nil {
			value.Update(c, v)
		}
	}
}

func (c *Config) LogInvalidField(name string, def interface{}) {
	c.Logger.Info(name+" bad or unset, defaulting", name, def)
}
