/*
DESCRIPTION
  variables.go contains a list of structs that provide a variable Name, type in
  a string format, a function for updating the variable in the Config struct
  from a string, and finally, a validation function to check the validity of the
  corresponding field value in the Config.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/hwdec/codec/av1"
	"github.com/ausocean/hwdec/codec/codecutil"
	"github.com/ausocean/hwdec/codec/h264"
	"github.com/ausocean/hwdec/codec/h265"
)

// Config map Keys.
const (
	KeyAV1QueueDepth   = "AV1QueueDepth"
	KeyChunkSize       = "ChunkSize"
	KeyCodec           = "Codec"
	KeyH264DPBSize     = "H264DPBSize"
	KeyH265DPBSize     = "H265DPBSize"
	KeyHeight          = "Height"
	KeyInputContainer  = "InputContainer"
	KeyInputPath       = "InputPath"
	KeyLogging         = "logging"
	KeyOutputPath      = "OutputPath"
	KeyPoolCapacity    = "PoolCapacity"
	KeyPoolElementSize = "PoolElementSize"
	KeyPoolReadTimeout = "PoolReadTimeout"
	KeySuppress        = "Suppress"
	KeyWidth           = "Width"
)

// Config map parameter types.
const (
	typeString = "string"
	typeUint   = "uint"
	typeBool   = "bool"
)

// Default variable values.
const (
	defaultCodec          = codecutil.H264
	defaultContainer      = ContainerRaw
	defaultVerbosity      = logging.Error
	defaultChunkSize      = 4096 // bytes
	defaultAV1QueueDepth  = av1.DefaultQueueDepth
	defaultH264DPBSize    = h264.DefaultDPBSize
	defaultH265DPBSize    = h265.DefaultDPBSize
	defaultPoolCapacity   = 50000000 // => 50MB
	defaultPoolElemSize   = 1000     // bytes
	defaultPoolReadTimout = 5        // Seconds.
)

// Variables describes the variables that can be used for hwdec control.
// These structs provide the name and type of variable, a function for updating
// this variable in a Config, and a function for validating the value of the variable.
var Variables = []struct {
	Name     string
	Type     string
	Update   func(*Config, string)
	Validate func(*Config)
}{
	{
		Name:   KeyAV1QueueDepth,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.AV1QueueDepth = parseUint(KeyAV1QueueDepth, v, c) },
		Validate: func(c *Config) {
			c.AV1QueueDepth = lessThanOrEqual(KeyAV1QueueDepth, c.AV1QueueDepth, 0, c, defaultAV1QueueDepth)
		},
	},
	{
		Name:   KeyChunkSize,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.ChunkSize = parseUint(KeyChunkSize, v, c) },
		Validate: func(c *Config) {
			c.ChunkSize = lessThanOrEqual(KeyChunkSize, c.ChunkSize, 0, c, defaultChunkSize)
		},
	},
	{
		Name: KeyCodec,
		Type: "enum:mpeg2,h264,h265,av1",
		Update: func(c *Config, v string) {
			c.Codec = strings.ToLower(v)
		},
		Validate: func(c *Config) {
			if !codecutil.IsValid(c.Codec) {
				c.LogInvalidField(KeyCodec, defaultCodec)
				c.Codec = defaultCodec
			}
		},
	},
	{
		Name:   KeyH264DPBSize,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.H264DPBSize = parseUint(KeyH264DPBSize, v, c) },
		Validate: func(c *Config) {
			c.H264DPBSize = lessThanOrEqual(KeyH264DPBSize, c.H264DPBSize, 0, c, defaultH264DPBSize)
		},
	},
	{
		Name:   KeyH265DPBSize,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.H265DPBSize = parseUint(KeyH265DPBSize, v, c) },
		Validate: func(c *Config) {
			c.H265DPBSize = lessThanOrEqual(KeyH265DPBSize, c.H265DPBSize, 0, c, defaultH265DPBSize)
		},
	},
	{
		Name:   KeyHeight,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.Height = parseUint(KeyHeight, v, c) },
	},
	{
		Name: KeyInputContainer,
		Type: "enum:raw,mts",
		Update: func(c *Config, v string) {
			c.InputContainer = parseEnum(
				KeyInputContainer,
				v,
				map[string]uint8{
					"raw": ContainerRaw,
					"mts": ContainerMTS,
				},
				c,
			)
		},
		Validate: func(c *Config) {
			switch c.InputContainer {
			case ContainerRaw, ContainerMTS:
			default:
				c.LogInvalidField(KeyInputContainer, defaultContainer)
				c.InputContainer = defaultContainer
			}
		},
	},
	{
		Name:   KeyInputPath,
		Type:   typeString,
		Update: func(c *Config, v string) { c.InputPath = v },
	},
	{
		Name: KeyLogging,
		Type: "enum:Debug,Info,Warning,Error,Fatal",
		Update: func(c *Config, v string) {
			switch v {
			case "Debug":
				c.LogLevel = logging.Debug
			case "Info":
				c.LogLevel = logging.Info
			case "Warning":
				c.LogLevel = logging.Warning
			case "Error":
				c.LogLevel = logging.Error
			case "Fatal":
				c.LogLevel = logging.Fatal
			default:
				c.Logger.Warning("invalid Logging param", "value", v)
			}
		},
		Validate: func(c *Config) {
			switch c.LogLevel {
			case logging.Debug, logging.Info, logging.Warning, logging.Error, logging.Fatal:
			default:
				c.LogInvalidField("LogLevel", defaultVerbosity)
				c.LogLevel = defaultVerbosity
			}
		},
	},
	{
		Name:   KeyOutputPath,
		Type:   typeString,
		Update: func(c *Config, v string) { c.OutputPath = v },
	},
	{
		Name:   KeyPoolCapacity,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.PoolCapacity = parseUint(KeyPoolCapacity, v, c) },
		Validate: func(c *Config) {
			c.PoolCapacity = lessThanOrEqual(KeyPoolCapacity, c.PoolCapacity, 0, c, defaultPoolCapacity)
		},
	},
	{
		Name:   KeyPoolElementSize,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.PoolElementSize = parseUint(KeyPoolElementSize, v, c) },
		Validate: func(c *Config) {
			c.PoolElementSize = lessThanOrEqual(KeyPoolElementSize, c.PoolElementSize, 0, c, defaultPoolElemSize)
		},
	},
	{
		Name:   KeyPoolReadTimeout,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.PoolReadTimeout = parseUint(KeyPoolReadTimeout, v, c) },
		Validate: func(c *Config) {
			c.PoolReadTimeout = lessThanOrEqual(KeyPoolReadTimeout, c.PoolReadTimeout, 0, c, defaultPoolReadTimout)
		},
	},
	{
		Name:   KeySuppress,
		Type:   typeBool,
		Update: func(c *Config, v string) { c.Suppress = parseBool(KeySuppress, v, c) },
	},
	{
		Name:   KeyWidth,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.Width = parseUint(KeyWidth, v, c) },
	},
}

func parseUint(n, v string, c *Config) uint {
	_v, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		c.Logger.Warning(fmt.Sprintf("expected unsigned int for param %s", n), "value", v)
	}
	return uint(_v)
}

func parseBool(n, v string, c *Config) (b bool) {
	switch strings.ToLower(v) {
	case "true":
		b = true
	case "false":
		b = false
	default:
		c.Logger.Warning(fmt.Sprintf("expect bool for param %s", n), "value", v)
	}
	return
}

func parseEnum(n, v string, enums map[string]uint8, c *Config) uint8 {
	_v, ok := enums[strings.ToLower(v)]
	if !ok {
		c.Logger.Warning(fmt.Sprintf("invalid value for %s param", n), "value", v)
	}
	return _v
}

func lessThanOrEqual(n string, v, cmp uint, c *Config, def uint) uint {
	if v <= cmp {
		c.LogInvalidField(n, def)
		return def
	}
	return v
}
