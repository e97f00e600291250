/*
DESCRIPTION
  input.go provides Source, an interface that describes a configurable source
  of compressed video that can be started and stopped, from which the
  bitstream may be read.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package input provides an interface and implementations for sources of
// compressed video that can be started and stopped.
package input

import (
	"io"

	"github.com/ausocean/hwdec/config"
)

// Source describes a configurable source of compressed video.
type Source interface {
	// Source implements io.Reader. Read returns io.EOF at the end of the
	// stream.
	io.Reader

	// Name returns the name of the Source.
	Name() string

	// Set allows for configuration of the Source using a Config struct. All,
	// some or none of the fields of the Config struct may be used for
	// configuration by an implementation.
	Set(c config.Config) error

	// Start will start the Source. After a successful call to Start, Read
	// will return data from the Source.
	Start() error

	// Stop will stop the Source. Read calls after Stop fail.
	Stop() error

	// IsRunning is used to determine if the Source is running.
	IsRunning() bool
}
