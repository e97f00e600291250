/*
DESCRIPTION
  file.go provides an implementation of the Source interface for video files.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package file provides an implementation of input.Source for files.
package file

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/hwdec/config"
)

// Used to indicate package in logging.
const pkg = "file: "

// Source is an implementation of the input.Source interface for a file
// containing a video bitstream.
type Source struct {
	f         *os.File
	path      string
	isRunning bool
	log       logging.Logger
	set       bool
	mu        sync.Mutex
}

// New returns a new Source.
func New(l logging.Logger) *Source { return &Source{log: l} }

// NewWith returns a new Source for the file at path, i.e. the Set method does
// not need to be called.
func NewWith(l logging.Logger, path string) *Source {
	return &Source{log: l, path: path, set: true}
}

// Name returns the name of the Source.
func (s *Source) Name() string {
	return "File"
}

// Set takes the path of the file from the InputPath field of c.
func (s *Source) Set(c config.Config) error {
	if c.InputPath == "" {
		return config.ErrNoInput
	}
	s.mu.Lock()
	s.path = c.InputPath
	s.set = true
	s.mu.Unlock()
	return nil
}

// Start will open the file.
func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return errors.New("file source has not been set with config")
	}
	var err error
	s.f, err = os.Open(s.path)
	if err != nil {
		return fmt.Errorf("could not open video file: %w", err)
	}
	if fi, err := s.f.Stat(); err == nil {
		s.log.Debug(pkg+"opened video file", "path", s.path, "size", fi.Size())
	}
	s.isRunning = true
	return nil
}

// Stop will close the file such that any further reads will fail.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	if err != nil {
		return err
	}
	s.f = nil
	s.isRunning = false
	return nil
}

// Read implements io.Reader. If Start has not been called, or Start has been
// called and Stop has since been called, an error is returned.
func (s *Source) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return 0, errors.New("file source is closed, not started")
	}
	return s.f.Read(p)
}

// IsRunning is used to determine if the Source is running.
func (s *Source) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f != nil && s.isRunning
}
