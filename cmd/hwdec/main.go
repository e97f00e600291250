/*
DESCRIPTION
  hwdec decodes a video file through the decode pump and the simulated
  hardware device, optionally writing decoded NV12 frames to a file, and
  reports on the frames decoded.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package main provides hwdec, a command line hardware decoder front end.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/ausocean/utils/pool"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/hwdec/config"
	"github.com/ausocean/hwdec/container/mts"
	"github.com/ausocean/hwdec/decoder"
	"github.com/ausocean/hwdec/hw/sim"
	"github.com/ausocean/hwdec/input"
	"github.com/ausocean/hwdec/input/file"
)

// Current software version.
const version = "v0.1.0"

// Logging configuration.
const (
	logMaxSize   = 500 // MB
	logMaxBackup = 10
	logMaxAge    = 28 // days
	logVerbosity = logging.Info
	logSuppress  = false
)

// Used to indicate package in logging.
const pkg = "hwdec: "

// Output frame dimensions used when none are configured.
const (
	defaultWidth  = 1920
	defaultHeight = 1088
)

// flagKeys maps command line flags to the config variables they set.
var flagKeys = map[string]string{
	"codec":     config.KeyCodec,
	"in":        config.KeyInputPath,
	"out":       config.KeyOutputPath,
	"container": config.KeyInputContainer,
	"chunk":     config.KeyChunkSize,
	"width":     config.KeyWidth,
	"height":    config.KeyHeight,
	"loglevel":  config.KeyLogging,
}

func main() {
	showVersion := flag.Bool("version", false, "show version")
	flag.String("codec", "", "codec of the input: mpeg2, h264, h265 or av1")
	flag.String("in", "", "input file path")
	flag.String("out", "", "file to write decoded NV12 frames to")
	flag.String("container", "", "input container: raw or mts")
	flag.Uint("chunk", 0, "input buffer size in bytes")
	flag.Uint("width", 0, "frame width used before a sequence header is seen")
	flag.Uint("height", 0, "frame height used before a sequence header is seen")
	logPath := flag.String("log", "hwdec.log", "log file path")
	flag.String("loglevel", "", "log verbosity: Debug, Info, Warning, Error or Fatal")
	flag.Parse()
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Environment variables are overridden by flags given on the command line.
	vars, err := config.LoadEnv(config.EnvPrefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load environment: %v\n", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		if k, ok := flagKeys[f.Name]; ok {
			vars[k] = f.Value.String()
		}
	})

	// Create lumberjack logger to handle logging to file.
	fileLog := &lumberjack.Logger{
		Filename:   *logPath,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	w := io.MultiWriter(os.Stderr, fileLog)
	log := logging.New(logVerbosity, w, logSuppress)

	cfg := config.Config{Logger: log}
	cfg.Update(vars)
	err = cfg.Validate()
	if err != nil {
		log.Fatal(pkg+"invalid config", "error", err.Error())
	}
	if cfg.Suppress != logSuppress {
		log = logging.New(cfg.LogLevel, w, cfg.Suppress)
		cfg.Logger = log
	}
	log.SetLevel(cfg.LogLevel)
	log.Info(pkg+"starting hwdec", "version", version, "codec", cfg.Codec, "input", cfg.InputPath)

	err = run(cfg)
	if err != nil {
		log.Fatal(pkg+"decode failed", "error", err.Error())
	}
}

// run decodes the input given by c.
func run(c config.Config) error {
	var src input.Source = file.New(c.Logger)
	err := src.Set(c)
	if err != nil {
		return fmt.Errorf("could not set input: %w", err)
	}
	err = src.Start()
	if err != nil {
		return fmt.Errorf("could not start input: %w", err)
	}
	defer src.Stop()

	var out io.Writer
	if c.OutputPath != "" {
		f, err := os.Create(c.OutputPath)
		if err != nil {
			return fmt.Errorf("could not create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	w, h := int(c.Width), int(c.Height)
	if w == 0 || h == 0 {
		w, h = defaultWidth, defaultHeight
	}
	cl := &client{log: c.Logger, w: out, outSize: w * h * 3 / 2}

	dev := sim.New()
	d, err := decoder.New(c, dev, cl)
	if err != nil {
		return fmt.Errorf("could not create decoder: %w", err)
	}

	elemSize := int(max(c.PoolElementSize, c.ChunkSize))
	rb := pool.NewBuffer(int(c.PoolCapacity)/elemSize, elemSize, time.Duration(c.PoolReadTimeout)*time.Second)
	errc := make(chan error, 1)
	go read(c, src, rb, elemSize, errc)

	f := newFeeder(c, d, cl)
	err = f.drain(rb, time.Duration(c.PoolReadTimeout)*time.Second)
	if err == nil {
		err = <-errc
	}
	if err != nil {
		f.close()
		return err
	}

	err = f.finish()
	f.close()
	if err != nil {
		return err
	}
	if cl.err != nil {
		return fmt.Errorf("could not write frames: %w", cl.err)
	}

	n, mean, std := frameStats(dev)
	c.Logger.Info(pkg+"decode complete", "delivered", cl.frames, "decoded", n, "meanBytes", mean, "stdDevBytes", std, "failures", f.failures)
	return nil
}

// read reads the input from src into rb, in elements of at most elemSize bytes,
// demultiplexing it first if it is MPEG-TS. rb is closed at the end of the
// input, and the outcome is sent on errc.
func read(c config.Config, src input.Source, rb *pool.Buffer, elemSize int, errc chan<- error) {
	defer rb.Close()

	var dmx *mts.Demuxer
	if c.InputContainer == config.ContainerMTS {
		var err error
		dmx, err = mts.NewDemuxer(c.Logger, c.Codec)
		if err != nil {
			errc <- err
			return
		}
	}

	buf := make([]byte, c.ChunkSize)
	var es []byte
	for {
		n, err := src.Read(buf)
		if n > 0 {
			data := buf[:n]
			if dmx != nil {
				var derr error
				es, derr = dmx.Demux(es[:0], data)
				if derr != nil {
					errc <- fmt.Errorf("could not demux input: %w", derr)
					return
				}
				c.Logger.Debug(pkg+"demuxed input", "read", n, "media", len(es), "pts", dmx.PTS())
				data = es
			}
			write(c.Logger, rb, data, elemSize)
		}

		switch err {
		case nil:
		case io.EOF:
			if dmx != nil {
				err = dmx.Close()
			}
			if err == io.EOF {
				err = nil
			}
			errc <- err
			return
		default:
			errc <- fmt.Errorf("could not read input: %w", err)
			return
		}
	}
}

// write writes p to rb as elements of at most elemSize bytes.
func write(log logging.Logger, rb *pool.Buffer, p []byte, elemSize int) {
	for len(p) > 0 {
		n := min(len(p), elemSize)
		_, err := rb.Write(p[:n])
		switch err {
		case nil:
		case pool.ErrDropped:
			log.Warning(pkg + "dropped input")
		default:
			log.Error(pkg+"unexpected pool buffer error", "error", err.Error())
		}
		rb.Flush()
		p = p[n:]
	}
}
