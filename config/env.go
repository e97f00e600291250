/*
DESCRIPTION
  env.go provides LoadEnv, which reads config variables from the environment
  into a map that may be given to Config.Update.

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
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// EnvPrefix is the prefix of hwdec environment variables, e.g. HWDEC_CODEC.
const EnvPrefix = "hwdec"

// env mirrors the Variables as environment variables. Values are kept as
// strings so that they are parsed and logged by the Variables Update funcs.
type env struct {
	AV1QueueDepth   string `envconfig:"AV1_QUEUE_DEPTH"`
	ChunkSize       string `envconfig:"CHUNK_SIZE"`
	Codec           string `envconfig:"CODEC"`
	H264DPBSize     string `envconfig:"H264_DPB_SIZE"`
	H265DPBSize     string `envconfig:"H265_DPB_SIZE"`
	Height          string `envconfig:"HEIGHT"`
	InputContainer  string `envconfig:"INPUT_CONTAINER"`
	InputPath       string `envconfig:"INPUT_PATH"`
	Logging         string `envconfig:"LOGGING"`
	OutputPath      string `envconfig:"OUTPUT_PATH"`
	PoolCapacity    string `envconfig:"POOL_CAPACITY"`
	PoolElementSize string `envconfig:"POOL_ELEMENT_SIZE"`
	PoolReadTimeout string `envconfig:"POOL_READ_TIMEOUT"`
	Suppress        string `envconfig:"SUPPRESS"`
	Width           string `envconfig:"WIDTH"`
}

// LoadEnv reads the environment variables with the given prefix and returns
// the values that are set, keyed by Variables name.
func LoadEnv(prefix string) (map[string]string, error) {
	var e env
	err := envconfig.Process(prefix, &e)
	if err != nil {
		return nil, errors.Wrap(err, "could not process environment")
	}

	vars := make(map[string]string)
	for _, kv := range []struct{ k, v string }{
		{KeyAV1QueueDepth, e.AV1QueueDepth},
		{KeyChunkSize, e.ChunkSize},
		{KeyCodec, e.Codec},
		{KeyH264DPBSize, e.H264DPBSize},
		{KeyH265DPBSize, e.H265DPBSize},
		{KeyHeight, e.Height},
		{KeyInputContainer, e.InputContainer},
		{KeyInputPath, e.InputPath},
		{KeyLogging, e.Logging},
		{KeyOutputPath, e.OutputPath},
		{KeyPoolCapacity, e.PoolCapacity},
		{KeyPoolElementSize, e.PoolElementSize},
		{KeyPoolReadTimeout, e.PoolReadTimeout},
		{KeySuppress, e.Suppress},
		{KeyWidth, e.Width},
	} {
		if kv.v != "" {
			vars[kv.k] = kv.v
		}
	}
	return vars, nil
}
