package docling

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the image processing policy of the preprocessor.
type Config struct {
	// TileSize is the edge of one square vision-encoder tile.
	TileSize int
	// LongestEdge is the size the longest image side is scaled to before tiling.
	LongestEdge int
	// ImageSeqLen is the number of image tokens emitted per tile.
	ImageSeqLen int
	// DefaultInstruction replaces an empty instruction in a user turn.
	DefaultInstruction string
}

// DefaultConfig matches granite-docling-258M.
func DefaultConfig() Config {
	return Config{
		TileSize:           512,
		LongestEdge:        2048,
		ImageSeqLen:        64,
		DefaultInstruction: "Convert this page to docling.",
	}
}

type edgeSize struct {
	LongestEdge *int `json:"longest_edge"`
}

type preprocessorJSON struct {
	Size         *edgeSize `json:"size"`
	MaxImageSize *edgeSize `json:"max_image_size"`
}

type processorJSON struct {
	ImageSeqLen *int `json:"image_seq_len"`
}

// LoadConfig starts from DefaultConfig and applies overrides found in
// preprocessor_config.json and processor_config.json under dir. Missing
// files are not an error. do_image_splitting is not read; callers choose
// tiling per Pack call.
func LoadConfig(dir string) (Config, error) {
	cfg := DefaultConfig()
	var pre preprocessorJSON
	if ok, err := readJSON(filepath.Join(dir, "preprocessor_config.json"), &pre); err != nil {
		return cfg, err
	} else if ok {
		if pre.Size != nil && pre.Size.LongestEdge != nil && *pre.Size.LongestEdge > 0 {
			cfg.LongestEdge = *pre.Size.LongestEdge
		}
		if pre.MaxImageSize != nil && pre.MaxImageSize.LongestEdge != nil && *pre.MaxImageSize.LongestEdge > 0 {
			cfg.TileSize = *pre.MaxImageSize.LongestEdge
		}
	}
	var proc processorJSON
	if ok, err := readJSON(filepath.Join(dir, "processor_config.json"), &proc); err != nil {
		return cfg, err
	} else if ok && proc.ImageSeqLen != nil && *proc.ImageSeqLen > 0 {
		cfg.ImageSeqLen = *proc.ImageSeqLen
	}
	return cfg, nil
}

func readJSON(path string, v any) (bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return true, nil
}
