package engine

import (
	"fmt"
	"sort"
	"strings"
)

// Component names a separately exported sub-graph of the model.
type Component string

const (
	EmbedTokens        Component = "embed_tokens"
	VisionEncoder      Component = "vision_encoder"
	DecoderModelMerged Component = "decoder_model_merged"
)

// Precision is the numeric format a component's weights are loaded in.
type Precision string

const (
	FP32  Precision = "fp32"
	FP16  Precision = "fp16"
	Q8    Precision = "q8"
	Int8  Precision = "int8"
	UInt8 Precision = "uint8"
	Q4    Precision = "q4"
	Q4F16 Precision = "q4f16"
	BNB4  Precision = "bnb4"
)

// fileSuffix follows the ONNX community export naming.
var fileSuffix = map[Precision]string{
	FP32:  "",
	FP16:  "_fp16",
	Q8:    "_quantized",
	Int8:  "_int8",
	UInt8: "_uint8",
	Q4:    "_q4",
	Q4F16: "_q4f16",
	BNB4:  "_bnb4",
}

// PrecisionTable maps each component to its precision.
type PrecisionTable map[Component]Precision

// DefaultPrecision is the fixed policy: half precision token embeddings and
// full precision vision encoder and decoder. A 4-bit decoder is smaller but
// degenerates into repetitive output.
func DefaultPrecision() PrecisionTable {
	return PrecisionTable{
		EmbedTokens:        FP16,
		VisionEncoder:      FP32,
		DecoderModelMerged: FP32,
	}
}

// ShardSuffix marks the large external-data weight files.
const ShardSuffix = ".onnx_data"

// IsShard reports whether name is a large binary weight shard.
func IsShard(name string) bool { return strings.HasSuffix(name, ShardSuffix) }

// MetadataFiles are fetched alongside the weights; they never count toward
// download progress.
var MetadataFiles = []string{
	"config.json",
	"generation_config.json",
	"preprocessor_config.json",
	"processor_config.json",
	"special_tokens_map.json",
	"tokenizer.json",
	"tokenizer_config.json",
}

// Validate checks every precision is known.
func (t PrecisionTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("empty precision table")
	}
	for c, p := range t {
		if _, ok := fileSuffix[p]; !ok {
			return fmt.Errorf("component %s: unknown precision %q", c, p)
		}
	}
	return nil
}

// String renders the table as component=precision pairs sorted by component.
func (t PrecisionTable) String() string {
	pairs := make([]string, 0, len(t))
	for _, c := range t.components() {
		pairs = append(pairs, string(c)+"="+string(t[c]))
	}
	return strings.Join(pairs, ",")
}

// ParsePrecisionTable parses "component=precision,..." as produced by String.
func ParsePrecisionTable(s string) (PrecisionTable, error) {
	t := PrecisionTable{}
	for _, kv := range strings.Split(s, ",") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("invalid precision entry %q", kv)
		}
		t[Component(strings.TrimSpace(k))] = Precision(strings.TrimSpace(v))
	}
	return t, t.Validate()
}

func (t PrecisionTable) components() []Component {
	cs := make([]Component, 0, len(t))
	for c := range t {
		cs = append(cs, c)
	}
	sort.Slice(cs, func(i, j int) bool { return cs[i] < cs[j] })
	return cs
}

// Manifest lists every file needed to load a model exported with table:
// metadata first, then for each component its graph and weight shard.
func Manifest(t PrecisionTable) []string {
	files := append([]string(nil), MetadataFiles...)
	for _, c := range t.components() {
		base := "onnx/" + string(c) + fileSuffix[t[c]]
		files = append(files, base+".onnx", base+ShardSuffix)
	}
	return files
}

// CountShards returns how many entries of files are weight shards.
func CountShards(files []string) int {
	n := 0
	for _, f := range files {
		if IsShard(f) {
			n++
		}
	}
	return n
}

// ParseWeightFile reports the component and precision encoded in a weight
// file name such as "onnx/embed_tokens_fp16.onnx_data".
func ParseWeightFile(name string) (Component, Precision, bool) {
	base := name[strings.LastIndex(name, "/")+1:]
	switch {
	case strings.HasSuffix(base, ShardSuffix):
		base = strings.TrimSuffix(base, ShardSuffix)
	case strings.HasSuffix(base, ".onnx"):
		base = strings.TrimSuffix(base, ".onnx")
	default:
		return "", "", false
	}
	for _, c := range []Component{EmbedTokens, VisionEncoder, DecoderModelMerged} {
		rest, ok := strings.CutPrefix(base, string(c))
		if !ok {
			continue
		}
		for p, suffix := range fileSuffix {
			if rest == suffix {
				return c, p, true
			}
		}
	}
	return "", "", false
}
