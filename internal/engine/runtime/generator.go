package runtime

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"doclingd/internal/engine"
)

// Generator streams completions from a runtime over HTTP.
type Generator struct {
	baseURL string
	client  *http.Client
	proc    *process
	log     zerolog.Logger
}

var _ engine.Generator = (*Generator)(nil)

// completionRequest is the body POSTed to /completion.
type completionRequest struct {
	Prompt   string   `json:"prompt"`
	Images   []string `json:"images"`
	Rows     int      `json:"rows"`
	Cols     int      `json:"cols"`
	NPredict int      `json:"n_predict"`
	Stream   bool     `json:"stream"`
	Special  bool     `json:"special"`
}

// streamChunk covers the native {"content","stop"} form and the
// OpenAI-compatible choices[].delta form.
type streamChunk struct {
	Content string `json:"content"`
	Stop    bool   `json:"stop"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (c streamChunk) fragment() (string, bool) {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content, c.Choices[0].FinishReason != ""
	}
	return c.Content, c.Stop
}

// Generate posts p and calls onToken with each streamed fragment.
func (g *Generator) Generate(ctx context.Context, p *engine.Payload, maxNewTokens int, onToken func(string) error) error {
	if p == nil {
		return errors.New("nil payload")
	}
	images := make([]string, 0, len(p.Tiles))
	for _, tile := range p.Tiles {
		var buf bytes.Buffer
		if err := png.Encode(&buf, tile); err != nil {
			return fmt.Errorf("encode tile: %w", err)
		}
		images = append(images, base64.StdEncoding.EncodeToString(buf.Bytes()))
	}
	body, err := json.Marshal(completionRequest{
		Prompt:   p.Expanded,
		Images:   images,
		Rows:     p.Rows,
		Cols:     p.Cols,
		NPredict: maxNewTokens,
		Stream:   true,
		Special:  true,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/completion", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	resp, err := g.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("runtime http error: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}

	r := bufio.NewReader(resp.Body)
	for {
		line, err := r.ReadString('\n')
		if l := strings.TrimSpace(line); l != "" {
			data, ok := strings.CutPrefix(l, "data:")
			if !ok {
				// raw NDJSON servers omit the SSE prefix
				data = l
			}
			data = strings.TrimSpace(data)
			if data == "[DONE]" {
				return nil
			}
			var chunk streamChunk
			if jerr := json.Unmarshal([]byte(data), &chunk); jerr != nil {
				g.log.Debug().Str("line", l).Msg("unknown_stream_line")
			} else {
				frag, stop := chunk.fragment()
				if frag != "" {
					if cbErr := onToken(frag); cbErr != nil {
						return cbErr
					}
				}
				if stop {
					return nil
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}

// Close stops a spawned runtime. Connected runtimes are left running.
func (g *Generator) Close() error {
	if g.proc != nil {
		g.proc.Stop()
	}
	return nil
}
