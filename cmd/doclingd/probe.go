package main

import (
	"encoding/json"
	"io"
	"os/exec"

	"github.com/spf13/cobra"

	"doclingd/internal/backend"
	"doclingd/internal/config"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Print the selected compute backend, runtime check and host summary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return probe(cmd.OutOrStdout(), cfg, backend.Summarize)
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

type probeReport struct {
	Device  string              `json:"device"`
	Backend string              `json:"backend"`
	Runtime runtimeReport       `json:"runtime"`
	GPU     *bool               `json:"gpu_detected,omitempty"`
	Error   string              `json:"probe_error,omitempty"`
	Host    backend.HostSummary `json:"host"`
}

// runtimeReport says whether the configured inference runtime can be reached
// or spawned. It does not start anything.
type runtimeReport struct {
	Device string `json:"device"`
	URL    string `json:"url,omitempty"`
	Bin    string `json:"bin,omitempty"`
	Found  bool   `json:"found"`
	Error  string `json:"error,omitempty"`
}

func checkRuntime(url, bin string) runtimeReport {
	r := runtimeReport{URL: url}
	switch {
	case url != "":
		r.Found = true
	case bin != "":
		path, err := exec.LookPath(bin)
		r.Bin = bin
		if err != nil {
			r.Error = err.Error()
			return r
		}
		r.Bin = path
		r.Found = true
	default:
		r.Error = "no runtime configured: set runtime_url or runtime_bin"
	}
	return r
}

func probe(w io.Writer, cfg config.Config, summarize func() backend.HostSummary) error {
	mode, err := backend.ParseMode(cfg.Device, detectGPU)
	if err != nil {
		return err
	}
	rep := probeReport{Device: cfg.Device}
	// record the raw detection outcome next to the selection
	be := backend.Select(func() (bool, error) {
		ok, err := mode()
		if err != nil {
			rep.Error = err.Error()
		}
		rep.GPU = &ok
		return ok, err
	})
	rep.Backend = be.String()
	rep.Runtime = checkRuntime(cfg.RuntimeURL, cfg.RuntimeBin)
	rep.Runtime.Device = be.Device()
	rep.Host = summarize()
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
