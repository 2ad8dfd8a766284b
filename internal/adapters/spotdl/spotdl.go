package spotdl

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jaa/soundgrab/internal/cmdline"
	"github.com/jaa/soundgrab/internal/config"
	"github.com/jaa/soundgrab/internal/engine"
)

// OutputTemplate is spotdl's naming template; spotdl substitutes the
// placeholders itself.
const OutputTemplate = "{artist}/{album}/{track-number} - {title}.{output-ext}"

type Adapter struct {
	bin       string
	extraArgs []string
}

func New(tools config.Tools) *Adapter {
	bin := strings.TrimSpace(tools.SpotDLBin)
	if bin == "" {
		bin = "spotdl"
	}
	return &Adapter{bin: bin, extraArgs: append([]string{}, tools.SpotDLExtraArgs...)}
}

func (a *Adapter) Kind() string {
	return "spotdl"
}

func (a *Adapter) Binary() string {
	return a.bin
}

func (a *Adapter) MinVersion() string {
	return "4.0.0"
}

func (a *Adapter) BuildExecSpec(req engine.ExecRequest) (engine.ExecSpec, error) {
	if strings.TrimSpace(req.OutputDir) == "" {
		return engine.ExecSpec{}, fmt.Errorf("spotdl: output directory is required")
	}

	output := filepath.ToSlash(req.OutputDir) + "/" + OutputTemplate

	args := append([]string{}, a.extraArgs...)
	args = append(args, "--output", output, "--", req.Link)
	displayArgs := append([]string{}, a.extraArgs...)
	displayArgs = append(displayArgs, "--output", output, "--", cmdline.SanitizeURL(req.Link))

	return engine.ExecSpec{
		Bin:            a.bin,
		Args:           args,
		Dir:            req.OutputDir,
		Timeout:        req.Timeout,
		DisplayCommand: cmdline.Format(a.bin, displayArgs),
	}, nil
}
