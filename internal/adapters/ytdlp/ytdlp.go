package ytdlp

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jaa/soundgrab/internal/cmdline"
	"github.com/jaa/soundgrab/internal/config"
	"github.com/jaa/soundgrab/internal/engine"
)

const OutputTemplate = "%(uploader)s/%(album)s/%(track_number)s - %(title)s.%(ext)s"

type Adapter struct {
	bin         string
	audioFormat string
	extraArgs   []string
}

func New(tools config.Tools) *Adapter {
	bin := strings.TrimSpace(tools.YTDLPBin)
	if bin == "" {
		bin = "yt-dlp"
	}
	format := strings.TrimSpace(tools.AudioFormat)
	if format == "" {
		format = "mp3"
	}
	return &Adapter{bin: bin, audioFormat: format, extraArgs: append([]string{}, tools.YTDLPExtraArgs...)}
}

func (a *Adapter) Kind() string {
	return "yt-dlp"
}

func (a *Adapter) Binary() string {
	return a.bin
}

func (a *Adapter) MinVersion() string {
	return "2024.1.0"
}

// MaxVersion is exclusive.
func (a *Adapter) MaxVersion() string {
	return "2027.0.0"
}

func (a *Adapter) BuildExecSpec(req engine.ExecRequest) (engine.ExecSpec, error) {
	if strings.TrimSpace(req.OutputDir) == "" {
		return engine.ExecSpec{}, fmt.Errorf("yt-dlp: output directory is required")
	}

	args := []string{}
	if !cmdline.ContainsArg(a.extraArgs, "-x", "--extract-audio") {
		args = append(args, "-x")
	}
	if !cmdline.ContainsArg(a.extraArgs, "--audio-format") {
		args = append(args, "--audio-format", a.audioFormat)
	}
	args = append(args, a.extraArgs...)
	args = append(args, "-o", filepath.ToSlash(req.OutputDir)+"/"+OutputTemplate)

	displayArgs := append([]string{}, args...)
	args = append(args, "--", req.Link)
	displayArgs = append(displayArgs, "--", cmdline.SanitizeURL(req.Link))

	return engine.ExecSpec{
		Bin:            a.bin,
		Args:           args,
		Dir:            req.OutputDir,
		Timeout:        req.Timeout,
		DisplayCommand: cmdline.Format(a.bin, displayArgs),
	}, nil
}
