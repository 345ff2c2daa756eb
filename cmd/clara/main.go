// Command clara transcribes (and optionally analyzes) an audio file against
// a running backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	"github.com/yegors/clara/internal/backend"
	"github.com/yegors/clara/internal/config"
	"github.com/yegors/clara/internal/session"
	"github.com/yegors/clara/internal/upload"
	"github.com/yegors/clara/pkg/logger"
)

// Globals are shared by every command
type Globals struct {
	Config  string `help:"Path to configuration file" type:"path"`
	Verbose bool   `short:"v" help:"Log backend requests"`
}

// CLI is the command line
type CLI struct {
	Globals

	Transcribe TranscribeCmd `cmd:"" help:"Transcribe an audio file and save the transcript"`
}

// TranscribeCmd uploads a file, saves its transcript and prints the analysis
type TranscribeCmd struct {
	File    string        `arg:"" type:"existingfile" help:"Audio file to transcribe"`
	Analyze bool          `short:"a" help:"Also analyze the call"`
	Out     string        `short:"o" type:"path" help:"Directory the transcript is written to (default: print it)"`
	APIURL  string        `name:"api-url" help:"Backend base URL (overrides configuration)"`
	Timeout time.Duration `help:"Request timeout (0 waits indefinitely)"`
}

// Run executes the command
func (c *TranscribeCmd) Run(g *Globals) error {
	cfg, err := config.LoadWithFallback(g.Config)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level := "warn"
	if g.Verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Config{Level: level, Format: "console"})
	if err != nil {
		return err
	}
	defer log.Sync()

	apiURL := c.APIURL
	if apiURL == "" {
		apiURL = cfg.Backend.APIURL
	}
	timeout := c.Timeout
	if timeout == 0 {
		timeout = time.Duration(cfg.Backend.TimeoutSeconds) * time.Second
	}
	client, err := backend.NewClient(backend.Options{
		BaseURL: config.ResolveAPIBase(apiURL, cfg.Backend.Production),
		Origin:  cfg.Backend.PublicOrigin,
		Timeout: timeout,
	}, log)
	if err != nil {
		return err
	}

	file, err := readAudio(c.File)
	if err != nil {
		return err
	}

	ctx := context.Background()
	ctrl := session.NewController("cli", client, log)

	fmt.Fprintf(os.Stderr, "Transcribing %s via %s...\n", file.Name, client.BaseURL())
	snap, err := ctrl.SelectFile(ctx, file)
	if err != nil {
		return err
	}
	if snap.Error != "" {
		return errors.New(snap.Error)
	}

	if c.Out == "" {
		fmt.Println(snap.Transcript)
	} else {
		path := filepath.Join(c.Out, session.TranscriptFileName(snap.FileName))
		if err := os.WriteFile(path, []byte(snap.Transcript), 0o644); err != nil {
			return fmt.Errorf("writing transcript: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Transcript saved to %s\n", path)
	}

	if !c.Analyze {
		return nil
	}

	fmt.Fprintln(os.Stderr, "Analyzing call sentiment and quality...")
	snap, err = ctrl.Analyze(ctx)
	if err != nil {
		return err
	}
	switch {
	case snap.Error != "":
		return errors.New(snap.Error)
	case snap.AnalysisInvalid:
		return errors.New("error parsing analysis data")
	case snap.Analysis != nil:
		fmt.Println(renderAnalysis(snap.Analysis))
	}
	return nil
}

func readAudio(path string) (*upload.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &upload.File{
		Name:        filepath.Base(path),
		ContentType: upload.DetectContentType(data, mime.TypeByExtension(filepath.Ext(path))),
		Data:        data,
	}, nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("clara"),
		kong.Description("Transcribe and analyze call recordings."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
