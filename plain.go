package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/log"
	tty "github.com/mattn/go-tty"

	"github.com/noosed/InvaderZIM/internal/config"
	"github.com/noosed/InvaderZIM/internal/convert"
	"github.com/noosed/InvaderZIM/internal/rewrite"
)

// runPlain drives a conversion without the interactive interface, for
// scripts and non-TTY environments.
func runPlain(flags CLIFlags, cfg config.Config) error {
	if flags.Zip == "" {
		return fmt.Errorf("a zip filename must be given (use --help for help)")
	}
	if !strings.HasSuffix(strings.ToLower(flags.Zip), ".zip") {
		return fmt.Errorf("input file must be a ZIP archive")
	}

	out := flags.Out
	if out == "" {
		out = defaultOutputPath(flags.Zip)
	}
	if _, err := os.Stat(out); err == nil {
		if !flags.Yes && !promptYN(fmt.Sprintf("%s exists, overwrite? [y/N] ", out), false) {
			return fmt.Errorf("aborted, output file exists")
		}
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "invaderzim",
	})

	opts := convert.Options{
		ZipPath:      flags.Zip,
		OutputPath:   out,
		Title:        flags.Title,
		Description:  flags.Description,
		Language:     firstNonEmpty(flags.Language, cfg.Language),
		Creator:      firstNonEmpty(flags.Creator, cfg.Creator),
		Publisher:    firstNonEmpty(flags.Publisher, cfg.Publisher),
		RewriteLinks: cfg.RewriteLinks && !flags.NoRewrite,
		RAMStaging:   cfg.RAMStaging && !flags.NoRAM,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rep := &plainReporter{logger: logger}
	defer rep.stopSpinner()

	output, err := convert.New(opts, rep).Run(ctx)
	rep.stopSpinner()
	if err != nil {
		return err
	}
	logger.Info("Conversion complete", "output", output)
	return nil
}

// plainReporter maps pipeline progress onto the terminal logger. While the
// external packager runs, its output lines feed a spinner suffix instead of
// flooding the log.
type plainReporter struct {
	logger *log.Logger
	spin   *spinner.Spinner
}

func (r *plainReporter) Stage(s convert.Stage) {
	r.stopSpinner()
	if s == convert.StageDone {
		return
	}
	r.logger.Info(s.String())
	if s == convert.StagePackage {
		r.spin = spinner.New(spinner.CharSets[9], 100*time.Millisecond)
		r.spin.Suffix = " " + s.String()
		r.spin.Start()
	}
}

func (r *plainReporter) Log(level convert.Level, msg string) {
	if r.spin != nil && (level == convert.LevelInfo || level == convert.LevelOK) {
		// The render goroutine reads Suffix, so updates go through the
		// spinner's own lock.
		r.spin.Lock()
		r.spin.Suffix = " " + truncateLine(msg, 60)
		r.spin.Unlock()
		return
	}
	switch level {
	case convert.LevelWarn:
		r.logger.Warn(msg)
	case convert.LevelError:
		r.logger.Error(msg)
	case convert.LevelSuccess:
		r.stopSpinner()
		r.logger.Info(msg)
	default:
		r.logger.Info(msg)
	}
}

func (r *plainReporter) RewriteDone(sum *rewrite.Summary) {
	for _, res := range sum.Results {
		if res.Rewritten > 0 || res.Skipped > 0 {
			r.logger.Debug("rewrote document",
				"path", res.Path, "rewritten", res.Rewritten, "kept", res.Skipped)
		}
	}
}

func (r *plainReporter) stopSpinner() {
	if r.spin != nil {
		r.spin.Stop()
		r.spin = nil
	}
}

// truncateLine shortens a spinner suffix to max runes so multi-byte
// characters are never cut mid-sequence.
func truncateLine(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

// promptYN reads a single keypress answer, defaulting when no terminal is
// available.
func promptYN(msg string, defaultYes bool) bool {
	t, err := tty.Open()
	if err != nil {
		return defaultYes
	}
	defer t.Close()

	fmt.Print(msg)
	r, err := t.ReadRune()
	fmt.Print("\n")
	if err == nil {
		switch strings.ToLower(string(r)) {
		case "y":
			return true
		case "n":
			return false
		}
	}
	return defaultYes
}
