// pofconv converts POF model files to binary glTF with a YAML metadata sidecar.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/pofconv/internal/config"
	"github.com/Faultbox/pofconv/internal/logger"
	"github.com/Faultbox/pofconv/pkg/pof"
)

func main() {
	flag.Usage = printUsage
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Setup(logger.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Console: os.Stderr,
		File: logger.FileConfig{
			Path:       cfg.Logging.LogFile,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		},
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Sugar.Debugf("Config: %+v", cfg)

	if path := config.SavePath(); path != "" {
		if err := cfg.SaveTo(path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", path)
		return
	}

	inputs := config.Inputs()
	if len(inputs) == 0 {
		printUsage()
		os.Exit(1)
	}

	if config.InfoMode() {
		failed := false
		for _, path := range inputs {
			if err := printInfo(path); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				failed = true
			}
		}
		if failed {
			os.Exit(1)
		}
		return
	}

	jobs, archives, err := planJobs(inputs, cfg.ConvertOptions(logger.Log))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	outcomes := runBatch(jobs, cfg.Workers)
	closeAll(archives)

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			fmt.Printf("FAIL %s: %v\n", o.Input, o.Err)
			continue
		}
		r := o.Result
		fmt.Printf("ok   %s -> %s (%d subobjects, %d triangles, %d warnings, %s)\n",
			r.Input, r.ScenePath, r.SubObjects, r.Scene.Triangles, r.Warnings, r.Duration.Round(time.Millisecond))
		for _, tr := range r.Trees {
			if tr.Err != nil {
				fmt.Printf("     bsp subobject %d: %v\n", tr.SubObject, tr.Err)
			}
		}
	}

	logger.Info("batch finished",
		zap.Int("files", len(outcomes)),
		zap.Int("failed", failed),
		zap.Int("workers", cfg.Workers))
	if failed > 0 {
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `pofconv - POF model to glTF converter

Usage:
  pofconv [flags] <file.pof|archive.vp>...
  pofconv -info <file.pof>...

Each model is written as <name>.glb and <name>.yaml in the output
directory (default: next to the input). Every .pof inside a .vp
archive is converted.

Flags:`)
	flag.PrintDefaults()
}

// printInfo prints the chunk layout of a POF file.
func printInfo(path string) error {
	version, chunks, err := pof.ScanFile(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	fmt.Printf("File:    %s\n", path)
	fmt.Printf("Version: %s (%d)\n", version, int32(version))
	fmt.Printf("Chunks:  %d\n", len(chunks))
	fmt.Println()

	fmt.Printf("  %-6s %10s %10s\n", "TAG", "OFFSET", "SIZE")
	for _, c := range chunks {
		known := ""
		if !c.Tag.Known() {
			known = " unknown"
		}
		fmt.Printf("  %-6s %10d %10d%s\n", c.Tag, c.Offset, c.Size, known)
	}
	fmt.Println()
	return nil
}
