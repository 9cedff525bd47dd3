package config

import "flag"

var (
	flagConfig  = flag.String("config", "", "Path to config file")
	flagDebug   = flag.Bool("debug", false, "Enable debug logging")
	flagOut     = flag.String("out", "", "Output directory (default: next to each input)")
	flagBSP     = flag.Bool("bsp", false, "Compile and validate a BSP tree per subobject")
	flagNoBSP   = flag.Bool("no-bsp", false, "Skip BSP compile and validation, even if the config enables it")
	flagLeaf    = flag.Int("leaf", 0, "Maximum polygons per BSP leaf")
	flagWorkers = flag.Int("j", 0, "Number of files converted in parallel")
	flagInfo    = flag.Bool("info", false, "Print a chunk summary instead of converting")
	flagSave    = flag.String("save-config", "", "Write the effective config to this path and exit")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// InfoMode reports whether -info was given.
func InfoMode() bool {
	return *flagInfo
}

// SavePath returns the -save-config target, or "".
func SavePath() string {
	return *flagSave
}

// Inputs returns the positional arguments left after flag parsing.
func Inputs() []string {
	return flag.Args()
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagOut != "" {
		cfg.Output.Dir = *flagOut
	}
	if *flagBSP {
		cfg.BSP.Enabled = true
	}
	if *flagNoBSP {
		cfg.BSP.Enabled = false
	}
	if *flagLeaf > 0 {
		cfg.BSP.LeafSize = *flagLeaf
	}
	if *flagWorkers > 0 {
		cfg.Workers = *flagWorkers
	}
}
