// Package convert runs the whole POF to glTF conversion for one file.
package convert

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Faultbox/pofconv/pkg/bsp"
	"github.com/Faultbox/pofconv/pkg/export"
	"github.com/Faultbox/pofconv/pkg/pof"
)

// Options configures a conversion. The zero value converts next to the
// input with default export settings and no BSP checks.
type Options struct {
	OutputDir string // defaults to the input's directory
	Export    export.Options
	BuildBSP  bool // compile, optimize and validate a tree per subobject
	BSP       bsp.Options
	Logger    *zap.Logger
}

// TreeReport is the BSP check result for one subobject.
type TreeReport struct {
	SubObject int
	Stats     bsp.Stats
	Issues    []bsp.Issue
	Err       error // set when the tree could not be built
}

// Result describes a finished conversion.
type Result struct {
	Input        string
	ScenePath    string
	MetadataPath string
	ConversionID string
	Version      pof.Version
	SubObjects   int
	Polygons     int
	Scene        export.SceneStats
	Trees        []TreeReport
	Warnings     int
	Duration     time.Duration
}

// Convert reads inputPath and writes <name>.glb and <name>.yaml. It keeps
// no state between calls and may run concurrently for different files.
func Convert(inputPath string, opts Options) (*Result, error) {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("converting %s: reading POF file: %w", inputPath, err)
	}
	return ConvertData(inputPath, data, opts)
}

// ConvertData converts an in-memory POF file. inputPath names the outputs
// and, when opts.OutputDir is empty, the directory they are written to.
func ConvertData(inputPath string, data []byte, opts Options) (*Result, error) {
	start := time.Now()
	base := opts.Logger
	if base == nil {
		base = zap.NewNop()
	}

	var warnings atomic.Int64
	counter := zapcore.RegisterHooks(
		zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(io.Discard), zapcore.WarnLevel),
		// The hook also fires for entries accepted by the other tee branch.
		func(e zapcore.Entry) error {
			if e.Level >= zapcore.WarnLevel {
				warnings.Add(1)
			}
			return nil
		},
	)
	log := base.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, counter)
	})).With(zap.String("file", filepath.Base(inputPath)))

	model, err := pof.Parse(data, log)
	if err != nil {
		return nil, fmt.Errorf("converting %s: %w", inputPath, err)
	}
	model = model.ResolveGeometry(log)

	res := &Result{
		Input:        inputPath,
		ConversionID: uuid.NewString(),
		Version:      model.Version,
		SubObjects:   len(model.SubObjects),
		Polygons:     model.TotalPolygons(),
	}

	if opts.BuildBSP {
		res.Trees = checkTrees(model, opts.BSP, log)
	}

	dir := opts.OutputDir
	if dir == "" {
		dir = filepath.Dir(inputPath)
	}
	name := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	scenePath := filepath.Join(dir, name+".glb")
	metaPath := filepath.Join(dir, name+".yaml")

	exportOpts := opts.Export
	if exportOpts.Name == "" {
		exportOpts.Name = name
	}
	exportOpts.ConversionID = res.ConversionID
	out, err := export.Export(model, scenePath, metaPath, filepath.Base(inputPath), exportOpts, log)
	if err != nil {
		return nil, fmt.Errorf("converting %s: %w", inputPath, err)
	}

	res.ScenePath = out.ScenePath
	res.MetadataPath = out.MetadataPath
	res.Scene = out.Stats
	res.Warnings = int(warnings.Load())
	res.Duration = time.Since(start)
	log.Debug("converted",
		zap.Int("subobjects", res.SubObjects),
		zap.Int("polygons", res.Polygons),
		zap.Int("warnings", res.Warnings),
		zap.Duration("took", res.Duration))
	return res, nil
}

// checkTrees compiles each subobject's polygons into a BSP tree and
// validates it. Build failures are reported but do not stop the export.
func checkTrees(m *pof.Model, opts bsp.Options, log *zap.Logger) []TreeReport {
	var reports []TreeReport
	for _, so := range m.SubObjects {
		g, ok := so.Shape.Parsed()
		if !ok || g.Empty() {
			continue
		}
		slog := log.With(zap.Int("subobject", so.ID))
		rep := TreeReport{SubObject: so.ID}

		tree, err := bsp.Build(bsp.FromGeometry(g), opts, slog)
		if err != nil {
			slog.Warn("bsp build failed", zap.Error(err))
			rep.Err = err
			reports = append(reports, rep)
			continue
		}
		tree = bsp.Optimize(tree, opts, slog)
		report := bsp.Validate(tree, opts)
		rep.Stats = tree.Stats
		rep.Issues = report.Issues
		for _, is := range report.Issues {
			if is.Severity == bsp.Fatal {
				slog.Warn("bsp validation failed", zap.String("issue", is.Message))
			} else {
				slog.Debug("bsp validation", zap.String("issue", is.Message))
			}
		}
		reports = append(reports, rep)
	}
	return reports
}
