package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"go.uber.org/zap"

	"github.com/Faultbox/pofconv/pkg/pof"
)

// Result names the files written by Export.
type Result struct {
	ScenePath    string
	MetadataPath string
	Stats        SceneStats
}

// stage writes data to a pending file next to path. The caller either
// replaces path with it or cleans it up.
func stage(path string, data []byte) (*renameio.PendingFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	f, err := renameio.NewPendingFile(path, renameio.WithPermissions(0644))
	if err != nil {
		return nil, fmt.Errorf("staging %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Cleanup()
		return nil, fmt.Errorf("writing %s: %w", path, err)
	}
	return f, nil
}

// WriteFileAtomic writes data to path through a synced temporary file and
// a rename, so path never holds partial content.
func WriteFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Export builds the scene and metadata for m and writes them. Both files
// are fully written and synced before either is renamed into place. The
// metadata is replaced first: if the scene rename then fails, the new
// metadata stays next to the previous scene and the error is returned.
// A replaced target is never removed.
func Export(m *pof.Model, scenePath, metadataPath, source string, opts Options, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	scene, err := BuildScene(m, opts, log)
	if err != nil {
		return nil, err
	}
	glb, err := scene.GLB()
	if err != nil {
		return nil, err
	}
	meta, err := BuildMetadata(m, scene, source, opts).Marshal()
	if err != nil {
		return nil, err
	}

	sceneFile, err := stage(scenePath, glb)
	if err != nil {
		return nil, err
	}
	defer sceneFile.Cleanup()
	metaFile, err := stage(metadataPath, meta)
	if err != nil {
		return nil, err
	}
	defer metaFile.Cleanup()

	if err := metaFile.CloseAtomicallyReplace(); err != nil {
		return nil, fmt.Errorf("replacing %s: %w", metadataPath, err)
	}
	if err := sceneFile.CloseAtomicallyReplace(); err != nil {
		log.Warn("metadata replaced but scene was not",
			zap.String("scene", scenePath),
			zap.String("metadata", metadataPath),
			zap.Error(err))
		return nil, fmt.Errorf("replacing %s: %w", scenePath, err)
	}

	log.Debug("exported",
		zap.String("scene", scenePath),
		zap.String("metadata", metadataPath),
		zap.Int("scene_bytes", len(glb)),
		zap.Int("metadata_bytes", len(meta)))
	return &Result{ScenePath: scenePath, MetadataPath: metadataPath, Stats: scene.Stats}, nil
}
