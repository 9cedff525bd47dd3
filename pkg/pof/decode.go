package pof

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/pofconv/pkg/chunk"
)

// chunkDecoder consumes one chunk payload of the given size into the builder.
type chunkDecoder func(b *builder, r *chunk.Reader, size int)

var chunkDecoders = map[chunk.Tag]chunkDecoder{
	chunk.TagHeader: func(b *builder, r *chunk.Reader, _ int) {
		b.once(chunk.TagHeader)
		b.m.Header = readHeader(r, b.m.Version)
	},
	chunk.TagTextures: func(b *builder, r *chunk.Reader, _ int) {
		b.once(chunk.TagTextures)
		b.m.Textures = readTextures(r, b.m.Version)
	},
	chunk.TagSubObject: func(b *builder, r *chunk.Reader, _ int) {
		b.m.SubObjects = append(b.m.SubObjects, readSubObject(r, b.m.Version))
	},
	chunk.TagSpecialPoints: func(b *builder, r *chunk.Reader, _ int) {
		b.once(chunk.TagSpecialPoints)
		b.m.SpecialPoints = readSpecialPoints(r, b.m.Version)
	},
	chunk.TagGunPoints: func(b *builder, r *chunk.Reader, _ int) {
		b.once(chunk.TagGunPoints)
		b.m.GunBanks = readWeaponBanks(r, b.m.Version)
	},
	chunk.TagMissilePoints: func(b *builder, r *chunk.Reader, _ int) {
		b.once(chunk.TagMissilePoints)
		b.m.MissileBanks = readWeaponBanks(r, b.m.Version)
	},
	chunk.TagGunTurrets: func(b *builder, r *chunk.Reader, _ int) {
		b.once(chunk.TagGunTurrets)
		b.m.GunTurrets = readTurrets(r, b.m.Version)
	},
	chunk.TagMissileTurrets: func(b *builder, r *chunk.Reader, _ int) {
		b.once(chunk.TagMissileTurrets)
		b.m.MissileTurrets = readTurrets(r, b.m.Version)
	},
	chunk.TagDocking: func(b *builder, r *chunk.Reader, _ int) {
		b.once(chunk.TagDocking)
		b.m.DockingPoints = readDockingPoints(r, b.m.Version)
	},
	chunk.TagThrusters: func(b *builder, r *chunk.Reader, _ int) {
		b.once(chunk.TagThrusters)
		b.m.Thrusters = readThrusters(r, b.m.Version)
	},
	chunk.TagShield: func(b *builder, r *chunk.Reader, _ int) {
		b.once(chunk.TagShield)
		b.m.Shield = readShield(r, b.m.Version)
	},
	chunk.TagEyePoints: func(b *builder, r *chunk.Reader, _ int) {
		b.once(chunk.TagEyePoints)
		b.m.EyePoints = readEyePoints(r, b.m.Version)
	},
	chunk.TagAutoCenter: func(b *builder, r *chunk.Reader, _ int) {
		b.once(chunk.TagAutoCenter)
		b.m.AutoCenter = readAutoCenter(r, b.m.Version)
	},
	chunk.TagInsignia: func(b *builder, r *chunk.Reader, _ int) {
		b.once(chunk.TagInsignia)
		b.m.Insignia = readInsignia(r, b.m.Version)
	},
	chunk.TagPaths: func(b *builder, r *chunk.Reader, _ int) {
		b.once(chunk.TagPaths)
		b.m.Paths = readPaths(r, b.m.Version)
	},
	chunk.TagGlowBanks: func(b *builder, r *chunk.Reader, _ int) {
		b.once(chunk.TagGlowBanks)
		b.m.GlowBanks = readGlowBanks(r, b.m.Version)
	},
	chunk.TagShieldTree: func(b *builder, r *chunk.Reader, _ int) {
		b.once(chunk.TagShieldTree)
		b.m.ShieldTree = readShieldTree(r, b.m.Version)
	},
	chunk.TagProductionInfo: func(b *builder, r *chunk.Reader, size int) {
		b.once(chunk.TagProductionInfo)
		b.m.ProductionInfo = readProductionInfo(r, size)
	},
}

// builder accumulates decoded chunks into a Model.
type builder struct {
	m    *Model
	log  *zap.Logger
	seen map[chunk.Tag]bool
}

// once warns when a single-instance chunk appears again. The later chunk wins.
func (b *builder) once(tag chunk.Tag) {
	if b.seen[tag] {
		b.log.Warn("duplicate chunk, keeping the last one", zap.Stringer("tag", tag))
	}
	b.seen[tag] = true
}

// Parse decodes a POF file. Framing, signature and version problems are
// returned as errors; everything else is logged and recovered.
func Parse(data []byte, log *zap.Logger) (*Model, error) {
	if log == nil {
		log = zap.NewNop()
	}

	r := chunk.NewReader(data)
	version, err := readFileHeader(r)
	if err != nil {
		return nil, err
	}

	b := &builder{
		m:    &Model{Version: version},
		log:  log,
		seen: make(map[chunk.Tag]bool),
	}

	for r.Remaining() > 0 {
		start := r.Pos()
		h, err := r.ReadHeader()
		if err != nil {
			return nil, fmt.Errorf("chunk header at offset %d: %w", start, err)
		}
		payload := r.Pos()
		size := int(h.Size)
		if size > r.Remaining() {
			return nil, fmt.Errorf("chunk %s at offset %d: %w: size %d exceeds %d remaining bytes",
				h.Tag, start, chunk.ErrIncompleteData, size, r.Remaining())
		}
		next := payload + size

		decode, ok := chunkDecoders[h.Tag]
		if !ok || !h.Tag.Known() {
			log.Info("keeping unknown chunk",
				zap.Stringer("tag", h.Tag),
				zap.Int("offset", start),
				zap.Int("size", size))
			b.m.Unknown = append(b.m.Unknown, RawChunk{Tag: h.Tag, Data: cloneBytes(r.Bytes(size))})
			continue
		}

		decode(b, r, size)
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("decoding %s chunk at offset %d: %w", h.Tag, start, err)
		}

		if consumed := r.Pos() - payload; consumed != size {
			log.Warn("chunk size mismatch, seeking to declared end",
				zap.Stringer("tag", h.Tag),
				zap.Int("offset", start),
				zap.Int("declared", size),
				zap.Int("consumed", consumed))
			if err := r.Seek(next); err != nil {
				return nil, err
			}
		}
	}

	b.finish()
	return b.m, nil
}

func readFileHeader(r *chunk.Reader) (Version, error) {
	sig := r.Bytes(4)
	version := Version(r.Int32())
	if err := r.Err(); err != nil {
		return 0, fmt.Errorf("reading file header: %w", err)
	}
	if string(sig) != Signature {
		return 0, fmt.Errorf("%w: got %q", ErrInvalidSignature, sig)
	}
	if !version.AtLeast(MinVersion) {
		return 0, fmt.Errorf("%w: %d (minimum %d)", ErrUnsupportedVersion, version, MinVersion)
	}
	return version, nil
}

func (b *builder) finish() {
	if b.seen[chunk.TagHeader] && b.m.Header.SubObjectCount != len(b.m.SubObjects) {
		b.log.Warn("header subobject count does not match OBJ2 chunks",
			zap.Int("header", b.m.Header.SubObjectCount),
			zap.Int("chunks", len(b.m.SubObjects)))
	}
	for _, issue := range b.m.CheckHierarchy() {
		b.log.Warn("subobject hierarchy", zap.Int("subobject", issue.ID), zap.String("problem", issue.Problem))
	}
}

// ParseFile reads and decodes a POF file from disk.
func ParseFile(path string, log *zap.Logger) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading POF file: %w", err)
	}
	return Parse(data, log)
}

// IsFormatError reports whether err means the input is not a usable POF file.
func IsFormatError(err error) bool {
	return errors.Is(err, ErrFormat) || errors.Is(err, chunk.ErrIncompleteData)
}
