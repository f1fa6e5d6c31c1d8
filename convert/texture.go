package convert

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Texture definition lumps from the source archive, in priority
// order. Later lumps redefine names from earlier ones.
var textureLumpNames = []string{
	"TEXTURE1", "TEXTURE2", "TEXTURE3", "TEXTURE4", "TEXTURE5",
	"TEXTURE6", "TEXTURE7", "TEXTURE8", "TEXTURE9",
}

const (
	patchNamesLump = "PNAMES"

	// Transparent palette index in the destination format
	transparentIdx = 0

	// Fixed-size on-disk structures of the texture subsystem
	texDefHeaderSize = 22 // name[8] + masked i32 + width i16 + height i16 + columndir i32 + patchcount u16
	patchRefSize     = 10 // originx i16 + originy i16 + patch i16 + stepdir i16 + colormap i16
	patchHeaderSize  = 8  // width i16 + height i16 + leftoffset i16 + topoffset i16

	// CompositeHeaderSize is the fixed header preceding the pixel data
	// of a composited texture lump
	CompositeHeaderSize = 8

	// Post terminator within a patch column
	endOfColumn = 0xFF
)

// Lazy patch-name resolution states
const (
	lumpUnprobed   = -2
	lumpUnresolved = -1
)

type (
	// PatchRef places one patch within a texture. Patches draw in
	// stored order, later ones overwrite earlier ones.
	PatchRef struct {
		OriginX int16
		OriginY int16
		Patch   int16 // index into the patch name table
	}

	// TextureDef is one parsed wall-texture definition
	TextureDef struct {
		Name    string
		Width   int16
		Height  int16
		Patches []PatchRef
	}

	// CompositeLump is a fully rasterized destination texture lump:
	// the fixed 8-byte header followed by width*height palette
	// indices. Owned marks buffers whose memory belongs to the
	// conversion cache.
	CompositeLump struct {
		Data  []byte
		Size  int
		Owned bool
	}

	// Registry parses the patch name table and the texture definition
	// lumps and rasterizes composite textures from RLE patch data. It
	// is built once per session and read-only afterwards.
	Registry struct {
		archive    Archive
		patchNames []string
		patchLumps []int // lazily resolved archive lump index per patch name
		patchData  map[int][]byte
		textures   []TextureDef
		byName     map[string]int
	}
)

// LoadDefinitions reads the patch name table and all texture
// definition lumps from the archive. Individually broken texture
// definitions are skipped, loading continues with the next one; only a
// structurally unusable name table aborts the load.
func (r *Registry) LoadDefinitions(a Archive) error {
	r.archive = a
	r.patchNames = nil
	r.patchLumps = nil
	r.patchData = make(map[int][]byte)
	r.textures = nil
	r.byName = make(map[string]int)

	if err := r.loadPatchNames(a); err != nil {
		return err
	}

	for _, lumpName := range textureLumpNames {
		idx, ok := a.FindLump(lumpName)
		if !ok {
			continue
		}

		data, err := a.ReadLump(idx)
		if err != nil {
			return fmt.Errorf("reading %s: %w", lumpName, err)
		}

		r.parseTextureLump(lumpName, data)
	}

	logrus.WithFields(logrus.Fields{
		"patches":  len(r.patchNames),
		"textures": len(r.textures),
	}).Debug("loaded texture definitions")

	return nil
}

func (r *Registry) loadPatchNames(a Archive) error {
	idx, ok := a.FindLump(patchNamesLump)
	if !ok {
		// Nothing to composite from, but not an error: archives
		// without wall textures are still convertible
		return nil
	}

	data, err := a.ReadLump(idx)
	if err != nil {
		return fmt.Errorf("reading %s: %w", patchNamesLump, err)
	}

	if len(data) < 4 {
		return fmt.Errorf("%w: %s shorter than its count field", ErrMalformedLump, patchNamesLump)
	}

	count := int(int32(binary.LittleEndian.Uint32(data)))
	if count < 0 || len(data) < 4+count*texNameLen {
		return fmt.Errorf("%w: %s declares %d names but holds %d bytes", ErrMalformedLump, patchNamesLump, count, len(data))
	}

	r.patchNames = make([]string, count)
	r.patchLumps = make([]int, count)
	for i := 0; i < count; i++ {
		r.patchNames[i] = texNameAt(data, 4+i*texNameLen)
		r.patchLumps[i] = lumpUnprobed
	}

	return nil
}

// parseTextureLump walks one TEXTUREx lump. Any offset or trailing
// patch block that would read past the lump's declared size skips that
// one texture only.
func (r *Registry) parseTextureLump(lumpName string, data []byte) {
	if len(data) < 4 {
		return
	}

	count := int(int32(binary.LittleEndian.Uint32(data)))
	if count < 0 || len(data) < 4+count*4 {
		logrus.WithField("lump", lumpName).Debug("texture lump directory truncated, skipping")
		return
	}

	for i := 0; i < count; i++ {
		off := int(int32(binary.LittleEndian.Uint32(data[4+i*4:])))
		if off < 0 || off+texDefHeaderSize > len(data) {
			continue
		}

		def := TextureDef{
			Name:   texNameAt(data, off),
			Width:  int16(binary.LittleEndian.Uint16(data[off+12:])),
			Height: int16(binary.LittleEndian.Uint16(data[off+14:])),
		}

		if def.Width <= 0 || def.Height <= 0 {
			continue
		}

		patchCount := int(binary.LittleEndian.Uint16(data[off+20:]))
		if off+texDefHeaderSize+patchCount*patchRefSize > len(data) {
			continue
		}

		def.Patches = make([]PatchRef, patchCount)
		for p := 0; p < patchCount; p++ {
			ref := data[off+texDefHeaderSize+p*patchRefSize:]
			def.Patches[p] = PatchRef{
				OriginX: int16(binary.LittleEndian.Uint16(ref[0:])),
				OriginY: int16(binary.LittleEndian.Uint16(ref[2:])),
				Patch:   int16(binary.LittleEndian.Uint16(ref[4:])),
			}
		}

		// Later definitions win: an already known name is replaced in
		// place so texture indices stay stable
		if prev, ok := r.byName[def.Name]; ok {
			r.textures[prev] = def
			continue
		}

		r.byName[def.Name] = len(r.textures)
		r.textures = append(r.textures, def)
	}
}

// Count returns the number of discovered texture definitions
func (r *Registry) Count() int { return len(r.textures) }

// Name returns the texture name at the given index
func (r *Registry) Name(idx int) string {
	if idx < 0 || idx >= len(r.textures) {
		return ""
	}
	return r.textures[idx].Name
}

// Width returns the texture width at the given index
func (r *Registry) Width(idx int) int {
	if idx < 0 || idx >= len(r.textures) {
		return 0
	}
	return int(r.textures[idx].Width)
}

// Height returns the texture height at the given index
func (r *Registry) Height(idx int) int {
	if idx < 0 || idx >= len(r.textures) {
		return 0
	}
	return int(r.textures[idx].Height)
}

// ResolveTextureIndex implements TextureResolver on top of the loaded
// definitions. Unknown names map to 0 ("no texture").
func (r *Registry) ResolveTextureIndex(name string) int {
	idx, ok := r.byName[strings.ToUpper(name)]
	if !ok {
		return 0
	}
	return idx
}

// CompositeSize returns the byte size a composited lump for the given
// texture index will have, without paying for the compositing itself
func (r *Registry) CompositeSize(idx int) int {
	if idx < 0 || idx >= len(r.textures) {
		return 0
	}
	return CompositeHeaderSize + int(r.textures[idx].Width)*int(r.textures[idx].Height)
}

// Composite rasterizes the texture at the given index into a freshly
// allocated destination lump
func (r *Registry) Composite(idx int) (*CompositeLump, error) {
	size := r.CompositeSize(idx)
	if size == 0 {
		return nil, fmt.Errorf("texture index %d out of range", idx)
	}

	lump := &CompositeLump{
		Data:  make([]byte, size),
		Size:  size,
		Owned: true,
	}

	def := r.textures[idx]
	binary.LittleEndian.PutUint16(lump.Data[0:], 0) // offset x
	binary.LittleEndian.PutUint16(lump.Data[2:], 0) // offset y
	binary.LittleEndian.PutUint16(lump.Data[4:], uint16(def.Width))
	binary.LittleEndian.PutUint16(lump.Data[6:], uint16(def.Height))

	r.generatePixels(idx, lump.Data[CompositeHeaderSize:])

	return lump, nil
}

// GeneratePixels fills a caller-provided buffer of exactly
// width*height bytes with the composited pixel data for the given
// texture index (the size/data half of the two-call protocol)
func (r *Registry) GeneratePixels(idx int, dst []byte) error {
	size := r.CompositeSize(idx)
	if size == 0 {
		return fmt.Errorf("texture index %d out of range", idx)
	}
	if len(dst) != size-CompositeHeaderSize {
		return fmt.Errorf("pixel buffer holds %d bytes, texture needs %d", len(dst), size-CompositeHeaderSize)
	}

	r.generatePixels(idx, dst)
	return nil
}

func (r *Registry) generatePixels(idx int, pixels []byte) {
	def := r.textures[idx]
	width, height := int(def.Width), int(def.Height)

	for i := range pixels {
		pixels[i] = transparentIdx
	}

	for _, ref := range def.Patches {
		patch := r.patchDataFor(int(ref.Patch))
		if patch == nil {
			continue
		}
		drawPatch(pixels, width, height, int(ref.OriginX), int(ref.OriginY), patch)
	}
}

// patchDataFor resolves a patch-table index to its raw lump bytes,
// memoizing both the name lookup and the lump contents for the
// registry's lifetime
func (r *Registry) patchDataFor(patchIdx int) []byte {
	if patchIdx < 0 || patchIdx >= len(r.patchLumps) {
		return nil
	}

	if r.patchLumps[patchIdx] == lumpUnprobed {
		if lumpIdx, ok := r.archive.FindLump(r.patchNames[patchIdx]); ok {
			r.patchLumps[patchIdx] = lumpIdx
		} else {
			// Unresolvable names stay in the table instead of
			// aborting the load; the patch simply never draws
			r.patchLumps[patchIdx] = lumpUnresolved
			logrus.WithField("patch", r.patchNames[patchIdx]).Debug("patch name unresolved")
		}
	}

	lumpIdx := r.patchLumps[patchIdx]
	if lumpIdx < 0 {
		return nil
	}

	if data, ok := r.patchData[lumpIdx]; ok {
		return data
	}

	data, err := r.archive.ReadLump(lumpIdx)
	if err != nil {
		logrus.WithError(err).WithField("patch", r.patchNames[patchIdx]).Debug("patch lump unreadable")
		data = nil
	}
	r.patchData[lumpIdx] = data

	return data
}

// drawPatch composites one RLE patch onto the destination pixel
// buffer. Every column offset and post read is checked against the
// patch lump's declared length: corrupt or truncated data stops the
// affected column and leaves the rest of the texture intact.
func drawPatch(pixels []byte, width, height, originX, originY int, patch []byte) {
	if len(patch) < patchHeaderSize {
		return
	}

	patchWidth := int(int16(binary.LittleEndian.Uint16(patch[0:])))
	if patchWidth <= 0 || patchHeaderSize+patchWidth*4 > len(patch) {
		return
	}

	for col := 0; col < patchWidth; col++ {
		x := originX + col
		if x < 0 || x >= width {
			continue
		}

		pos := int(int32(binary.LittleEndian.Uint32(patch[patchHeaderSize+col*4:])))
		if pos < 0 || pos >= len(patch) {
			continue
		}

		// Walk the column's posts: {topDelta, length, pad, pixels...,
		// pad}, terminated by topDelta 0xFF
		for pos+4 <= len(patch) {
			topDelta := int(patch[pos])
			if topDelta == endOfColumn {
				break
			}

			length := int(patch[pos+1])
			if pos+3+length > len(patch) {
				break
			}

			for py := 0; py < length; py++ {
				y := originY + topDelta + py
				if y >= 0 && y < height {
					pixels[y*width+x] = patch[pos+3+py]
				}
			}

			pos += length + 4
		}
	}
}
