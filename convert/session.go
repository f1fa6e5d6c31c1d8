package convert

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// geometryKind describes one convertible map lump kind: its source and
// destination record sizes and the transcoder routine
type geometryKind struct {
	srcRecSize int
	dstRecSize int
	convert    func(s *Session, src, dst []byte) (int, error)
}

var geometryKinds = map[string]geometryKind{
	"VERTEXES": {pcVertexSize, psxVertexSize, func(_ *Session, src, dst []byte) (int, error) {
		return convertVertexes(src, dst)
	}},
	"SECTORS": {pcSectorSize, psxSectorSize, func(s *Session, src, dst []byte) (int, error) {
		return convertSectors(src, dst, s.textureResolver())
	}},
	"SIDEDEFS": {sidedefSize, sidedefSize, func(s *Session, src, dst []byte) (int, error) {
		return convertSidedefs(src, dst, s.textureResolver())
	}},
	"LINEDEFS": {linedefSize, linedefSize, func(_ *Session, src, dst []byte) (int, error) {
		return convertLinedefs(src, dst)
	}},
}

// Session orchestrates the conversion lifecycle for one archive:
// Begin, per-lump SizeOf / Convert, End. It owns the texture registry
// and a name-keyed cache of composited texture lumps.
//
// A session is single-threaded and not reentrant: at most one is
// active at a time and a second Begin before a matching End is a
// programming error that fails loudly instead of corrupting the cache.
type Session struct {
	archive  Archive
	resolver TextureResolver

	format     Format
	active     bool
	registry   *Registry
	composited map[string]*CompositeLump
}

// NewSession creates an inactive session over the given archive. The
// resolver maps texture names to destination indices during geometry
// conversion; passing nil uses the session's own texture registry.
func NewSession(a Archive, resolver TextureResolver) *Session {
	return &Session{
		archive:  a,
		resolver: resolver,
		registry: &Registry{},
	}
}

// Begin resets all per-archive state and records the active source
// format. For formats that need conversion it also loads the texture
// definitions from the archive. Calling Begin while a session is
// already active panics.
func (s *Session) Begin(f Format) error {
	if s.active {
		panic("convert: Begin called on an already active session")
	}

	s.format = f
	s.active = true
	s.registry = &Registry{}
	s.composited = make(map[string]*CompositeLump)

	if !f.NeedsConversion() {
		return nil
	}

	if err := s.registry.LoadDefinitions(s.archive); err != nil {
		return fmt.Errorf("loading texture definitions: %w", err)
	}

	logrus.WithField("format", f).Debug("conversion session started")
	return nil
}

// End discards the composite cache and the registry and resets the
// active format to Unknown
func (s *Session) End() {
	s.format = FormatUnknown
	s.active = false
	s.registry = &Registry{}
	s.composited = nil
}

// Active reports whether a Begin is pending its matching End
func (s *Session) Active() bool { return s.active }

// Format returns the source format recorded by the last Begin
func (s *Session) Format() Format { return s.format }

// NeedsConversion reports whether lumps passed through this session
// are rewritten rather than copied
func (s *Session) NeedsConversion() bool { return s.format.NeedsConversion() }

// Registry exposes the texture registry for enumeration of the
// discovered source textures
func (s *Session) Registry() *Registry { return s.registry }

// SizeOf returns the exact byte count a subsequent Convert call with
// the same lump name and source size will write. Callers rely on this
// to size their own allocation before requesting data. Formats that
// need no conversion, and lump names outside the known geometry kinds,
// pass the source size through unchanged; a malformed source size
// yields 0 because Convert will produce zero records for it.
func (s *Session) SizeOf(lumpName string, srcSize int) int {
	kind, ok := s.geometryKindFor(lumpName)
	if !ok {
		return srcSize
	}

	if srcSize%kind.srcRecSize != 0 {
		return 0
	}

	return srcSize / kind.srcRecSize * kind.dstRecSize
}

// Convert dispatches the lump by name to the matching geometry
// transcoder, or performs a raw byte copy for unknown names and
// non-converting formats. It returns the number of bytes written.
//
// The destination buffer must be at least SizeOf(lumpName, len(src))
// bytes; a smaller buffer is a caller defect and panics.
func (s *Session) Convert(lumpName string, src, dst []byte) (int, error) {
	need := s.SizeOf(lumpName, len(src))
	if len(dst) < need {
		panic(fmt.Sprintf("convert: destination buffer for %q holds %d bytes, need %d", lumpName, len(dst), need))
	}

	kind, ok := s.geometryKindFor(lumpName)
	if !ok {
		copy(dst, src)
		return len(src), nil
	}

	n, err := kind.convert(s, src, dst)
	if err != nil {
		return 0, fmt.Errorf("converting %s: %w", lumpKey(lumpName), err)
	}

	return n, nil
}

// CompositeTexture rasterizes the named source texture into the
// destination lump shape, serving repeated requests from the session
// cache. Texture names match case-insensitively.
func (s *Session) CompositeTexture(name string) (*CompositeLump, error) {
	key := strings.ToUpper(name)

	if lump, ok := s.composited[key]; ok {
		return lump, nil
	}

	idx, ok := s.registry.byName[key]
	if !ok {
		return nil, fmt.Errorf("texture %q not found", key)
	}

	lump, err := s.registry.Composite(idx)
	if err != nil {
		return nil, err
	}

	if s.composited != nil {
		s.composited[key] = lump
	}

	return lump, nil
}

func (s *Session) geometryKindFor(lumpName string) (geometryKind, bool) {
	if !s.format.NeedsConversion() {
		return geometryKind{}, false
	}

	kind, ok := geometryKinds[lumpKey(lumpName)]
	return kind, ok
}

func (s *Session) textureResolver() TextureResolver {
	if s.resolver != nil {
		return s.resolver
	}
	return s.registry
}

// lumpKey normalizes a lump name the way the archive directory does:
// uppercased and truncated to the fixed 8-byte width
func lumpKey(name string) string {
	if len(name) > texNameLen {
		name = name[:texNameLen]
	}
	return strings.ToUpper(name)
}
