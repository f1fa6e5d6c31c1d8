package convert

import (
	"github.com/sirupsen/logrus"
)

// Format identifies the binary layout family of a WAD archive. The
// format carries no version header of its own, so it has to be derived
// from structural signals (see Detect).
type Format uint8

const (
	// FormatUnknown is the zero value: no recognized signal was found
	// and the archive must be treated as needing no conversion.
	FormatUnknown Format = iota

	// FormatPCStandard is the classic PC layout with episodic or MAPxx
	// markers and 4-byte vertices.
	FormatPCStandard

	// FormatPCExtended is the PC layout with Hexen-style extensions
	// (BEHAVIOR lump present among the map lumps).
	FormatPCExtended

	// FormatPSXStandard is the console layout with 8-byte fixed-point
	// vertices and index-based sector textures.
	FormatPSXStandard

	// FormatPSXExtended is the console layout variant with the larger
	// per-sector record.
	FormatPSXExtended
)

func (f Format) String() string {
	switch f {
	case FormatPCStandard:
		return "pc-standard"
	case FormatPCExtended:
		return "pc-extended"
	case FormatPSXStandard:
		return "psx-standard"
	case FormatPSXExtended:
		return "psx-extended"
	default:
		return "unknown"
	}
}

// NeedsConversion reports whether archives of this format have to be
// converted before the PSX map loader can consume them
func (f Format) NeedsConversion() bool {
	return f == FormatPCStandard || f == FormatPCExtended
}

// Report is the outcome of format detection for one archive snapshot.
// It is produced once and read-only afterwards.
type Report struct {
	Format                 Format
	HasCompressedLumps     bool
	UsesFixedPointVertices bool
	MapCount               int
}

// Number of lumps making up one map behind its marker. Used as the
// scan window when looking for a specific map lump.
const mapLumpWindow = 11

// Detect classifies an opened archive as unknown / PC-style /
// PSX-style by inspecting marker lumps and record sizes. It never
// mutates the archive and is deterministic for a given snapshot.
//
// Marker presence alone is not trusted: level authors can include
// custom marker lumps, so the byte length of the first map's VERTEXES
// lump against the two known record sizes is the authoritative signal.
func Detect(a Archive) Report {
	var report Report

	// A map marker is the lump immediately preceding a THINGS lump
	firstMarker := -1
	for i := 1; i < a.NumLumps(); i++ {
		if a.LumpName(i) == "THINGS" {
			if firstMarker < 0 {
				firstMarker = i - 1
			}
			report.MapCount++
		}
	}

	// The compression marker is an independent property of single
	// lumps and never picks the format
	for i := 0; i < a.NumLumps(); i++ {
		if a.Compressed(i) {
			report.HasCompressedLumps = true
			break
		}
	}

	if report.MapCount == 0 {
		return report
	}

	_, hasPSXMarker := a.FindLump("MAP01")
	_, hasPCMarker := a.FindLump("E1M1")

	var (
		isPSX   bool
		decided bool
	)

	switch vertexLen := mapLumpSize(a, firstMarker, "VERTEXES"); {
	case vertexLen > 0 && vertexLen%psxVertexSize != 0:
		isPSX, decided = false, true

	case vertexLen > 0 && vertexLen%pcVertexSize != 0:
		isPSX, decided = true, true
	}

	if !decided {
		// The record size divides both ways (or there is no vertex
		// lump to measure): fall back to the marker signal
		switch {
		case hasPSXMarker:
			isPSX = true
		case hasPCMarker:
			isPSX = false
		default:
			// No recognized marker and no size signal
			return report
		}
	}

	if isPSX {
		report.Format = FormatPSXStandard
		report.UsesFixedPointVertices = true

		// The extended console variant grows the sector record
		if sectorLen := mapLumpSize(a, firstMarker, "SECTORS"); sectorLen > 0 &&
			sectorLen%psxSectorSizeExt == 0 && sectorLen%psxSectorSize != 0 {
			report.Format = FormatPSXExtended
		}
	} else {
		report.Format = FormatPCStandard
		if _, ok := findMapLump(a, firstMarker, "BEHAVIOR"); ok {
			report.Format = FormatPCExtended
		}
	}

	logrus.WithFields(logrus.Fields{
		"format": report.Format,
		"maps":   report.MapCount,
	}).Debug("detected archive format")

	return report
}

// findMapLump scans the lumps belonging to the map behind the given
// marker for a lump with the wanted name
func findMapLump(a Archive, marker int, name string) (int, bool) {
	for i := marker + 1; i <= marker+mapLumpWindow && i < a.NumLumps(); i++ {
		if a.LumpName(i) == name {
			return i, true
		}
	}
	return 0, false
}

func mapLumpSize(a Archive, marker int, name string) int {
	idx, ok := findMapLump(a, marker, name)
	if !ok {
		return -1
	}
	return a.RawSize(idx)
}
