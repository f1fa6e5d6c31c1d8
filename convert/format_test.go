package convert

import "testing"

func pcMapArchive(vertexLen int) fakeArchive {
	return fakeArchive{
		{name: "E1M1"},
		{name: "THINGS", data: make([]byte, 30)},
		{name: "LINEDEFS", data: make([]byte, 2*linedefSize)},
		{name: "SIDEDEFS", data: make([]byte, 2*sidedefSize)},
		{name: "VERTEXES", data: make([]byte, vertexLen)},
		{name: "SECTORS", data: make([]byte, 2*pcSectorSize)},
	}
}

func psxMapArchive(vertexLen, sectorLen int) fakeArchive {
	return fakeArchive{
		{name: "MAP01"},
		{name: "THINGS", data: make([]byte, 30)},
		{name: "LINEDEFS", data: make([]byte, 2*linedefSize)},
		{name: "SIDEDEFS", data: make([]byte, 2*sidedefSize)},
		{name: "VERTEXES", data: make([]byte, vertexLen)},
		{name: "SECTORS", data: make([]byte, sectorLen)},
		{name: "LEAFS", data: make([]byte, 8)},
	}
}

func TestDetectEmptyArchive(t *testing.T) {
	report := Detect(fakeArchive{})

	if report.Format != FormatUnknown {
		t.Errorf("unexpected format: expect=%v result=%v", FormatUnknown, report.Format)
	}
	if report.MapCount != 0 {
		t.Errorf("unexpected map count: expect=0 result=%d", report.MapCount)
	}
}

func TestDetectNoMapsIsUnknown(t *testing.T) {
	// Lumps but no map marker and no texture lumps: must stay Unknown
	// so the session treats the archive as pass-through
	report := Detect(fakeArchive{
		{name: "PLAYPAL", data: make([]byte, 768)},
		{name: "CREDIT", data: make([]byte, 4000)},
	})

	if report.Format != FormatUnknown {
		t.Errorf("unexpected format: expect=%v result=%v", FormatUnknown, report.Format)
	}
	if report.Format.NeedsConversion() {
		t.Error("unknown format must not need conversion")
	}
}

func TestDetectPCByVertexSize(t *testing.T) {
	// 3 PC vertices: 12 bytes, not a multiple of the PSX record size
	report := Detect(pcMapArchive(3 * pcVertexSize))

	if report.Format != FormatPCStandard {
		t.Errorf("unexpected format: expect=%v result=%v", FormatPCStandard, report.Format)
	}
	if report.MapCount != 1 {
		t.Errorf("unexpected map count: expect=1 result=%d", report.MapCount)
	}
	if report.UsesFixedPointVertices {
		t.Error("PC format must not use fixed-point vertices")
	}
	if !report.Format.NeedsConversion() {
		t.Error("PC format must need conversion")
	}
}

func TestDetectVertexSizeOverridesMarker(t *testing.T) {
	// A MAP01 marker alone is not trusted: a vertex lump length that
	// only fits the PC record size classifies PC regardless
	a := psxMapArchive(3*pcVertexSize, 2*psxSectorSize)
	report := Detect(a)

	if report.Format != FormatPCStandard {
		t.Errorf("unexpected format: expect=%v result=%v", FormatPCStandard, report.Format)
	}
}

func TestDetectPSXByMarker(t *testing.T) {
	// 2 vertices, 16 bytes: both record sizes divide evenly, the
	// MAP01 marker breaks the tie
	report := Detect(psxMapArchive(2*psxVertexSize, 2*psxSectorSize))

	if report.Format != FormatPSXStandard {
		t.Errorf("unexpected format: expect=%v result=%v", FormatPSXStandard, report.Format)
	}
	if !report.UsesFixedPointVertices {
		t.Error("PSX format must use fixed-point vertices")
	}
	if report.Format.NeedsConversion() {
		t.Error("PSX format must not need conversion")
	}
}

func TestDetectPSXExtendedSectors(t *testing.T) {
	// Sector lump length fitting only the extended record size
	report := Detect(psxMapArchive(2*psxVertexSize, 2*psxSectorSizeExt))

	if report.Format != FormatPSXExtended {
		t.Errorf("unexpected format: expect=%v result=%v", FormatPSXExtended, report.Format)
	}
}

func TestDetectPCExtendedBehavior(t *testing.T) {
	a := pcMapArchive(3 * pcVertexSize)
	a = append(a, fakeLump{name: "BEHAVIOR", data: make([]byte, 16)})
	report := Detect(a)

	if report.Format != FormatPCExtended {
		t.Errorf("unexpected format: expect=%v result=%v", FormatPCExtended, report.Format)
	}
	if !report.Format.NeedsConversion() {
		t.Error("extended PC format must need conversion")
	}
}

func TestDetectCompressedLumps(t *testing.T) {
	a := pcMapArchive(3 * pcVertexSize)
	a[1].compressed = true
	report := Detect(a)

	if !report.HasCompressedLumps {
		t.Error("compressed lump marker not reported")
	}
	if report.Format != FormatPCStandard {
		t.Errorf("compression must not influence the format: result=%v", report.Format)
	}
}

func TestDetectCountsAllMaps(t *testing.T) {
	a := pcMapArchive(3 * pcVertexSize)
	a = append(a, pcMapArchive(3*pcVertexSize)...)
	a[len(a)-6].name = "E1M2"

	report := Detect(a)
	if report.MapCount != 2 {
		t.Errorf("unexpected map count: expect=2 result=%d", report.MapCount)
	}
}

func TestFormatString(t *testing.T) {
	for format, expect := range map[Format]string{
		FormatUnknown:     "unknown",
		FormatPCStandard:  "pc-standard",
		FormatPCExtended:  "pc-extended",
		FormatPSXStandard: "psx-standard",
		FormatPSXExtended: "psx-extended",
	} {
		if format.String() != expect {
			t.Errorf("unexpected name for format %d: expect=%q result=%q", format, expect, format.String())
		}
	}
}
