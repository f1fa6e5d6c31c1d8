package main

import (
	"fmt"
	"os"
	"path"

	"github.com/Luzifer/go_helpers/v2/str"
	"github.com/Luzifer/rconfig/v2"
	"github.com/Luzifer/wad-convert/convert"
	"github.com/Luzifer/wad-convert/wad"
	"github.com/sirupsen/logrus"
)

const dirPermissions = 0x750

// Lump names making up one map behind its marker
var mapLumpNames = []string{
	"THINGS", "LINEDEFS", "SIDEDEFS", "VERTEXES", "SEGS",
	"SSECTORS", "NODES", "SECTORS", "REJECT", "BLOCKMAP",
	"BEHAVIOR", "LEAFS",
}

var (
	cfg = struct {
		Dest           string `flag:"dest,d" default:"." description:"Path prefix to use to write converted lumps to"`
		Convert        bool   `flag:"convert,c" default:"false" description:"Convert maps and textures (if not given the detection report is printed and lumps are listed)"`
		LogLevel       string `flag:"log-level" default:"info" description:"Log level (debug, info, warn, error, fatal)"`
		VersionAndExit bool   `flag:"version" default:"false" description:"Prints current version and exits"`
	}{}

	version = "dev"
)

func initApp() (err error) {
	if err = rconfig.ParseAndValidate(&cfg); err != nil {
		return fmt.Errorf("parsing CLI options: %w", err)
	}

	l, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parsing log-level: %w", err)
	}
	logrus.SetLevel(l)

	return nil
}

func main() {
	var err error
	if err = initApp(); err != nil {
		logrus.WithError(err).Fatal("initializing app")
	}

	if cfg.VersionAndExit {
		fmt.Printf("wad-convert %s\n", version) //nolint:forbidigo
		os.Exit(0)
	}

	var (
		archive string
		maps    []string
	)

	switch len(rconfig.Args()) {
	case 1:
		// No positional arguments
		logrus.Fatal("no WAD archive given")

	case 2: //nolint:mnd
		archive = rconfig.Args()[1]

	default:
		archive = rconfig.Args()[1]
		maps = rconfig.Args()[2:]
	}

	f, err := os.Open(archive) //#nosec:G304 // Intended to open arbitrary files
	if err != nil {
		logrus.WithError(err).Fatal("opening input file")
	}
	defer f.Close() //nolint:errcheck // will be closed by program exit

	r, err := wad.NewReader(f)
	if err != nil {
		logrus.WithError(err).Fatal("reading WAD file headers")
	}

	report := convert.Detect(r)
	logrus.WithFields(logrus.Fields{
		"format":     report.Format,
		"maps":       report.MapCount,
		"compressed": report.HasCompressedLumps,
		"fixedpoint": report.UsesFixedPointVertices,
	}).Info("detected archive format")

	if !cfg.Convert {
		for _, l := range r.Lumps {
			fmt.Println(l.Name) //nolint:forbidigo // Intended to print lump list
		}
		return
	}

	if !report.Format.NeedsConversion() {
		logrus.Info("archive needs no conversion")
		return
	}

	session := convert.NewSession(r, nil)
	if err = session.Begin(report.Format); err != nil {
		logrus.WithError(err).Fatal("starting conversion session")
	}
	defer session.End()

	for _, marker := range mapMarkers(r) {
		if !str.StringInSlice(marker.name, maps) && len(maps) > 0 {
			// Maps to convert are given but this is not mentioned
			continue
		}

		if err = convertMap(r, session, marker); err != nil {
			logrus.WithError(err).WithField("map", marker.name).Fatal("converting map")
		}
	}

	if err = writeTextures(session); err != nil {
		logrus.WithError(err).Fatal("writing composited textures")
	}
}

type mapMarker struct {
	name string
	idx  int
}

// mapMarkers locates the map marker lumps: every lump immediately
// followed by a THINGS lump starts one map
func mapMarkers(r *wad.Reader) (markers []mapMarker) {
	for i := 1; i < r.NumLumps(); i++ {
		if r.LumpName(i) == "THINGS" {
			markers = append(markers, mapMarker{name: r.LumpName(i - 1), idx: i - 1})
		}
	}
	return markers
}

func convertMap(r *wad.Reader, session *convert.Session, marker mapMarker) error {
	destDir := path.Join(cfg.Dest, marker.name)
	if err := os.MkdirAll(destDir, dirPermissions); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}

	for i := marker.idx + 1; i < r.NumLumps(); i++ {
		name := r.LumpName(i)
		if !str.StringInSlice(name, mapLumpNames) {
			// First lump not belonging to the map ends it
			break
		}

		src, err := r.ReadLump(i)
		if err != nil {
			return fmt.Errorf("reading lump %q: %w", name, err)
		}

		dst := make([]byte, session.SizeOf(name, len(src)))
		n, err := session.Convert(name, src, dst)
		if err != nil {
			logrus.WithError(err).WithField("lump", name).Warn("skipping malformed lump")
			continue
		}

		if err = os.WriteFile(path.Join(destDir, name+".lmp"), dst[:n], 0o600); err != nil {
			return fmt.Errorf("writing lump %q: %w", name, err)
		}

		logrus.WithFields(logrus.Fields{
			"lump": name,
			"size": n,
		}).Debug("lump converted")
	}

	logrus.WithField("map", marker.name).Info("map converted")
	return nil
}

func writeTextures(session *convert.Session) error {
	reg := session.Registry()
	if reg.Count() == 0 {
		return nil
	}

	destDir := path.Join(cfg.Dest, "textures")
	if err := os.MkdirAll(destDir, dirPermissions); err != nil {
		return fmt.Errorf("creating texture directory: %w", err)
	}

	for i := 0; i < reg.Count(); i++ {
		lump, err := session.CompositeTexture(reg.Name(i))
		if err != nil {
			return fmt.Errorf("compositing %q: %w", reg.Name(i), err)
		}

		if err = os.WriteFile(path.Join(destDir, reg.Name(i)+".lmp"), lump.Data, 0o600); err != nil {
			return fmt.Errorf("writing texture %q: %w", reg.Name(i), err)
		}
	}

	logrus.WithField("textures", reg.Count()).Info("textures composited")
	return nil
}
