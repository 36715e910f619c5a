// Command filecam meters still image files as if they were camera
// frames: scene metering from the supplied exposure triple, then zonal
// metering over each image itself. Point it at a single image or at a
// directory to replay every image in it. Useful for checking the
// metering engine against photographs with known exposures.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/kestrel-optics/exposure.report/internal/vision"
	"github.com/kestrel-optics/exposure.report/internal/vision/l5meter"
)

type flags struct {
	apertureN float64
	shutterS  float64
	iso       float64
	targetISO float64
	maxWidth  int
	asJSON    bool
}

func main() {
	var f flags
	flag.Float64Var(&f.apertureN, "aperture", 5.6, "aperture the images were taken at")
	flag.Float64Var(&f.shutterS, "shutter", 1.0/250, "shutter time the images were taken at, seconds")
	flag.Float64Var(&f.iso, "iso", 100, "ISO the images were taken at")
	flag.Float64Var(&f.targetISO, "target-iso", 100, "ISO to recommend exposures for")
	flag.IntVar(&f.maxWidth, "max-width", 1600, "downscale wider images before metering (0 disables)")
	flag.BoolVar(&f.asJSON, "json", false, "emit results as JSON")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: filecam [flags] <image-or-directory>\n")
		flag.PrintDefaults()
		os.Exit(2)
	}

	paths, err := collectImages(flag.Arg(0))
	if err != nil {
		log.Fatalf("%v", err)
	}

	params := l5meter.DefaultParams()
	params.TargetISO = f.targetISO
	engine := l5meter.NewEngine(params)

	for _, path := range paths {
		if err := meterOne(engine, path, f); err != nil {
			log.Fatalf("%s: %v", path, err)
		}
	}
}

// collectImages resolves a path to the list of images to meter: the
// path itself for a file, or every image file directly inside it for a
// directory, sorted by name.
func collectImages(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", path, err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png", ".tif", ".tiff", ".bmp":
			paths = append(paths, filepath.Join(path, entry.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no image files in %s", path)
	}
	sort.Strings(paths)
	return paths, nil
}

func meterOne(engine *l5meter.Engine, path string, f flags) error {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	if f.maxWidth > 0 && img.Bounds().Dx() > f.maxWidth {
		img = imaging.Resize(img, f.maxWidth, 0, imaging.Lanczos)
	}

	// Repack into the BGRA layout the capture path uses.
	nrgba := imaging.Clone(img)
	w, h := nrgba.Rect.Dx(), nrgba.Rect.Dy()
	stride := w * 4
	pixels := make([]byte, h*stride)
	for y := 0; y < h; y++ {
		src := nrgba.Pix[y*nrgba.Stride:]
		dst := pixels[y*stride:]
		for x := 0; x < w; x++ {
			dst[x*4] = src[x*4+2]
			dst[x*4+1] = src[x*4+1]
			dst[x*4+2] = src[x*4]
			dst[x*4+3] = src[x*4+3]
		}
	}
	frame := &vision.FrameBuffer{Width: w, Height: h, Stride: stride, Pixels: pixels}

	scene, err := engine.Scene(vision.ExposureTriple{ApertureN: f.apertureN, ShutterS: f.shutterS, ISO: f.iso})
	if err != nil {
		return fmt.Errorf("scene metering: %w", err)
	}
	zonal, err := engine.Zonal(frame, vision.FullFrame())
	if err != nil {
		return fmt.Errorf("zonal metering: %w", err)
	}

	if f.asJSON {
		out := map[string]interface{}{"file": path, "scene": scene, "zonal": zonal}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		return nil
	}

	fmt.Printf("%s\n", path)
	fmt.Printf("  scene: EV100 %.2f  ->  %s\n", scene.EV100, scene.Main)
	for _, alt := range scene.Alternatives {
		fmt.Printf("    alt: %s\n", alt)
	}
	fmt.Printf("  zonal: ΔEV %+.2f  ->  %s\n", zonal.DeltaEV, zonal.Main)
	return nil
}
