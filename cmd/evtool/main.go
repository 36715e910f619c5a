// Command evtool does exposure-value arithmetic from the command line.
// Given any two of aperture/shutter plus ISO it reports the EV100; given
// an EV100 it solves the missing leg of the exposure triangle.
package main

import (
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/kestrel-optics/exposure.report/internal/vision/l5meter"
)

// parseShutter accepts either a decimal ("0.004") or photographic
// fraction notation ("1/250").
func parseShutter(s string) (float64, error) {
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid shutter %q: %w", s, err)
		}
		d, err := strconv.ParseFloat(den, 64)
		if err != nil || d == 0 {
			return 0, fmt.Errorf("invalid shutter %q", s)
		}
		return n / d, nil
	}
	return strconv.ParseFloat(s, 64)
}

func main() {
	var apertureN float64
	var shutterStr string
	var iso float64
	var ev float64

	flag.Float64Var(&apertureN, "aperture", 0, "aperture f-number (e.g. 5.6)")
	flag.StringVar(&shutterStr, "shutter", "", "shutter time in seconds (e.g. 1/250 or 0.004)")
	flag.Float64Var(&iso, "iso", 100, "film/sensor speed")
	flag.Float64Var(&ev, "ev", 0, "EV100 to solve against (enables solve mode)")
	flag.Parse()

	var shutterS float64
	if shutterStr != "" {
		var err error
		shutterS, err = parseShutter(shutterStr)
		if err != nil {
			log.Fatalf("parse shutter: %v", err)
		}
	}

	switch {
	case ev != 0 && apertureN > 0:
		t, err := l5meter.SolveShutter(ev, apertureN, iso)
		if err != nil {
			log.Fatalf("solve shutter: %v", err)
		}
		fmt.Println(l5meter.Result{ApertureN: apertureN, ShutterS: t, ISO: iso})

	case ev != 0 && shutterS > 0:
		n, err := l5meter.SolveAperture(ev, shutterS, iso)
		if err != nil {
			log.Fatalf("solve aperture: %v", err)
		}
		fmt.Println(l5meter.Result{ApertureN: n, ShutterS: shutterS, ISO: iso})

	case apertureN > 0 && shutterS > 0:
		v, err := l5meter.EV100(apertureN, shutterS, iso)
		if err != nil {
			log.Fatalf("compute ev: %v", err)
		}
		fmt.Printf("EV100 %.2f (%s)\n", v, l5meter.Result{ApertureN: apertureN, ShutterS: shutterS, ISO: iso})

	default:
		log.Fatalf("need -aperture and -shutter for EV100, or -ev with one of -aperture/-shutter to solve the other")
	}
}
