package l4overlay

import (
	"math"
	"testing"

	"github.com/kestrel-optics/exposure.report/internal/vision/l1tensor"
	"github.com/kestrel-optics/exposure.report/internal/vision/l3subject"
)

func TestClassColorDeterministic(t *testing.T) {
	r1, g1, b1 := ClassColor(7)
	r2, g2, b2 := ClassColor(7)
	if r1 != r2 || g1 != g2 || b1 != b2 {
		t.Error("same class produced different colors")
	}
	// Class 0 must not map to pure black, where it would vanish over
	// dark frames.
	r, g, b := ClassColor(0)
	if r == 0 && g == 0 && b == 0 {
		t.Error("class 0 mapped to pure black")
	}
	// Adjacent classes should differ visibly.
	r3, g3, b3 := ClassColor(8)
	if r1 == r3 && g1 == g3 && b1 == b3 {
		t.Error("adjacent classes share a color")
	}
}

func TestRasterizeAlpha(t *testing.T) {
	index := []int32{
		1, 1,
		0, 0,
	}
	subject := l3subject.Choice{Class: 1, Name: "person"}
	img := Rasterize(index, 2, 2, subject)

	if b := img.Bounds(); b.Dx() != 2 || b.Dy() != 2 {
		t.Fatalf("overlay bounds %v, want 2x2", b)
	}
	// Top row is the subject, bottom row is not.
	if a := img.Pix[3]; a != AlphaSubject {
		t.Errorf("subject alpha = %d, want %d", a, AlphaSubject)
	}
	if a := img.Pix[img.PixOffset(0, 1)+3]; a != AlphaOther {
		t.Errorf("background alpha = %d, want %d", a, AlphaOther)
	}
}

func TestRasterizePremultiplied(t *testing.T) {
	index := []int32{5}
	img := Rasterize(index, 1, 1, l3subject.Choice{Class: l3subject.NoSubject})

	r, g, b := ClassColor(5)
	wantR := uint8(uint32(r) * AlphaOther / 255)
	wantG := uint8(uint32(g) * AlphaOther / 255)
	wantB := uint8(uint32(b) * AlphaOther / 255)
	if img.Pix[0] != wantR || img.Pix[1] != wantG || img.Pix[2] != wantB {
		t.Errorf("premultiplied pixel = (%d,%d,%d), want (%d,%d,%d)",
			img.Pix[0], img.Pix[1], img.Pix[2], wantR, wantG, wantB)
	}
	// Premultiplied channels never exceed alpha.
	for i, c := range img.Pix[:3] {
		if uint32(c) > uint32(img.Pix[3]) {
			t.Errorf("channel %d (%d) exceeds alpha %d", i, c, img.Pix[3])
		}
	}
}

func TestCoverageSortedAndSums(t *testing.T) {
	labels := l1tensor.NewLabelTable([]string{"sky", "ground", "person"})
	stats := l1tensor.NewClassStats(3)
	for i := 0; i < 60; i++ {
		stats.Add(0, 0, 0, 0)
	}
	for i := 0; i < 30; i++ {
		stats.Add(2, 0, 0, 0)
	}
	for i := 0; i < 10; i++ {
		stats.Add(1, 0, 0, 0)
	}

	list := Coverage(stats, labels)
	if len(list) != 3 {
		t.Fatalf("coverage rows = %d, want 3", len(list))
	}
	if list[0].Name != "sky" || list[1].Name != "person" || list[2].Name != "ground" {
		t.Errorf("order = %s, %s, %s; want sky, person, ground",
			list[0].Name, list[1].Name, list[2].Name)
	}
	sum := 0.0
	for _, c := range list {
		sum += c.Percent
	}
	if math.Abs(sum-100) > 1e-9 {
		t.Errorf("percentages sum to %f, want 100", sum)
	}
}

func TestCoverageSkipsEmptyClasses(t *testing.T) {
	labels := l1tensor.NewLabelTable([]string{"a", "b", "c"})
	stats := l1tensor.NewClassStats(3)
	stats.Add(1, 0, 0, 0)

	list := Coverage(stats, labels)
	if len(list) != 1 || list[0].Class != 1 {
		t.Errorf("coverage = %+v, want only class 1", list)
	}
}

func TestCoverageEmpty(t *testing.T) {
	labels := l1tensor.NewLabelTable(nil)
	if list := Coverage(l1tensor.NewClassStats(4), labels); list != nil {
		t.Errorf("empty stats coverage = %+v, want nil", list)
	}
	if list := Coverage(nil, labels); list != nil {
		t.Errorf("nil stats coverage = %+v, want nil", list)
	}
}
