// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.


package kuwahara

import (
	"bytes"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/valyala/fastrand"
)

func uniformImage(width, height int, c color.RGBA) *image.RGBA {
	img:=image.NewRGBA(image.Rect(0, 0, width, height))
	for y:=0; y<height; y++ {
		for x:=0; x<width; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func randomImage(width, height int) *image.RGBA {
	img:=image.NewRGBA(image.Rect(0, 0, width, height))
	rng:=fastrand.RNG{}
	for i:=0; i<len(img.Pix); i+=4 {
		img.Pix[i  ]=uint8(rng.Uint32n(256))
		img.Pix[i+1]=uint8(rng.Uint32n(256))
		img.Pix[i+2]=uint8(rng.Uint32n(256))
		img.Pix[i+3]=255
	}
	return img
}

func mustRender(t *testing.T, src, dst *image.RGBA, region image.Rectangle, params Params) {
	t.Helper()
	status, err:=Render(src, dst, region, params, nil)
	if err!=nil { t.Fatalf("Render: unexpected error %v", err) }
	if status!=StatusCompleted { t.Fatalf("Render: status=%v; want completed", status) }
}

// A uniform image has zero variance in every window, so any selection
// yields the same mean and filtering must be the identity
func TestUniformIdentityRGB(t *testing.T) {
	for _, radius:=range []int{3, 4, 7, 15} {
		for _, c:=range []color.RGBA{ {0,0,0,255}, {255,255,255,255}, {10,130,200,77} } {
			src:=uniformImage(21, 17, c)
			dst:=image.NewRGBA(src.Bounds())
			mustRender(t, src, dst, src.Bounds(), Params{Radius: radius, UseRGBChannels: true})
			if !bytes.Equal(src.Pix, dst.Pix) { t.Errorf("radius %d color %v: uniform image not preserved", radius, c) }
		}
	}
}

// Intensity mode quantizes brightness to a 0..100 scale, so identity only
// holds exactly for colors whose max channel survives the round trip
func TestUniformIdentityIntensity(t *testing.T) {
	for _, radius:=range []int{3, 4, 7} {
		for _, c:=range []color.RGBA{ {0,0,0,255}, {255,255,255,255}, {51,34,17,255}, {204,204,204,128}, {255,128,0,255} } {
			src:=uniformImage(19, 23, c)
			dst:=image.NewRGBA(src.Bounds())
			mustRender(t, src, dst, src.Bounds(), Params{Radius: radius, UseRGBChannels: false})
			for i:=0; i<len(src.Pix); i++ {
				d:=int(src.Pix[i])-int(dst.Pix[i])
				if d< -1 || d>1 { t.Fatalf("radius %d color %v: pix[%d]=%d; want %d within 1", radius, c, i, dst.Pix[i], src.Pix[i]) }
			}
		}
	}
}

// A single-pixel image: all windows degenerate to the one sample with zero
// variance, so the pixel must come back unchanged
func TestSinglePixel(t *testing.T) {
	src:=uniformImage(1, 1, color.RGBA{200, 100, 50, 31})
	dst:=image.NewRGBA(src.Bounds())
	mustRender(t, src, dst, src.Bounds(), Params{Radius: 3, UseRGBChannels: true})
	if !bytes.Equal(src.Pix, dst.Pix) { t.Errorf("RGB mode: single pixel %v changed to %v", src.Pix, dst.Pix) }

	src=uniformImage(1, 1, color.RGBA{255, 128, 0, 31})
	dst=image.NewRGBA(src.Bounds())
	mustRender(t, src, dst, src.Bounds(), Params{Radius: 3, UseRGBChannels: false})
	if !bytes.Equal(src.Pix, dst.Pix) { t.Errorf("intensity mode: single pixel %v changed to %v", src.Pix, dst.Pix) }
}

// Images narrower than the accumulation block: windows clamp to whatever
// pixels exist, the render must complete without reading out of bounds
func TestThinImage(t *testing.T) {
	src:=randomImage(3, 2)
	for _, useRGB:=range []bool{true, false} {
		dst1:=image.NewRGBA(src.Bounds())
		dst2:=image.NewRGBA(src.Bounds())
		mustRender(t, src, dst1, src.Bounds(), Params{Radius: 7, UseRGBChannels: useRGB})
		mustRender(t, src, dst2, src.Bounds(), Params{Radius: 7, UseRGBChannels: useRGB})
		if !bytes.Equal(dst1.Pix, dst2.Pix) { t.Errorf("useRGB=%v: thin image renders differ", useRGB) }
	}
}

// For a hard vertical black/white edge, one of the four windows at every
// pixel lies entirely on one side with zero variance, so no output pixel may
// take an intermediate gray value and the edge must stay pixel sharp
func TestVerticalEdgeSharp(t *testing.T) {
	width, height, edge:=32, 16, 16
	src:=image.NewRGBA(image.Rect(0, 0, width, height))
	for y:=0; y<height; y++ {
		for x:=0; x<width; x++ {
			if x<edge {
				src.SetRGBA(x, y, color.RGBA{0, 0, 0, 255})
			} else {
				src.SetRGBA(x, y, color.RGBA{255, 255, 255, 255})
			}
		}
	}

	for _, useRGB:=range []bool{true, false} {
		dst:=image.NewRGBA(src.Bounds())
		mustRender(t, src, dst, src.Bounds(), Params{Radius: 7, UseRGBChannels: useRGB})
		if !bytes.Equal(src.Pix, dst.Pix) {
			for i:=0; i<len(src.Pix); i++ {
				if src.Pix[i]!=dst.Pix[i] { t.Fatalf("useRGB=%v: pix[%d]=%d; want %d (edge blurred)", useRGB, i, dst.Pix[i], src.Pix[i]) }
			}
		}
	}
}

// Two renders of the same input and parameters must be byte identical
func TestDeterminism(t *testing.T) {
	src:=randomImage(64, 48)
	for _, params:=range []Params{ {Radius: 7, UseRGBChannels: true}, {Radius: 6, UseRGBChannels: false} } {
		dst1:=image.NewRGBA(src.Bounds())
		dst2:=image.NewRGBA(src.Bounds())
		mustRender(t, src, dst1, src.Bounds(), params)
		mustRender(t, src, dst2, src.Bounds(), params)
		if !bytes.Equal(dst1.Pix, dst2.Pix) { t.Errorf("params %+v: renders differ", params) }
	}
}

func TestAlphaPassthrough(t *testing.T) {
	src:=randomImage(33, 27)
	rng:=fastrand.RNG{}
	for i:=3; i<len(src.Pix); i+=4 {
		src.Pix[i]=uint8(rng.Uint32n(256))
	}
	for _, useRGB:=range []bool{true, false} {
		dst:=image.NewRGBA(src.Bounds())
		mustRender(t, src, dst, src.Bounds(), Params{Radius: 5, UseRGBChannels: useRGB})
		for i:=3; i<len(src.Pix); i+=4 {
			if dst.Pix[i]!=src.Pix[i] { t.Fatalf("useRGB=%v: alpha[%d]=%d; want %d", useRGB, i, dst.Pix[i], src.Pix[i]) }
		}
	}
}

// Intensity mode replaces brightness only; a pure red region with varying
// brightness must stay pure red after filtering
func TestIntensityPreservesHue(t *testing.T) {
	width, height:=16, 16
	src:=image.NewRGBA(image.Rect(0, 0, width, height))
	rng:=fastrand.RNG{}
	for y:=0; y<height; y++ {
		for x:=0; x<width; x++ {
			src.SetRGBA(x, y, color.RGBA{uint8(100+rng.Uint32n(101)), 0, 0, 255})
		}
	}
	dst:=image.NewRGBA(src.Bounds())
	mustRender(t, src, dst, src.Bounds(), Params{Radius: 5, UseRGBChannels: false})
	for i:=0; i<len(dst.Pix); i+=4 {
		if dst.Pix[i+1]!=0 || dst.Pix[i+2]!=0 { t.Fatalf("pixel %d: got G=%d B=%d; want pure red", i/4, dst.Pix[i+1], dst.Pix[i+2]) }
		if dst.Pix[i]<90 { t.Fatalf("pixel %d: red channel %d implausibly dark", i/4, dst.Pix[i]) }
	}
}

// Rendering a sub-region must write only that region, and its pixels must
// equal those of a full render, since each region recomputes its own halo
func TestRegionSubset(t *testing.T) {
	src:=randomImage(40, 30)
	full:=image.NewRGBA(src.Bounds())
	mustRender(t, src, full, src.Bounds(), Params{Radius: 7, UseRGBChannels: true})

	region:=image.Rect(10, 5, 25, 20)
	dst:=image.NewRGBA(src.Bounds())
	for i:=range dst.Pix { dst.Pix[i]=0xAB }
	mustRender(t, src, dst, region, Params{Radius: 7, UseRGBChannels: true})

	for y:=0; y<30; y++ {
		for x:=0; x<40; x++ {
			off:=dst.PixOffset(x, y)
			if image.Pt(x, y).In(region) {
				for k:=0; k<4; k++ {
					if dst.Pix[off+k]!=full.Pix[off+k] { t.Fatalf("(%d,%d) ch %d: region render %d != full render %d", x, y, k, dst.Pix[off+k], full.Pix[off+k]) }
				}
			} else {
				for k:=0; k<4; k++ {
					if dst.Pix[off+k]!=0xAB { t.Fatalf("(%d,%d) ch %d: pixel outside region was written", x, y, k) }
				}
			}
		}
	}
}

// Images whose bounds do not start at the origin must filter identically to
// their zero-based twins
func TestTranslatedBounds(t *testing.T) {
	src0:=randomImage(24, 18)
	srcT:=image.NewRGBA(image.Rect(5, 7, 5+24, 7+18))
	copy(srcT.Pix, src0.Pix)

	dst0:=image.NewRGBA(src0.Bounds())
	dstT:=image.NewRGBA(srcT.Bounds())
	params:=Params{Radius: 5, UseRGBChannels: true}
	mustRender(t, src0, dst0, src0.Bounds(), params)
	mustRender(t, srcT, dstT, srcT.Bounds(), params)
	if !bytes.Equal(dst0.Pix, dstT.Pix) { t.Errorf("translated bounds render differs from zero-based render") }
}

func TestDimensionMismatch(t *testing.T) {
	src:=uniformImage(8, 8, color.RGBA{1, 2, 3, 255})
	dst:=image.NewRGBA(image.Rect(0, 0, 8, 9))
	if _, err:=Render(src, dst, src.Bounds(), Params{Radius: 7, UseRGBChannels: true}, nil); err==nil {
		t.Errorf("expected dimension mismatch error, got nil")
	}
}

func TestInvalidRadius(t *testing.T) {
	src:=uniformImage(8, 8, color.RGBA{1, 2, 3, 255})
	dst:=image.NewRGBA(src.Bounds())
	for _, radius:=range []int{2, 200} {
		if _, err:=Render(src, dst, src.Bounds(), Params{Radius: radius, UseRGBChannels: true}, nil); err==nil {
			t.Errorf("radius %d: expected error, got nil", radius)
		}
	}
}

// Mean and variance of one kernelSize x kernelSize block anchored at (ax,ay),
// clamped to the image bounds, computed directly without tables
func naiveBlockStats(src *image.RGBA, ax, ay, kernelSize int) (mean, vari [3]float64) {
	b:=src.Bounds()
	x0, x1, y0, y1:=ax, ax+kernelSize, ay, ay+kernelSize
	if x0<b.Min.X { x0=b.Min.X }
	if x1>b.Max.X { x1=b.Max.X }
	if y0<b.Min.Y { y0=b.Min.Y }
	if y1>b.Max.Y { y1=b.Max.Y }

	var sum, sumSq [3]int64
	for y:=y0; y<y1; y++ {
		for x:=x0; x<x1; x++ {
			off:=src.PixOffset(x, y)
			for ch:=0; ch<3; ch++ {
				v:=int64(src.Pix[off+ch])
				sum[ch]+=v
				sumSq[ch]+=v*v
			}
		}
	}
	n:=float64((x1-x0)*(y1-y0))
	for ch:=0; ch<3; ch++ {
		mean[ch]=float64(sum[ch])/n
		vari[ch]=float64(sumSq[ch])-float64(sum[ch])*float64(sum[ch])/n
	}
	return mean, vari
}

// Applies the filter pixel by pixel straight from the definition: four
// quadrant windows in fixed order, per-channel minimum trackers sharing one
// best window, updated in R,G,B order with strictly-lower replacement
func naiveFilterRGB(src *image.RGBA, radius int) *image.RGBA {
	kernelSize, kernelOffset:=KernelGeometry(radius)
	b:=src.Bounds()
	dst:=image.NewRGBA(b)
	for y:=b.Min.Y; y<b.Max.Y; y++ {
		for x:=b.Min.X; x<b.Max.X; x++ {
			anchors:=[4][2]int{
				{x-kernelOffset, y-kernelOffset},
				{x,              y-kernelOffset},
				{x,              y},
				{x-kernelOffset, y},
			}
			var means [4][3]float64
			minR, minG, minB:=math.MaxFloat64, math.MaxFloat64, math.MaxFloat64
			best:=0
			for i, a:=range anchors {
				mean, vari:=naiveBlockStats(src, a[0], a[1], kernelSize)
				means[i]=mean
				if vari[0]<minR { minR=vari[0]; best=i }
				if vari[1]<minG { minG=vari[1]; best=i }
				if vari[2]<minB { minB=vari[2]; best=i }
			}
			off:=dst.PixOffset(x, y)
			dst.Pix[off  ]=clampToByte(means[best][0]+0.5)
			dst.Pix[off+1]=clampToByte(means[best][1]+0.5)
			dst.Pix[off+2]=clampToByte(means[best][2]+0.5)
			dst.Pix[off+3]=src.Pix[src.PixOffset(x, y)+3]
		}
	}
	return dst
}

// The table-based render must match the direct per-pixel computation byte
// for byte, across odd and even radii
func TestRenderMatchesDirectComputation(t *testing.T) {
	src:=randomImage(25, 19)
	for _, radius:=range []int{3, 4, 7, 10} {
		want:=naiveFilterRGB(src, radius)
		dst:=image.NewRGBA(src.Bounds())
		mustRender(t, src, dst, src.Bounds(), Params{Radius: radius, UseRGBChannels: true})
		if !bytes.Equal(want.Pix, dst.Pix) {
			for i:=0; i<len(want.Pix); i++ {
				if want.Pix[i]!=dst.Pix[i] { t.Fatalf("radius %d: pix[%d]=%d; want %d", radius, i, dst.Pix[i], want.Pix[i]) }
			}
		}
	}
}

// A pre-signaled abort flag must stop the render at the first row boundary,
// before any output pixel is written
func TestAbortPreSignaled(t *testing.T) {
	src:=randomImage(32, 32)
	abort:=&AbortFlag{}
	abort.Signal()
	for _, useRGB:=range []bool{true, false} {
		dst:=image.NewRGBA(src.Bounds())
		for i:=range dst.Pix { dst.Pix[i]=0xAB }
		status, err:=Render(src, dst, src.Bounds(), Params{Radius: 7, UseRGBChannels: useRGB}, abort)
		if err!=nil { t.Fatalf("useRGB=%v: unexpected error %v", useRGB, err) }
		if status!=StatusAborted { t.Fatalf("useRGB=%v: status=%v; want aborted", useRGB, status) }
		for i:=range dst.Pix {
			if dst.Pix[i]!=0xAB { t.Fatalf("useRGB=%v: dst written despite pre-signaled abort", useRGB) }
		}
	}
}
