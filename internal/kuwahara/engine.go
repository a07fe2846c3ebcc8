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


// Package kuwahara implements an edge-preserving noise reduction filter.
// For every pixel it examines four overlapping square windows anchored at the
// pixel and replaces the pixel with the mean of the window with the lowest
// variance. Windows crossing an edge have high variance and are rejected, so
// edges stay sharp while flat regions are smoothed.
package kuwahara

import (
	"errors"
	"fmt"
	"image"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Renders the filter for one rectangular region of src into dst. src and dst
// must have identical bounds; inside the region dst R,G,B are overwritten and
// alpha is copied from src. src is never written, so disjoint regions of the
// same image pair can render concurrently. Returns StatusAborted once the
// abort flag is observed at a row boundary, leaving the region in an
// undefined partial state
func Render(src, dst *image.RGBA, region image.Rectangle, params Params, abort *AbortFlag) (Status, error) {
	if src==nil || dst==nil {
		return StatusCompleted, errors.New("nil source or destination image")
	}
	if !src.Bounds().Eq(dst.Bounds()) {
		return StatusCompleted, errors.New(fmt.Sprintf("destination bounds %v differ from source bounds %v", dst.Bounds(), src.Bounds()))
	}
	if err:=params.Valid(); err!=nil {
		return StatusCompleted, err
	}
	region=region.Intersect(src.Bounds())
	if region.Empty() {
		return StatusCompleted, nil
	}

	if params.UseRGBChannels {
		return renderRGB(src, dst, region, params.Radius, abort), nil
	}
	return renderIntensity(src, dst, region, params.Radius, abort), nil
}

// Per-tile statistics tables. They cover the region extended by kernelOffset
// pixels to the top and left, so the selector can address all four candidate
// windows with non-negative indices. Row-major with stride width
type tables struct {
	width, height int
	mean, vari    [][]float64 // one mean and one variance table per channel
}

func newTables(region image.Rectangle, kernelOffset, channels int) *tables {
	t:=&tables{
		width : region.Dx()+kernelOffset,
		height: region.Dy()+kernelOffset,
		mean  : make([][]float64, channels),
		vari  : make([][]float64, channels),
	}
	for ch:=0; ch<channels; ch++ {
		t.mean[ch]=getArrayOfFloat64FromPool(t.width*t.height)
		t.vari[ch]=getArrayOfFloat64FromPool(t.width*t.height)
	}
	return t
}

func (t *tables) free() {
	for ch:=range t.mean {
		putArrayOfFloat64IntoPool(t.mean[ch])
		putArrayOfFloat64IntoPool(t.vari[ch])
	}
	t.mean, t.vari=nil, nil
}

// The four candidate windows for a pixel, as table offsets from the pixel
// position, in fixed visiting order: top-left, top-right, bottom-right,
// bottom-left. Ties keep the earliest visited window
func windowOffsets(kernelOffset int) [4][2]int {
	return [4][2]int{ {0,0}, {kernelOffset,0}, {kernelOffset,kernelOffset}, {0,kernelOffset} }
}

// Renders one region with independent R,G,B channel statistics
func renderRGB(src, dst *image.RGBA, region image.Rectangle, radius int, abort *AbortFlag) Status {
	kernelSize, kernelOffset:=KernelGeometry(radius)
	bounds:=src.Bounds()

	t:=newTables(region, kernelOffset, 3)
	defer t.free()
	meanR, meanG, meanB:=t.mean[0], t.mean[1], t.mean[2]
	variR, variG, variB:=t.vari[0], t.vari[1], t.vari[2]

	// Accumulation pass. The window anchored at (x,y) covers kernelSize x
	// kernelSize source pixels starting there, clamped to the image bounds;
	// pixels outside the image are excluded, shrinking the sample count near
	// borders. Results are stored shifted by +kernelOffset so the table
	// index stays non-negative for anchors in the top-left halo
	for y:=region.Min.Y-kernelOffset; y<region.Max.Y; y++ {
		if abort.Signaled() { return StatusAborted }
		y0, y1:=y, y+kernelSize
		if y0<bounds.Min.Y { y0=bounds.Min.Y }
		if y1>bounds.Max.Y { y1=bounds.Max.Y }
		trow:=(y-region.Min.Y+kernelOffset)*t.width

		for x:=region.Min.X-kernelOffset; x<region.Max.X; x++ {
			x0, x1:=x, x+kernelSize
			if x0<bounds.Min.X { x0=bounds.Min.X }
			if x1>bounds.Max.X { x1=bounds.Max.X }

			var sumR, sumG, sumB, sumSqR, sumSqG, sumSqB int64
			for by:=y0; by<y1; by++ {
				off:=src.PixOffset(x0, by)
				for bx:=x0; bx<x1; bx++ {
					r, g, b:=int64(src.Pix[off]), int64(src.Pix[off+1]), int64(src.Pix[off+2])
					sumR+=r
					sumG+=g
					sumB+=b
					sumSqR+=r*r
					sumSqG+=g*g
					sumSqB+=b*b
					off+=4
				}
			}

			// variance=sumSq-sum*sum/count is a scaled variance proxy, not
			// normalized by count a second time. Only the relative ordering
			// across the four candidate windows matters
			n:=float64((x1-x0)*(y1-y0))
			ti:=trow+(x-region.Min.X+kernelOffset)
			meanR[ti]=float64(sumR)/n
			meanG[ti]=float64(sumG)/n
			meanB[ti]=float64(sumB)/n
			variR[ti]=float64(sumSqR)-float64(sumR)*float64(sumR)/n
			variG[ti]=float64(sumSqG)-float64(sumG)*float64(sumG)/n
			variB[ti]=float64(sumSqB)-float64(sumB)*float64(sumB)/n
		}
	}

	// Selection pass. The three channels keep individual minimum trackers but
	// share a single best window index, updated in R,G,B order per window:
	// whichever channel comparison last improved on its minimum decides the
	// window all three means are fetched from. This reproduces the reference
	// behavior exactly; see DESIGN.md before changing it to an independent
	// per-channel selection, which alters output pixel values
	offs:=windowOffsets(kernelOffset)
	for y:=region.Min.Y; y<region.Max.Y; y++ {
		if abort.Signaled() { return StatusAborted }
		for x:=region.Min.X; x<region.Max.X; x++ {
			base:=(y-region.Min.Y)*t.width+(x-region.Min.X)
			minR, minG, minB:=math.MaxFloat64, math.MaxFloat64, math.MaxFloat64
			best:=base
			for _, o:=range offs {
				ti:=base+o[1]*t.width+o[0]
				if v:=variR[ti]; v<minR { minR=v; best=ti }
				if v:=variG[ti]; v<minG { minG=v; best=ti }
				if v:=variB[ti]; v<minB { minB=v; best=ti }
			}

			doff:=dst.PixOffset(x, y)
			dst.Pix[doff  ]=clampToByte(meanR[best]+0.5) // +0.5 rounds half up via truncation
			dst.Pix[doff+1]=clampToByte(meanG[best]+0.5)
			dst.Pix[doff+2]=clampToByte(meanB[best]+0.5)
			dst.Pix[doff+3]=src.Pix[src.PixOffset(x, y)+3]
		}
	}
	return StatusCompleted
}

// Renders one region with single-channel HSV value statistics. Hue and
// saturation are taken from the source pixel; only brightness is replaced by
// the filtered statistic
func renderIntensity(src, dst *image.RGBA, region image.Rectangle, radius int, abort *AbortFlag) Status {
	intensityLUTOnce.Do(initIntensityLUT)
	kernelSize, kernelOffset:=KernelGeometry(radius)
	bounds:=src.Bounds()

	t:=newTables(region, kernelOffset, 1)
	defer t.free()
	meanI, variI:=t.mean[0], t.vari[0]

	// Accumulation pass, identical loop structure to the RGB mode but over
	// the derived intensity value only
	for y:=region.Min.Y-kernelOffset; y<region.Max.Y; y++ {
		if abort.Signaled() { return StatusAborted }
		y0, y1:=y, y+kernelSize
		if y0<bounds.Min.Y { y0=bounds.Min.Y }
		if y1>bounds.Max.Y { y1=bounds.Max.Y }
		trow:=(y-region.Min.Y+kernelOffset)*t.width

		for x:=region.Min.X-kernelOffset; x<region.Max.X; x++ {
			x0, x1:=x, x+kernelSize
			if x0<bounds.Min.X { x0=bounds.Min.X }
			if x1>bounds.Max.X { x1=bounds.Max.X }

			var sum, sumSq float64
			for by:=y0; by<y1; by++ {
				off:=src.PixOffset(x0, by)
				for bx:=x0; bx<x1; bx++ {
					v:=intensityOf(src.Pix[off], src.Pix[off+1], src.Pix[off+2])
					sum+=v
					sumSq+=v*v
					off+=4
				}
			}

			n:=float64((x1-x0)*(y1-y0))
			ti:=trow+(x-region.Min.X+kernelOffset)
			meanI[ti]=sum/n
			variI[ti]=sumSq-sum*sum/n
		}
	}

	// Selection pass. A single channel, so this is a true per-pixel minimum
	offs:=windowOffsets(kernelOffset)
	for y:=region.Min.Y; y<region.Max.Y; y++ {
		if abort.Signaled() { return StatusAborted }
		for x:=region.Min.X; x<region.Max.X; x++ {
			base:=(y-region.Min.Y)*t.width+(x-region.Min.X)
			minI:=math.MaxFloat64
			best:=base
			for _, o:=range offs {
				ti:=base+o[1]*t.width+o[0]
				if v:=variI[ti]; v<minI { minI=v; best=ti }
			}

			val:=meanI[best]+0.5
			if val<0   { val=0   }
			if val>100 { val=100 }
			val=float64(int(val)) // round half up to the 0..100 value scale

			soff:=src.PixOffset(x, y)
			col:=colorful.Color{
				R: float64(src.Pix[soff  ])/255.0,
				G: float64(src.Pix[soff+1])/255.0,
				B: float64(src.Pix[soff+2])/255.0,
			}
			h, s, _:=col.Hsv()
			out:=colorful.Hsv(h, s, val/100.0)

			doff:=dst.PixOffset(x, y)
			dst.Pix[doff  ]=clampToByte(out.R*255.0+0.5)
			dst.Pix[doff+1]=clampToByte(out.G*255.0+0.5)
			dst.Pix[doff+2]=clampToByte(out.B*255.0+0.5)
			dst.Pix[doff+3]=src.Pix[soff+3]
		}
	}
	return StatusCompleted
}

func clampToByte(v float64) uint8 {
	if v<0   { return 0   }
	if v>255 { return 255 }
	return uint8(v)
}
