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


// Package stats summarizes the channel distributions of RGBA images, for
// log output and for measuring the smoothing effect of a filter pass
package stats

import (
	"fmt"
	"image"

	"github.com/valyala/fastrand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary of one image channel, in 8-bit channel units
type Channel struct {
	Min    float64
	Mean   float64
	StdDev float64
	Max    float64
}

func (c Channel) String() string {
	return fmt.Sprintf("min %.0f mean %.1f stddev %.2f max %.0f", c.Min, c.Mean, c.StdDev, c.Max)
}

// Per-channel summary statistics of an RGBA image. Alpha is not summarized,
// filters pass it through unchanged
type Stats struct {
	R, G, B Channel
	Pixels  int
	Sampled bool // true if computed from a random subsample
}

func (s *Stats) String() string {
	suffix:=""
	if s.Sampled { suffix=" (sampled)" }
	return fmt.Sprintf("R[%v] G[%v] B[%v]%s", s.R, s.G, s.B, suffix)
}

// Calculates exact per-channel statistics by visiting every pixel
func NewStats(img *image.RGBA) *Stats {
	bounds:=img.Bounds()
	numPixels:=bounds.Dx()*bounds.Dy()
	if numPixels==0 { return &Stats{} }
	rs, gs, bs:=make([]float64, 0, numPixels), make([]float64, 0, numPixels), make([]float64, 0, numPixels)
	for y:=bounds.Min.Y; y<bounds.Max.Y; y++ {
		off:=img.PixOffset(bounds.Min.X, y)
		for x:=bounds.Min.X; x<bounds.Max.X; x++ {
			rs=append(rs, float64(img.Pix[off  ]))
			gs=append(gs, float64(img.Pix[off+1]))
			bs=append(bs, float64(img.Pix[off+2]))
			off+=4
		}
	}
	return &Stats{
		R:      channelOf(rs),
		G:      channelOf(gs),
		B:      channelOf(bs),
		Pixels: numPixels,
	}
}

// Calculates fast approximate per-channel statistics of a (presumably large)
// image by subsampling the given number of pixels. Falls back to the exact
// calculation when the image has no more pixels than that
func NewStatsSampled(img *image.RGBA, numSamples int) *Stats {
	bounds:=img.Bounds()
	numPixels:=bounds.Dx()*bounds.Dy()
	if numPixels<=numSamples {
		return NewStats(img)
	}

	rs, gs, bs:=make([]float64, numSamples), make([]float64, numSamples), make([]float64, numSamples)
	width:=uint32(bounds.Dx())
	rng:=fastrand.RNG{}
	for i:=0; i<numSamples; i++ {
		index:=rng.Uint32n(uint32(numPixels))
		x:=bounds.Min.X+int(index%width)
		y:=bounds.Min.Y+int(index/width)
		off:=img.PixOffset(x, y)
		rs[i]=float64(img.Pix[off  ])
		gs[i]=float64(img.Pix[off+1])
		bs[i]=float64(img.Pix[off+2])
	}
	return &Stats{
		R:       channelOf(rs),
		G:       channelOf(gs),
		B:       channelOf(bs),
		Pixels:  numSamples,
		Sampled: true,
	}
}

func channelOf(xs []float64) Channel {
	mean, stdDev:=stat.MeanStdDev(xs, nil)
	if len(xs)<2 { stdDev=0 }
	return Channel{
		Min:    floats.Min(xs),
		Mean:   mean,
		StdDev: stdDev,
		Max:    floats.Max(xs),
	}
}
