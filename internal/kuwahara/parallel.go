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
	"errors"
	"fmt"
	"image"
	"io"
	"runtime"

	"github.com/klauspost/cpuid"
	"github.com/pbnjay/memory"
)

// An execution context for parallel tile rendering
type Context struct {
	Log        io.Writer
	MemoryMB   int // memory.TotalMemory()/1024/1024
	MaxThreads int `json:"maxThreads"` // 0 selects all logical CPUs
	TileSize   int `json:"tileSize"`   // tile edge length in pixels, 0 derives it from the CPU cache size
}

func NewContext(log io.Writer) *Context {
	memoryMB:=int(memory.TotalMemory()/1024/1024)
	return &Context{
		Log        : log,
		MemoryMB   : memoryMB,
		MaxThreads : runtime.GOMAXPROCS(0),
	}
}

// Picks a tile edge length so that one tile's statistics tables fit into the
// L2 cache, within [64,1024] pixels. Larger tiles amortize the halo pixels
// each tile recomputes, smaller tiles keep the tables cache-resident
func (c *Context) tileSizeFor(params Params) int {
	if c!=nil && c.TileSize>0 { return c.TileSize }
	cache:=cpuid.CPU.Cache.L2
	if cache<=0 { cache=256*1024 }

	numTables:=2
	if params.UseRGBChannels { numTables=6 }
	_, kernelOffset:=KernelGeometry(params.Radius)

	edge:=64
	for edge<1024 {
		ext:=2*edge+kernelOffset
		if ext*ext*8*numTables>cache { break }
		edge*=2
	}
	return edge
}

// Caps the worker count so that the tables of all in-flight tiles stay
// within 70% of physical memory, and within MaxThreads
func (c *Context) threadsFor(tileSize int, params Params) int {
	threads:=runtime.GOMAXPROCS(0)
	if c!=nil && c.MaxThreads>0 { threads=c.MaxThreads }

	numTables:=2
	if params.UseRGBChannels { numTables=6 }
	_, kernelOffset:=KernelGeometry(params.Radius)
	perTileMB:=((tileSize+kernelOffset)*(tileSize+kernelOffset)*8*numTables)/(1024*1024)+1

	if c!=nil && c.MemoryMB>0 {
		if budget:=(c.MemoryMB*7/10)/perTileMB; budget<threads {
			threads=budget
		}
	}
	if threads<1 { threads=1 }
	return threads
}

// Renders the full image in parallel, splitting the bounds into disjoint
// rectangular tiles and running Render for each behind a concurrency limiter.
// Tiles share only the read-only source; each recomputes its own halo, so the
// output is byte-identical to a single full-region Render. Returns
// StatusAborted if any tile observed the abort flag; the destination must
// then be discarded
func RenderParallel(src, dst *image.RGBA, params Params, c *Context, abort *AbortFlag) (Status, error) {
	if src==nil || dst==nil {
		return StatusCompleted, errors.New("nil source or destination image")
	}
	if !src.Bounds().Eq(dst.Bounds()) {
		return StatusCompleted, errors.New(fmt.Sprintf("destination bounds %v differ from source bounds %v", dst.Bounds(), src.Bounds()))
	}
	if err:=params.Valid(); err!=nil {
		return StatusCompleted, err
	}

	bounds:=src.Bounds()
	tileSize:=c.tileSizeFor(params)
	threads:=c.threadsFor(tileSize, params)

	var tiles []image.Rectangle
	for y:=bounds.Min.Y; y<bounds.Max.Y; y+=tileSize {
		for x:=bounds.Min.X; x<bounds.Max.X; x+=tileSize {
			tile:=image.Rect(x, y, x+tileSize, y+tileSize).Intersect(bounds)
			tiles=append(tiles, tile)
		}
	}
	if c!=nil && c.Log!=nil {
		fmt.Fprintf(c.Log, "Rendering %dx%d pixels radius %d in %d tiles of up to %dx%d px with %d threads\n",
		            bounds.Dx(), bounds.Dy(), params.Radius, len(tiles), tileSize, tileSize, threads)
	}

	limiter :=make(chan bool, threads)
	statuses:=make(chan Status, len(tiles))
	errs    :=make(chan error, len(tiles))
	for _, tile:=range tiles {
		limiter <- true
		go func(tile image.Rectangle) {
			defer func() { <-limiter }()
			status, err:=Render(src, dst, tile, params, abort)
			statuses <- status
			errs <- err
		}(tile)
	}
	for i:=0; i<cap(limiter); i++ { // wait for goroutines to finish
		limiter <- true
	}

	status:=StatusCompleted
	var err error
	for i:=0; i<len(tiles); i++ { // collect statuses and errors
		if s:=<-statuses; s==StatusAborted {
			status=StatusAborted
		}
		if e:=<-errs; e!=nil {
			if err==nil {
				err=e
			} else {
				err=errors.New(fmt.Sprintf("%s; %s", err.Error(), e.Error()))
			}
		}
	}
	return status, err
}
