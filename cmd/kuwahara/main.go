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

package main

import (
	"flag"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/pbnjay/memory"
	xdraw "golang.org/x/image/draw"

	"github.com/mlnoga/kuwahara/internal/kuwahara"
	"github.com/mlnoga/kuwahara/internal/rest"
	"github.com/mlnoga/kuwahara/internal/stats"
)

const version = "0.1.0"

var totalMiBs=memory.TotalMemory()/1024/1024

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

var out    = flag.String("out", "out.png", "save filtered image to `file`; suffix selects PNG or JPEG")
var logF   = flag.String("log", "%auto", "save log output to `file`. `%auto` replaces suffix of output file with .log")

var radius = flag.Int("radius", kuwahara.DefaultRadius, "filter radius in [3,199]; larger values smooth more")
var rgb    = flag.Bool("rgb", true, "filter R,G,B channels independently; false filters HSV value only, preserving hue and saturation")

var tile   = flag.Int("tile", 0, "tile edge length in pixels for parallel rendering, 0=derive from CPU cache size")
var threads= flag.Int("threads", 0, "number of parallel tile workers, 0=all logical CPUs within memory budget")

var scale  = flag.Float64("scale", 1, "scale input by this factor before filtering, 1=no op")

var httpAddr = flag.String("http", ":8080", "listen `address` for the serve command")

func main() {
	start:=time.Now()
	flag.Usage=func(){
		fmt.Fprintf(os.Stdout, `Kuwahara Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (filter|stats|serve|legal|version) (image.png|image.jpg)

Commands:
  filter  Apply the Kuwahara filter to the input image and save the result
  stats   Show input image channel statistics
  serve   Serve the filter as a REST API
  legal   Show license and attribution information
  version Show version information

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	args:=flag.Args()
	command:=""
	if len(args)>0 { command=args[0] }

	// Initialize logging to file in addition to stdout, if selected
	*logF=autoLogFile(*logF, *out, command)
	if *logF!="" {
		err:=LogAlsoToFile(*logF)
		if err!=nil { LogFatalf("Unable to open logfile '%s'\n", *logF) }
	}
	defer LogSync()

	// Enable CPU profiling if flagged
	if *cpuprofile!="" {
		f, err := os.Create(*cpuprofile)
		if err!=nil { LogFatal("Could not create CPU profile: ", err) }
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err!=nil {
			LogFatal("Could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	if len(args)<1 {
		flag.Usage()
		return
	}

	switch args[0] {
	case "filter":
		src:=loadImage(args[1:])
		dst:=runFilter(src)
		saveImage(dst, *out)

	case "stats":
		src:=loadImage(args[1:])
		LogPrintf("%dx%d pixels %v\n", src.Bounds().Dx(), src.Bounds().Dy(), stats.NewStats(src))

	case "serve":
		LogPrintf("Serving on %s with %d MiB physical memory\n", *httpAddr, totalMiBs)
		if err:=rest.Serve(*httpAddr); err!=nil {
			LogFatalf("Serve error: %s\n", err.Error())
		}

	case "legal":
		LogPrintf("%s\n", legal)

	case "version":
		LogPrintf("Version %s\n", version)

	case "help", "?":
		flag.Usage()

	default:
		LogPrintf("Unknown command '%s'\n\n", args[0])
		flag.Usage()
		os.Exit(-1)
	}

	// Store memory profile if flagged
	if *memprofile!="" {
		f, err := os.Create(*memprofile)
		if err!=nil { LogFatal("Could not create memory profile: ", err) }
		defer f.Close()
		if err := pprof.Lookup("allocs").WriteTo(f, 0); err!=nil {
			LogFatal("Could not write allocation profile: ", err)
		}
	}

	LogPrintf("Done after %v\n", time.Since(start))
}

// Resolves the log file name: `%auto` follows the output file of the filter
// command, and stays file-less for commands that write no output
func autoLogFile(logFlag, outFlag, command string) string {
	if logFlag!="%auto" { return logFlag }
	if command!="filter" || outFlag=="" { return "" }
	return strings.TrimSuffix(outFlag, filepath.Ext(outFlag))+".log"
}

// Loads the single input image given in args, converting to RGBA and
// optionally rescaling per the -scale flag
func loadImage(args []string) *image.RGBA {
	if len(args)!=1 {
		LogFatalf("Expected exactly one input image, got %d\n", len(args))
	}
	file, err:=os.Open(args[0])
	if err!=nil { LogFatalf("Unable to open '%s': %s\n", args[0], err.Error()) }
	defer file.Close()

	decoded, format, err:=image.Decode(file)
	if err!=nil { LogFatalf("Unable to decode '%s': %s\n", args[0], err.Error()) }

	rgba:=toRGBA(decoded)
	LogPrintf("Loaded %dx%d pixel %s image from %s\n", rgba.Bounds().Dx(), rgba.Bounds().Dy(), format, args[0])

	if *scale!=1 {
		b:=rgba.Bounds()
		scaled:=image.NewRGBA(image.Rect(0, 0, int(float64(b.Dx())**scale), int(float64(b.Dy())**scale)))
		xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), rgba, b, xdraw.Src, nil)
		LogPrintf("Scaled input by %.2f to %dx%d pixels\n", *scale, scaled.Bounds().Dx(), scaled.Bounds().Dy())
		rgba=scaled
	}
	return rgba
}

// Runs the filter over the full image with parallel tiles, logging channel
// statistics before and after to show the smoothing effect
func runFilter(src *image.RGBA) *image.RGBA {
	params:=kuwahara.Params{Radius: *radius, UseRGBChannels: *rgb}
	if err:=params.Valid(); err!=nil { LogFatalf("Invalid parameters: %s\n", err.Error()) }

	const statsSamples=128*1024
	LogPrintf("Input  %v\n", stats.NewStatsSampled(src, statsSamples))

	ctx:=kuwahara.NewContext(theLogWriter)
	ctx.TileSize=*tile
	if *threads>0 { ctx.MaxThreads=*threads }

	dst:=image.NewRGBA(src.Bounds())
	start:=time.Now()
	status, err:=kuwahara.RenderParallel(src, dst, params, ctx, nil)
	if err!=nil { LogFatalf("Render error: %s\n", err.Error()) }
	if status!=kuwahara.StatusCompleted { LogFatalf("Render %s\n", status) }
	LogPrintf("Filtered in %v\n", time.Since(start))

	LogPrintf("Output %v\n", stats.NewStatsSampled(dst, statsSamples))
	return dst
}

// Saves the image under the given filename, with the format chosen by suffix
func saveImage(img *image.RGBA, fileName string) {
	f, err:=os.Create(fileName)
	if err!=nil { LogFatalf("Unable to create '%s': %s\n", fileName, err.Error()) }
	defer f.Close()

	fnLower:=strings.ToLower(fileName)
	switch {
	case strings.HasSuffix(fnLower, ".png"):
		LogPrintf("Writing %dx%d pixel PNG to %s\n", img.Bounds().Dx(), img.Bounds().Dy(), fileName)
		err=png.Encode(f, img)
	case strings.HasSuffix(fnLower, ".jpg"), strings.HasSuffix(fnLower, ".jpeg"):
		LogPrintf("Writing %dx%d pixel JPEG to %s\n", img.Bounds().Dx(), img.Bounds().Dy(), fileName)
		err=jpeg.Encode(f, img, &jpeg.Options{Quality: 95})
	default:
		LogFatalf("Unknown output suffix in '%s', expected .png, .jpg or .jpeg\n", fileName)
	}
	if err!=nil { LogFatalf("Error writing to '%s': %s\n", fileName, err.Error()) }
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok:=img.(*image.RGBA); ok {
		return rgba
	}
	rgba:=image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	return rgba
}
