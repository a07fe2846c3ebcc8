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


package rest

import (
	"image"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mlnoga/kuwahara/internal/kuwahara"
)

// Serves the filter over HTTP on the given address, e.g. ":8080"
func Serve(addr string) error {
	r := gin.Default()
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET ("/ping",   getPing)
			v1.POST("/filter", postFilter)
		}
	}
	return r.Run(addr)
}

func getPing(c *gin.Context) {
	c.JSON(200, gin.H{
		"message": "pong",
	})
}

// Accepts a multipart PNG or JPEG upload in field "image" with optional form
// fields "radius" (default 7) and "rgb" (default true), and streams back the
// filtered image as PNG. Invalid parameters are rejected before the engine runs
func postFilter(c *gin.Context) {
	radius, err:=strconv.Atoi(c.DefaultPostForm("radius", strconv.Itoa(kuwahara.DefaultRadius)))
	if err!=nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "radius is not an integer"})
		return
	}
	rgb, err:=strconv.ParseBool(c.DefaultPostForm("rgb", "true"))
	if err!=nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rgb is not a boolean"})
		return
	}
	params:=kuwahara.Params{Radius: radius, UseRGBChannels: rgb}
	if err:=params.Valid(); err!=nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fileHeader, err:=c.FormFile("image")
	if err!=nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing image upload: "+err.Error()})
		return
	}
	file, err:=fileHeader.Open()
	if err!=nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()

	decoded, _, err:=image.Decode(file)
	if err!=nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot decode image: "+err.Error()})
		return
	}
	src:=toRGBA(decoded)
	dst:=image.NewRGBA(src.Bounds())

	ctx:=kuwahara.NewContext(nil)
	if _, err:=kuwahara.RenderParallel(src, dst, params, ctx, nil); err!=nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Writer.Header().Set("Content-Type", "image/png")
	c.Writer.WriteHeader(http.StatusOK)
	png.Encode(c.Writer, dst) // response is streaming, encode errors have nowhere to go
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok:=img.(*image.RGBA); ok {
		return rgba
	}
	rgba:=image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	return rgba
}
