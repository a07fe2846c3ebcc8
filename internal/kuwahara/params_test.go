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
	"testing"
)

func TestKernelGeometry(t *testing.T) {
	cases:=[]struct{ radius, kernelSize, kernelOffset int }{
		{3,   2,  1},
		{4,   2,  1},
		{5,   3,  2},
		{6,   3,  2},
		{7,   4,  3},
		{198, 99, 98},
		{199, 100,99},
	}
	for _, c:=range cases {
		ks, ko:=KernelGeometry(c.radius)
		if ks!=c.kernelSize   { t.Errorf("radius %d: kernelSize=%d; want %d", c.radius, ks, c.kernelSize) }
		if ko!=c.kernelOffset { t.Errorf("radius %d: kernelOffset=%d; want %d", c.radius, ko, c.kernelOffset) }
		if ks!=ko+1           { t.Errorf("radius %d: kernelSize %d != kernelOffset %d +1", c.radius, ks, ko) }
	}
}

func TestParamsValid(t *testing.T) {
	for _, radius:=range []int{3, 4, 7, 100, 199} {
		if err:=(Params{Radius: radius}).Valid(); err!=nil { t.Errorf("radius %d: unexpected error %v", radius, err) }
	}
	for _, radius:=range []int{-1, 0, 1, 2, 200, 1000} {
		if err:=(Params{Radius: radius}).Valid(); err==nil { t.Errorf("radius %d: expected error, got nil", radius) }
	}
}

func TestIntensityLUT(t *testing.T) {
	intensityLUTOnce.Do(initIntensityLUT)
	if got:=intensityOf(0, 0, 0); got!=0 { t.Errorf("intensityOf(0,0,0)=%f; want 0", got) }
	if got:=intensityOf(255, 0, 0); got!=100 { t.Errorf("intensityOf(255,0,0)=%f; want 100", got) }
	if got:=intensityOf(10, 255, 20); got!=100 { t.Errorf("intensityOf(10,255,20)=%f; want 100", got) }
	if got:=intensityOf(51, 34, 17); got!=20 { t.Errorf("intensityOf(51,34,17)=%f; want 20", got) }
	for i:=1; i<256; i++ {
		if intensityLUT[i]<=intensityLUT[i-1] { t.Errorf("lut[%d]=%f not greater than lut[%d]=%f", i, intensityLUT[i], i-1, intensityLUT[i-1]) }
	}
}
