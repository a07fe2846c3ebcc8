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

import "sync"

// Maps max(R,G,B) in 0..255 to an HSV value magnitude on a 0..100 scale.
// Built once before first use, read-only afterwards, shared by all tile workers
var intensityLUT     [256]float64
var intensityLUTOnce sync.Once

func initIntensityLUT() {
	for i:=range intensityLUT {
		intensityLUT[i]=float64(i)*100.0/255.0
	}
}

// Returns the HSV value magnitude for one 8-bit RGB triple
func intensityOf(r, g, b uint8) float64 {
	m:=r
	if g>m { m=g }
	if b>m { m=b }
	return intensityLUT[m]
}
