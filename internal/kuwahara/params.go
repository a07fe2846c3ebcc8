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
)

// Valid range for the user-facing radius parameter
const (
	MinRadius     = 3
	MaxRadius     = 199
	DefaultRadius = 7
)

// Parameters for one filter pass. Immutable while a render is in flight
type Params struct {
	Radius         int  `json:"radius"`         // window size control, valid range [3,199]
	UseRGBChannels bool `json:"useRGBChannels"` // true: independent R,G,B statistics; false: HSV value statistics, hue and saturation preserved
}

// Checks the radius bounds. Shells reject invalid parameters with this before
// invoking the engine; the engine itself calls it once per render as a precondition
func (p Params) Valid() error {
	if p.Radius<MinRadius || p.Radius>MaxRadius {
		return errors.New(fmt.Sprintf("radius %d outside valid range [%d,%d]", p.Radius, MinRadius, MaxRadius))
	}
	return nil
}

// Derives the accumulation block edge length and the offset separating the
// anchors of the four candidate windows from the user radius. Deterministic,
// recomputed whenever the radius changes. Both the odd and the even branch
// satisfy kernelSize==kernelOffset+1
func KernelGeometry(radius int) (kernelSize, kernelOffset int) {
	if radius%2!=0 {
		return (radius+1)/2, (radius-1)/2
	}
	return radius/2, (radius-2)/2
}
