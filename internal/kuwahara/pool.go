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

// Pool of constant sized arrays of float64, to reduce allocation overhead
// for the per-tile statistics tables. Tiles of equal size share buckets
var poolFloat64=struct{
	sync.RWMutex
	m map[int]*sync.Pool
}{m: make(map[int]*sync.Pool)}

func getSizedPoolFloat64(size int) *sync.Pool {
	poolFloat64.RLock()
	p:=poolFloat64.m[size]
	poolFloat64.RUnlock()
	if p!=nil { return p }

	poolFloat64.Lock()
	defer poolFloat64.Unlock()
	p=poolFloat64.m[size]
	if p!=nil { return p }
	p=&sync.Pool{
		New: func() interface{} { return make([]float64, size) },
	}
	poolFloat64.m[size]=p
	return p
}

// Returns an array of float64 of given size from the pool, or allocates a fresh one.
// Contents are undefined; the accumulator overwrites every cell it later reads
func getArrayOfFloat64FromPool(size int) []float64 {
	return getSizedPoolFloat64(size).Get().([]float64)
}

// Returns the given array into the pool for its capacity
func putArrayOfFloat64IntoPool(arr []float64) {
	getSizedPoolFloat64(cap(arr)).Put(arr[:cap(arr)])
}
