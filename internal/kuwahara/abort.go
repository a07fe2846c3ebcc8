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

import "sync/atomic"

// Outcome of rendering one region. An aborted region holds undefined partial
// output which the caller must not publish
type Status int

const (
	StatusCompleted Status = iota
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Cooperative cancellation flag shared by all tile workers. The engine polls
// it at row granularity during accumulation and selection; it never resets it.
// A nil flag never signals
type AbortFlag struct {
	flag uint32
}

// Requests all in-flight renders to stop at their next row boundary
func (a *AbortFlag) Signal() {
	atomic.StoreUint32(&a.flag, 1)
}

// Returns true once Signal has been called
func (a *AbortFlag) Signaled() bool {
	return a!=nil && atomic.LoadUint32(&a.flag)!=0
}
