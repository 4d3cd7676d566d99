//----------------------------------------------------------------------
// This file is part of wifisup.
// Copyright (C) 2024-present Bernd Fix   >Y<
//
// wifisup is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// wifisup is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later
//----------------------------------------------------------------------

package wifisup

import (
	"context"
	"runtime"
	"time"
)

// Clock provides the timed suspension points of the supervisor and
// the stack driver.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// SystemClock uses the time package.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// After returns a channel that fires after d.
func (SystemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// sleep for the given duration or until ctx is done. A non-positive
// duration only yields to the scheduler.
func sleep(ctx context.Context, clk Clock, d time.Duration) error {
	if d <= 0 {
		runtime.Gosched()
		return ctx.Err()
	}
	select {
	case <-clk.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
