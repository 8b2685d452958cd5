// Package clock funnels every timestamp the engine records through a single
// overridable source, keeping workflow and decision times deterministic in
// tests.
package clock

import "time"

// NowFunc supplies the current time. Tests replace it to freeze time.
var NowFunc = time.Now

// Now reports the current time via NowFunc.
func Now() time.Time { return NowFunc() }
