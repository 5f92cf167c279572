package engine

import (
	"time"

	"go.uber.org/zap"
)

// Defaults for the merge controller timings.
const (
	DefaultIdleThreshold = 750 * time.Millisecond
	DefaultSaveDebounce  = 750 * time.Millisecond
)

// Window is the virtualization capability a host supplies when it mounts
// only a subrange of blocks. The engine queries it instead of owning the
// rendering strategy; a nil Window means every block counts as mounted.
type Window interface {
	// MountedRange returns the inclusive block index range currently
	// materialized by the host.
	MountedRange() (lo, hi int)
	// ScrollIntoView asks the host to bring a block into the mounted
	// range; a pending selection targeting it resolves once it mounts.
	ScrollIntoView(index int)
}

// Options configures a Session. The zero value is usable: default timings,
// no window, no persistence, no logging.
type Options struct {
	// ChunkTarget caps block size in bytes. Zero means
	// block.DefaultTarget.
	ChunkTarget int

	// IdleThreshold is the quiet time after the last local edit before a
	// queued remote change may merge. Zero means DefaultIdleThreshold.
	IdleThreshold time.Duration

	// SaveDebounce is the inactivity delay before an edited document is
	// committed. Zero means DefaultSaveDebounce.
	SaveDebounce time.Duration

	// AllowRemoteWhileFocused lets remote text merge even while a block
	// holds the selection. Off by default: a focused block defers remote
	// changes until blur or idle.
	AllowRemoteWhileFocused bool

	// Window reports which blocks are mounted. Nil treats every block as
	// mounted.
	Window Window

	// Commit persists the joined document text. It runs with the session
	// locked and must not call back into the Session. Nil disables
	// saving.
	Commit func(text string) error

	// OnChange fires after a remote merge lands, outside the session
	// mutex, so hosts can re-read state. May be nil.
	OnChange func()

	// Logger receives debug and error events. Nil disables logging.
	Logger *zap.Logger

	// Timers schedules deferred work. Nil means time.AfterFunc.
	Timers TimerFactory

	// Now is the clock used for idle arithmetic. Nil means time.Now.
	Now func() time.Time
}

func (o Options) idleThreshold() time.Duration {
	if o.IdleThreshold <= 0 {
		return DefaultIdleThreshold
	}
	return o.IdleThreshold
}

func (o Options) saveDebounce() time.Duration {
	if o.SaveDebounce <= 0 {
		return DefaultSaveDebounce
	}
	return o.SaveDebounce
}
