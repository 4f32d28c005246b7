package forest

import (
	"errors"
)

// ErrHeaderOnFork is returned for headers that cannot descend from the
// finalized root.
var ErrHeaderOnFork = errors.New("header is on a fork of the finalized chain")

// ErrUnknownBlock is returned when finalizing a block the forest does not track.
var ErrUnknownBlock = errors.New("block is not tracked above the root")
