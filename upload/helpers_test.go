package upload

import "time"

const (
	time2s = 2 * time.Second
	tick   = time.Millisecond
)
