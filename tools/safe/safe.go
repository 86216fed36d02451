package safe

import (
	"CampusHub/logger"
)

// Go starts a goroutine that recovers from panic, so a panicking
// background task never takes down the whole process.
func Go(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[safe.Go] panic recovered: %v", r)
			}
		}()
		f()
	}()
}
