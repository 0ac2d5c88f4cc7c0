package utils

import (
	"sync"
	"time"

	"golang.org/x/exp/rand"
)

var uploadSeedOnce sync.Once

// GenerateUploadName builds a random file name for a stored image, keeping
// the original extension. The shared source is seeded once so concurrent
// uploads never repeat a name.
func GenerateUploadName(ext string) string {
	uploadSeedOnce.Do(func() {
		rand.Seed(uint64(time.Now().UnixNano()))
	})

	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	name := make([]byte, 16)
	for i := range name {
		name[i] = charset[rand.Intn(len(charset))]
	}
	return string(name) + ext
}
