//go:build !unix

package cache

import "os"

// Advisory locking is unix-only; elsewhere the temp+rename write still
// keeps records whole.
func lockFile(*os.File, bool) error { return nil }

func unlockFile(*os.File) error { return nil }
