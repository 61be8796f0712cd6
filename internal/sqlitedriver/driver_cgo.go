//go:build cgo

package sqlitedriver

import (
	_ "github.com/mutecomm/go-sqlcipher/v4" // sqlcipher registers itself as "sqlite3"
)

// EncryptionSupported reports whether the active SQLite driver honors
// PRAGMA key. CGO builds use go-sqlcipher, so encrypted session databases
// work.
const EncryptionSupported = true
