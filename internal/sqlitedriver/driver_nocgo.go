//go:build !cgo

package sqlitedriver

import (
	"database/sql"

	"modernc.org/sqlite"
)

// modernc.org/sqlite registers under "sqlite", so alias it to the name the
// rest of the code opens.
func init() {
	sql.Register("sqlite3", &sqlite.Driver{})
}

// EncryptionSupported reports whether the active SQLite driver honors
// PRAGMA key. Pure-Go builds cannot open encrypted session databases.
const EncryptionSupported = false
