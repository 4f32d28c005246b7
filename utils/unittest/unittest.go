package unittest

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var verbose = flag.Bool("vv", false, "print debug logs of the code under test")

// Logger returns a debug level logger that discards everything unless the
// tests run with -vv.
func Logger() zerolog.Logger {
	if !*verbose {
		return zerolog.Nop()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.StampMilli}).
		Level(zerolog.DebugLevel).
		With().Timestamp().
		Logger()
}

// RequireCloseBefore fails the test unless c is closed within the duration.
func RequireCloseBefore(t testing.TB, c <-chan struct{}, duration time.Duration, message string) {
	t.Helper()
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-c:
	case <-timer.C:
		require.FailNow(t, "channel not closed in time: "+message)
	}
}

// BadgerDB opens a badger database in dir, keeping level 0 tables in memory
// and without badger's own logging.
func BadgerDB(t testing.TB, dir string) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(dir).WithKeepL0InMemory(true).WithLogger(nil))
	require.NoError(t, err)
	return db
}

// RunWithBadgerDB runs f with a database in a temporary directory.
func RunWithBadgerDB(t testing.TB, f func(*badger.DB)) {
	t.Helper()
	db := BadgerDB(t, t.TempDir())
	defer func() {
		require.NoError(t, db.Close())
	}()
	f(db)
}
