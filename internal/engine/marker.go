package engine

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mvasko/kvs/pkg/kvserr"
)

const markerFileName = "engine"

// Flavor identifies which Engine implementation a data directory was
// created with.
type Flavor string

const (
	FlavorKVS  Flavor = "kvs"
	FlavorBolt Flavor = "bolt"
)

// checkMarker enforces that a data directory is only ever opened by the
// engine flavor that created it: a directory initialized by the
// log-structured engine cannot later be opened as a bbolt file and vice
// versa. On first use the marker file is created; on every subsequent
// open it is compared.
func checkMarker(dir string, want Flavor) error {
	path := filepath.Join(dir, markerFileName)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if merr := os.MkdirAll(dir, 0755); merr != nil {
			return kvserr.Wrap(kvserr.CodeIO, merr, "create data directory").WithDetail("dir", dir)
		}
		if werr := os.WriteFile(path, []byte(want), 0644); werr != nil {
			return kvserr.Wrap(kvserr.CodeIO, werr, "write engine marker").WithDetail("dir", dir)
		}
		return nil
	}
	if err != nil {
		return kvserr.Wrap(kvserr.CodeIO, err, "read engine marker").WithDetail("dir", dir)
	}

	got := Flavor(strings.TrimSpace(string(data)))
	if got != want {
		return kvserr.New(kvserr.CodeEngineMismatch, "data directory was created by a different engine").
			WithDetail("dir", dir).
			WithDetail("found", string(got)).
			WithDetail("wanted", string(want))
	}
	return nil
}
