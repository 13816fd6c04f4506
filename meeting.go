package rollcall

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// frameExts lists the capture formats picked up from a meeting directory.
var frameExts = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
}

type capture struct {
	name  string
	stamp int64
	ok    bool
}

// LoadMeetingDir reads the captures of a meeting stored as
// <user>_<timestamp>.<ext> files. Frames are ordered by timestamp, users by id.
func LoadMeetingDir(dir string) ([]UserFrames, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read meeting directory %s", dir)
	}

	byUser := make(map[string][]capture)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if _, ok := frameExts[ext]; !ok {
			continue
		}
		user, rest, found := strings.Cut(strings.TrimSuffix(name, filepath.Ext(name)), "_")
		if !found || user == "" {
			continue
		}
		c := capture{name: name}
		c.stamp, err = strconv.ParseInt(rest, 10, 64)
		c.ok = err == nil
		byUser[user] = append(byUser[user], c)
	}

	ids := make([]string, 0, len(byUser))
	for id := range byUser {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	users := make([]UserFrames, 0, len(ids))
	for _, id := range ids {
		caps := byUser[id]
		sort.SliceStable(caps, func(i, j int) bool {
			a, b := caps[i], caps[j]
			if a.ok && b.ok && a.stamp != b.stamp {
				return a.stamp < b.stamp
			}
			if a.ok != b.ok {
				return a.ok
			}
			return a.name < b.name
		})

		uf := UserFrames{UserID: id, Frames: make([][]byte, 0, len(caps))}
		for _, c := range caps {
			data, err := os.ReadFile(filepath.Join(dir, c.name))
			if err != nil {
				return nil, errors.Wrapf(err, "could not read capture %s", c.name)
			}
			uf.Frames = append(uf.Frames, data)
		}
		users = append(users, uf)
	}
	return users, nil
}
