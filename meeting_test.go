package rollcall

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMeetingDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"bob_1700000000200.png": "b2",
		"bob_1700000000100.JPG": "b1",
		"alice_20.jpeg":         "a20",
		"alice_3.png":           "a3",
		"alice_snapshot.png":    "a-named",
		"notes.txt":             "ignored",
		"noseparator.png":       "ignored",
		"_anonymous.png":        "ignored",
		"carol_1.gif":           "ignored",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dave_1.png"), 0o755))

	users, err := LoadMeetingDir(dir)
	require.NoError(t, err)
	require.Len(t, users, 2)

	assert.Equal(t, "alice", users[0].UserID)
	assert.Equal(t, [][]byte{[]byte("a3"), []byte("a20"), []byte("a-named")}, users[0].Frames)

	assert.Equal(t, "bob", users[1].UserID)
	assert.Equal(t, [][]byte{[]byte("b1"), []byte("b2")}, users[1].Frames)
}

func TestLoadMeetingDir_Missing(t *testing.T) {
	_, err := LoadMeetingDir(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
