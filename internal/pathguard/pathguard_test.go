package pathguard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEmptyPath(t *testing.T) {
	g := New(nil, nil)

	v := g.Validate("")
	assert.False(t, v.Valid)
	assert.Contains(t, v.Reason, "empty")

	v = g.Validate("   ")
	assert.False(t, v.Valid)
}

func TestValidateTraversal(t *testing.T) {
	g := New([]string{"/home/user/docs"}, nil)

	for _, path := range []string{
		"/home/user/docs/../../../etc/passwd",
		"../secret",
		"/home/user/docs/a/../../other",
	} {
		v := g.Validate(path)
		assert.False(t, v.Valid, "expected %s to be rejected", path)
		assert.Contains(t, v.Reason, "traversal")
	}
}

func TestValidateSystemBlocklist(t *testing.T) {
	// Blocklist wins even when the path is explicitly allowed.
	g := New([]string{"/etc"}, nil)

	v := g.Validate("/etc/passwd")
	assert.False(t, v.Valid)
	assert.Contains(t, v.Reason, "protected system location")

	v = g.Validate("/proc/self/environ")
	assert.False(t, v.Valid)
}

func TestValidateAllowList(t *testing.T) {
	g := New([]string{"/home/user/docs"}, nil)

	assert.True(t, g.Validate("/home/user/docs/notes.md").Valid)
	assert.True(t, g.Validate("/home/user/docs/sub/deep/file.go").Valid)

	v := g.Validate("/home/user/other/file.txt")
	assert.False(t, v.Valid)
	assert.Contains(t, v.Reason, "outside allowed")

	// Prefix match is on whole components: /home/user/docs2 is not inside
	// /home/user/docs.
	assert.False(t, g.Validate("/home/user/docs2/file.txt").Valid)
}

func TestValidateExcludedBeatsAllowed(t *testing.T) {
	g := New([]string{"/home/user"}, []string{"/home/user/private"})

	assert.True(t, g.Validate("/home/user/public/a.txt").Valid)

	v := g.Validate("/home/user/private/a.txt")
	assert.False(t, v.Valid)
	assert.Contains(t, v.Reason, "excluded")
}

func TestValidateEmptyAllowListAllows(t *testing.T) {
	g := New(nil, []string{"/home/user/private"})

	assert.True(t, g.Validate("/home/user/anything.txt").Valid)
	assert.False(t, g.Validate("/home/user/private/x").Valid)
}

func TestValidateResolvesRelative(t *testing.T) {
	g := New(nil, nil)

	v := g.Validate("some/relative/file.txt")
	require.True(t, v.Valid)
	assert.True(t, filepath.IsAbs(v.ResolvedPath))
}

func TestValidateCaseInsensitive(t *testing.T) {
	g := New([]string{"/Home/User/Docs"}, nil)

	assert.True(t, g.Validate("/home/user/docs/file.txt").Valid)
	assert.True(t, g.Validate("/HOME/USER/DOCS/file.txt").Valid)
}

func TestValidateFollowsSymlinks(t *testing.T) {
	allowed, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	outside, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	target := filepath.Join(outside, "secret.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o600))
	link := filepath.Join(allowed, "link.txt")
	require.NoError(t, os.Symlink(target, link))

	g := New([]string{allowed}, nil)

	// A symlink inside the allowed root that points outside it is rejected.
	v := g.Validate(link)
	assert.False(t, v.Valid)
	assert.Contains(t, v.Reason, "outside allowed")

	// Same for a link into a protected system location.
	etcLink := filepath.Join(allowed, "passwd")
	require.NoError(t, os.Symlink("/etc/passwd", etcLink))
	v = g.Validate(etcLink)
	assert.False(t, v.Valid)
	assert.Contains(t, v.Reason, "protected system location")

	// Regular files in the allowed root still validate.
	plain := filepath.Join(allowed, "plain.txt")
	require.NoError(t, os.WriteFile(plain, []byte("x"), 0o600))
	assert.True(t, g.Validate(plain).Valid)
}

func TestValidateNonexistentPathStaysLexical(t *testing.T) {
	// Files that have not been written yet resolve against their deepest
	// existing ancestor, so allow-list checks still work for them.
	g := New([]string{"/home/user/docs"}, nil)

	assert.True(t, g.Validate("/home/user/docs/not-yet-written.md").Valid)
	assert.False(t, g.Validate("/home/user/other/not-yet-written.md").Valid)
}

func TestFilterAllowed(t *testing.T) {
	g := New([]string{"/home/user/docs"}, nil)

	got := g.FilterAllowed([]string{
		"/home/user/docs/a.txt",
		"/etc/passwd",
		"/home/user/docs/b.txt",
		"/tmp/outside.txt",
	})
	require.Len(t, got, 2)
	assert.Equal(t, "/home/user/docs/a.txt", got[0])
	assert.Equal(t, "/home/user/docs/b.txt", got[1])
}

func TestSetAllowedReplaces(t *testing.T) {
	g := New([]string{"/home/user/docs"}, nil)
	require.False(t, g.IsAllowed("/srv/data/file.txt"))

	g.SetAllowed([]string{"/srv/data"})
	assert.True(t, g.IsAllowed("/srv/data/file.txt"))
	assert.False(t, g.IsAllowed("/home/user/docs/notes.md"))
}
