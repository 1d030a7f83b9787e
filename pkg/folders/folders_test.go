package folders

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/notecal/pkg/vault"
)

func makeVault(t *testing.T, dirs ...string) *vault.Vault {
	t.Helper()
	root := t.TempDir()
	for _, d := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(root, filepath.FromSlash(d)), 0o755))
	}
	v, err := vault.Open(root, nil)
	require.NoError(t, err)
	return v
}

func TestFindPairsDropsIncompletePairs(t *testing.T) {
	v := makeVault(t, "Tasks/ProjectA/OPEN", "Tasks/ProjectA/DONE", "Tasks/ProjectB/OPEN")

	pairs, err := FindPairs(v, "Tasks", "OPEN", "DONE")
	require.NoError(t, err)
	assert.Equal(t, Pairs{
		"Tasks/ProjectA": {Parent: "Tasks/ProjectA", SearchPath: "Tasks/ProjectA/OPEN", DonePath: "Tasks/ProjectA/DONE"},
	}, pairs)
}

func TestFindPairsMultipleGroups(t *testing.T) {
	v := makeVault(t, "Tasks/OPEN", "Tasks/DONE", "Tasks/Home/OPEN", "Tasks/Home/DONE", "Other/OPEN", "Other/DONE")

	pairs, err := FindPairs(v, "Tasks", "OPEN", "DONE")
	require.NoError(t, err)
	sorted := pairs.Sorted()
	require.Len(t, sorted, 2)
	assert.Equal(t, "Tasks", sorted[0].Parent)
	assert.Equal(t, "Tasks/Home", sorted[1].Parent)
}

func TestFindPairsMissingOrFileRoot(t *testing.T) {
	v := makeVault(t, "Tasks")
	require.NoError(t, os.WriteFile(filepath.Join(v.Root(), "file.md"), []byte("x"), 0o644))

	pairs, err := FindPairs(v, "Nope", "OPEN", "DONE")
	require.NoError(t, err)
	assert.Empty(t, pairs)

	pairs, err = FindPairs(v, "file.md", "OPEN", "DONE")
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestMatchPrefersDeepestSearchFolder(t *testing.T) {
	pairs := Pairs{
		"Tasks":           {Parent: "Tasks", SearchPath: "Tasks/OPEN", DonePath: "Tasks/DONE"},
		"Tasks/OPEN/Sub":  {Parent: "Tasks/OPEN/Sub", SearchPath: "Tasks/OPEN/Sub/OPEN", DonePath: "Tasks/OPEN/Sub/DONE"},
		"Tasks/OPENLATER": {Parent: "Tasks/OPENLATER", SearchPath: "Tasks/OPENLATER/OPEN", DonePath: "Tasks/OPENLATER/DONE"},
	}

	p, ok := pairs.Match("Tasks/OPEN/Sub/OPEN/t.md")
	require.True(t, ok)
	assert.Equal(t, "Tasks/OPEN/Sub/DONE", p.DonePath)

	p, ok = pairs.Match("Tasks/OPEN/t.md")
	require.True(t, ok)
	assert.Equal(t, "Tasks/DONE", p.DonePath)

	_, ok = pairs.Match("Tasks/DONE/t.md")
	assert.False(t, ok)
}
