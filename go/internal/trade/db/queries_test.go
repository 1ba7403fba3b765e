package db

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var queryHeader = regexp.MustCompile(`(?m)^-- name: (\w+) (:\w+)$`)

func TestQueriesMatchSQLFiles(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("sql", "queries", "*.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		src, err := os.ReadFile(file)
		require.NoError(t, err)

		goFile := strings.TrimSuffix(filepath.Base(file), ".sql") + ".sql.go"
		code, err := os.ReadFile(goFile)
		require.NoError(t, err, "%s has no Go counterpart", file)

		for _, m := range queryHeader.FindAllStringSubmatch(string(src), -1) {
			name, kind := m[1], m[2]
			assert.Contains(t, string(code), "-- name: "+name+" "+kind, "%s: query text missing", name)
			assert.Contains(t, string(code), "func (q *Queries) "+name+"(", "%s: method missing", name)
		}
	}
}
