// Package migrations embeds the schema for each supported driver.
package migrations

import (
	"embed"
	"io/fs"
	"sort"
	"strings"
)

//go:embed mysql/*.sql sqlite/*.sql
var FS embed.FS

// Dir returns the migration directory for a database/sql driver name.
func Dir(driver string) string {
	if driver == "sqlite3" {
		return "sqlite"
	}
	return "mysql"
}

// UpScripts returns the contents of every *.up.sql file under dir in version order.
func UpScripts(dir string) ([]string, error) {
	names, err := fs.Glob(FS, dir+"/*.up.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	out := make([]string, 0, len(names))
	for _, n := range names {
		b, err := fs.ReadFile(FS, n)
		if err != nil {
			return nil, err
		}
		if s := strings.TrimSpace(string(b)); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}
