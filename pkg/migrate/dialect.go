package migrate

import (
	"bytes"
	"io/fs"
	"os"
	"path"
	"strings"
)

// moneyColumnType is how the schema declares money columns.
const moneyColumnType = "NUMERIC(19,4)"

// sqliteMoneyColumnType keeps decimal strings verbatim. NUMERIC affinity in
// sqlite coerces them to REAL and drops digits past ~15 significant places.
const sqliteMoneyColumnType = "TEXT"

func isSQLite(dialect string) bool {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case "sqlite", "sqlite3":
		return true
	}
	return false
}

// schemaFS returns the FS and directory goose should read for dialect. A nil
// fsys means dir on disk.
func schemaFS(fsys fs.FS, dir, dialect string) (fs.FS, string) {
	if !isSQLite(dialect) {
		return fsys, dir
	}
	if fsys == nil {
		return sqliteSchemaFS{base: os.DirFS(dir)}, "."
	}
	return sqliteSchemaFS{base: fsys}, dir
}

// sqliteSchemaFS serves .sql migrations with money columns declared TEXT.
// Non-negative CHECKs still hold under text comparison since '-' sorts
// before every digit.
type sqliteSchemaFS struct {
	base fs.FS
}

func (f sqliteSchemaFS) Open(name string) (fs.File, error) {
	if path.Ext(name) != ".sql" {
		return f.base.Open(name)
	}
	data, err := f.ReadFile(name)
	if err != nil {
		return nil, err
	}
	info, err := fs.Stat(f.base, name)
	if err != nil {
		return nil, err
	}
	return &schemaFile{Reader: bytes.NewReader(data), info: sizedInfo{FileInfo: info, size: int64(len(data))}}, nil
}

func (f sqliteSchemaFS) ReadFile(name string) ([]byte, error) {
	data, err := fs.ReadFile(f.base, name)
	if err != nil || path.Ext(name) != ".sql" {
		return data, err
	}
	return rewriteForSQLite(data), nil
}

func (f sqliteSchemaFS) ReadDir(name string) ([]fs.DirEntry, error) {
	return fs.ReadDir(f.base, name)
}

func rewriteForSQLite(sql []byte) []byte {
	return bytes.ReplaceAll(sql, []byte(moneyColumnType), []byte(sqliteMoneyColumnType))
}

type schemaFile struct {
	*bytes.Reader
	info fs.FileInfo
}

func (f *schemaFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *schemaFile) Close() error               { return nil }

type sizedInfo struct {
	fs.FileInfo
	size int64
}

func (i sizedInfo) Size() int64 { return i.size }
