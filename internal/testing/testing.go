// package testing contains shared testing utilities: failing writers, file assertions,
// statement fixtures and an in-memory record store.
package testing

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

// StatementCSV renders a well-formed statement with n distinct rows under the given headers.
// Rows use US dates, "Merchant N" descriptions and "-N.NN" amounts.
func StatementCSV(n int, dateCol, descCol, amountCol string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s,%s,%s\n", dateCol, descCol, amountCol)
	for i := range n {
		day := i%28 + 1
		month := i/28%12 + 1
		fmt.Fprintf(&b, "%d/%d/2024,Merchant %d,-%d.%02d\n", month, day, i, i/100+1, i%100)
	}
	return b.String()
}

// WriteStatement writes contents to a CSV file in a temp dir and returns its path.
func WriteStatement(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("Failed to write statement %s: %v", path, err)
	}
	return path
}
