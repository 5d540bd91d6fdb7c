package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

type fakeTB struct {
	testing.TB
	failed string
}

func (f *fakeTB) Helper() {}
func (f *fakeTB) Fatalf(format string, _ ...any) {
	f.failed = format
}

func TestPredicates(t *testing.T) {
	cases := []struct {
		path              string
		internal, foreign bool
	}{
		{"clinicrecords/internal/core", true, false},
		{"clinicrecords/pkg/domain", false, false},
		{"github.com/google/uuid", false, true},
		{"go.uber.org/zap", false, true},
		{"net/http", false, false},
	}
	for _, tc := range cases {
		if InternalImport(tc.path) != tc.internal || ThirdPartyImport(tc.path) != tc.foreign {
			t.Fatalf("predicates wrong for %s", tc.path)
		}
	}
	if !AnyOf(InternalImport, ThirdPartyImport)("go.uber.org/zap") || AnyOf()("x") {
		t.Fatalf("AnyOf combination wrong")
	}
}

func TestAssertNoDirectImportsFlagsViolations(t *testing.T) {
	dir := t.TempDir()
	src := "package x\n\nimport (\n\t\"fmt\"\n\t\"clinicrecords/internal/core\"\n)\n\nvar _ = fmt.Sprint\nvar _ core.Logger\n"
	if err := os.WriteFile(filepath.Join(dir, "x.go"), []byte(src), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "x_test.go"), []byte("package x\n\nimport _ \"github.com/google/uuid\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	fake := &fakeTB{}
	AssertNoDirectImports(fake, dir, InternalImport, "domain stays leaf")
	if fake.failed == "" {
		t.Fatalf("expected violation to be reported")
	}
	fake = &fakeTB{}
	AssertNoDirectImports(fake, dir, ThirdPartyImport, "test files are skipped")
	if fake.failed != "" {
		t.Fatalf("unexpected violation: %s", fake.failed)
	}
}
