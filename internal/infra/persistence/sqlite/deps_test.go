package sqlite

import (
	"testing"

	"lineagecore/testutil"
)

func TestStoreDependsOnlyOnDomainAndMemory(t *testing.T) {
	allowed := testutil.Except(testutil.ModuleImport,
		"lineagecore/pkg/domain",
		"lineagecore/internal/infra/persistence/memory",
	)
	testutil.AssertNoDirectImports(t, ".", allowed, "sqlite store wraps the memory store only")
	testutil.AssertNoDirectImports(t, ".", testutil.Except(testutil.ThirdPartyImport, "modernc.org/sqlite"),
		"sqlite store uses the pure go driver only")
}
