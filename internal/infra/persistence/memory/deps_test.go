package memory

import (
	"testing"

	"lineagecore/testutil"
)

// The memory store is the base every durable backend embeds, so it may only
// reach into the domain package.
func TestStoreDependsOnlyOnDomain(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.Except(testutil.ModuleImport, "lineagecore/pkg/domain"),
		"memory store must not import other lineagecore packages")
}
