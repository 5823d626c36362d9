package core

import (
	"testing"

	"lineagecore/testutil"
)

func TestBlobContractHasNoBackendImports(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.AnyOf(testutil.ThirdPartyImport, testutil.ModuleImport),
		"backends depend on the blob contract, never the reverse")
}
