/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// TestIrcd boots the Ginkgo suite for the behavioral specs
// (store_spec_test.go, session_spec_test.go), alongside this package's
// plain testify tests, in the teacher's style of pairing table-driven
// testify tests with Ginkgo specs for multi-step scenarios
// (messagepool_test.go).
func TestIrcd(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "ircd Suite")
}
