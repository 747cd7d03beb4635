// The Licensed Work is (c) 2023 OmniBridge
// SPDX-License-Identifier: LGPL-3.0-only

package main

import (
	"github.com/omnibridge/settlement-core/example/cmd"
)

func main() {
	cmd.Execute()
}
