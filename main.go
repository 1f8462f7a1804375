// SPDX-License-Identifier: MPL-2.0

package main

import "github.com/addonbridge/addonbridge/cmd/addonbridge"

func main() {
	cmd.Execute()
}
