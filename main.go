// Copyright 2026 The MedGeo Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/medgeo-bg/medgeo/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
