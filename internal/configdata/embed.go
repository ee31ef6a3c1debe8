// Package configdata embeds the starter configuration installed by
// "remerge init".
package configdata

import _ "embed"

// StarterConfig is a commented remerge.yaml template covering the common
// endpoint types.
//
//go:embed remerge.yaml
var StarterConfig []byte
