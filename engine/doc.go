package engine

import (
	"fmt"
	"strings"

	md "github.com/russross/blackfriday/v2"

	"github.com/slipwayhq/slipway/rig"
)

// Describe renders a human-readable HTML summary of a Rig document:
// its own description, then each node's handle, bound component
// reference, and declared callouts.
func Describe(doc *rig.Document) string {
	var b strings.Builder

	f := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	if doc.Description != "" {
		f(`<div class="rigDoc doc">%s</div>`, md.Run([]byte(doc.Description)))
	}

	f(`<div class="nodes"><table>`)
	for handle, node := range doc.Rigging {
		f(`<tr class="node"><td><span id="%s" class="nodeHandle">%s</span></td><td>`, handle, handle)
		f(`<div class="component"><code>%s</code></div>`, node.Component)
		if len(node.Callouts) > 0 {
			f(`<div class="callouts"><table>`)
			for calloutHandle, override := range node.Callouts {
				f(`<tr><td>%s</td><td><code>%s</code></td></tr>`, calloutHandle, override.Component)
			}
			f(`</table></div>`)
		}
		f(`</td></tr>`)
	}
	f(`</table></div>`)

	return b.String()
}
