// Command dlformula parses, inspects and translates formulas, and plans or
// runs chart requests against a source database.
package main

import (
	"fmt"
	"os"

	"github.com/rulego/dlquery/exc"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if code := exc.Code(err); code != "" {
			fmt.Fprintf(os.Stderr, "%s: %v\n", code, err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
