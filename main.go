// autoviews creates CouchDB views from a list of document fields, and queries
// them with refinements checked before being sent to CouchDB.
//
// The design document of a view is created the first time the view is
// queried, so that the applications only declare the fields they need to
// sort or group their documents by.
package main

import (
	"fmt"
	"os"

	"github.com/cozy/cozy-autoviews/cmd"
)

func main() {
	if err := cmd.RootCmd.Execute(); err != nil {
		if err != cmd.ErrUsage {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error()) // #nosec
			os.Exit(1)
		}
	}
}
