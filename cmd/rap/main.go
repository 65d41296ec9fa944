// Command rap is the Request Authenticator/Processor worker: one process
// per authenticated WebDAV session, spawned by an unprivileged front-end
// with the control channel already bound to a known fd (§6).
package main

import (
	"fmt"
	"os"

	"github.com/couling/webdav-rap/cmd/rap/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
