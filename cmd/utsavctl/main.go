// Command utsavctl drives a Sangh Utsav session from a terminal: sign in, inspect the
// stored session, validate it against the backend, register accounts and check which
// app routes the guard would allow.
//
// The session lives in Redis when --redis is given, otherwise in a YAML file under the
// user config directory. Setting the environment variable named by --passphrase-env
// seals the file with a key derived from its value.
//
//	utsavctl login --username 9876543210
//	utsavctl whoami
//	utsavctl restore
//	utsavctl open dashboard
//	utsavctl logout
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
