// Command wallet is a thin CLI client for a running node: generate a
// keypair, print an address, check a balance, and submit a signed
// transaction over the v1 RPC API.
//
// Grounded on app/wallet/cli/cmd's root.go + Execute() entry point.
package main

import "github.com/ledgerforge/corechain/cmd/wallet/cmd"

func main() {
	cmd.Execute()
}
