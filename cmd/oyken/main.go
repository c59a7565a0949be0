// Command oyken runs the restaurant ledger: the JSON API, the rollup worker
// and the reporting tools.
package main

import "oyken/internal/cli"

func main() {
	cli.Execute()
}
