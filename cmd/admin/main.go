// Command admin provides operator utilities for gatekeeper accounts.
package main

import "gatekeeper/cmd/admin/commands"

func main() {
	commands.Execute()
}
