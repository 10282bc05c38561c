// This program performs administrative tasks for the gateway service.
package main

import "github.com/cloakchain/gateway/app/tooling/admin/cmd"

func main() {
	cmd.Execute()
}
