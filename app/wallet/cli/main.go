package main

import "github.com/cloakchain/gateway/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
