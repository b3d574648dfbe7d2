package main

import "policyqa/internal/cli"

func main() {
	cli.Execute()
}
