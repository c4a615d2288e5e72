package main

import "github.com/YOROBIZ/sentimentiq/internal/cli"

func main() {
	cli.Execute()
}
