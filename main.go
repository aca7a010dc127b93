package main

import "github.com/sqlgate/sqlgate/cmd/sqlgate"

func main() {
	sqlgate.Main()
}
