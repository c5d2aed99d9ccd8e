package main

import (
	ddns "github.com/larivierec/ddns-reconciler/pkg/cmd"
)

func main() {
	ddns.Start()
}
