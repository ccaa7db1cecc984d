// Command apikey issues a bearer token for a principal and prints the
// API_CREDENTIALS entry that lets the server verify it.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/congo-pay/custody/internal/custody"
	"github.com/congo-pay/custody/internal/identity"
)

func main() {
	principal := flag.String("principal", "", "0x-prefixed address the token authenticates")
	flag.Parse()

	p, err := custody.ParsePrincipal(*principal)
	if err != nil {
		fmt.Fprintf(os.Stderr, "principal: %v\n", err)
		os.Exit(2)
	}

	token, hash, err := identity.GenerateToken()
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("token: %s\n", token)
	fmt.Printf("API_CREDENTIALS='%s:%s'\n", p.Hex(), hash)
}
