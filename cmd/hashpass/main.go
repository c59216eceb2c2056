// Command hashpass prints an Argon2id hash for a password read from the
// terminal, e.g. to seed accounts directly in the database.
package main

import (
	"fmt"
	"os"

	"github.com/dmitrijs2005/fitaccounts/internal/cryptox"
	"github.com/dmitrijs2005/fitaccounts/internal/hashpass"
)

func main() {
	if err := hashpass.Run(os.Stderr, os.Stdout, cryptox.NewArgon2Hasher(cryptox.DefaultParams)); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
