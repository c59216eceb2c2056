// Package hashpass implements the operator tool that turns a password typed
// at the terminal into an Argon2id hash suitable for seeding accounts.
package hashpass

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/fitaccounts/internal/common"
	"github.com/dmitrijs2005/fitaccounts/internal/cryptox"
	"github.com/dmitrijs2005/fitaccounts/internal/server/validation"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var ErrMismatch = errors.New("passwords do not match")

// getPassword prompts on w and reads a line from the terminal without echo.
// The caller wipes the returned slice.
func getPassword(w io.Writer, prompt string) ([]byte, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// Run asks for the password twice, applies the password policy and prints
// the encoded hash to out.
func Run(w, out io.Writer, hasher cryptox.PasswordHasher) error {
	pw, err := getPassword(w, "Enter password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	again, err := getPassword(w, "Repeat password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(again)

	if string(pw) != string(again) {
		return ErrMismatch
	}

	if err := validation.ValidatePassword(string(pw)); err != nil {
		return err
	}

	hash, err := hasher.Hash(string(pw))
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, hash)
	return err
}
