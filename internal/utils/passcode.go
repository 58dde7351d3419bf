package utils

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost     = 12
	MinPasscodeLen = 4
)

// HashPasscode hashes an optional session passcode a host can set so only
// invited peers may join with the code.
func HashPasscode(passcode string) (string, error) {
	if len(passcode) < MinPasscodeLen {
		return "", fmt.Errorf("passcode must be at least %d characters long", MinPasscodeLen)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(passcode), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func CheckPasscode(hashedPasscode string, passcode string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPasscode), []byte(passcode))
	return err == nil
}
