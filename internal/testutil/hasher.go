package testutil

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/wye/wye-server/internal/services/password"
)

// FastHasher returns a bcrypt hasher at minimum cost so tests stay quick
func FastHasher() *password.Service {
	h, err := password.New(password.AlgorithmBcrypt, bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return h
}
