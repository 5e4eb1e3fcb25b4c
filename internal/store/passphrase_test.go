package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"groupseal/internal/store"
)

func TestCheckPassphrase(t *testing.T) {
	cases := map[string]bool{
		"Str0ng!Passphrase": true,
		"short1!A":          false,
		"nouppercase123!!":  false,
		"NOLOWERCASE123!!":  false,
		"NoDigitsHere!!!!":  false,
		"NoSymbols1234567":  false,
		"Ünïcødé-Pässw0rd":  true,
	}
	for pass, ok := range cases {
		err := store.CheckPassphrase(pass)
		if ok {
			assert.NoError(t, err, pass)
		} else {
			assert.ErrorIs(t, err, store.ErrWeakPassphrase, pass)
		}
	}
}
