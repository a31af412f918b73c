package lifecycle

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// TokenWords is the fixed number of 32-bit words in an unlock token.
const TokenWords = 4

// TokenBytes is the token size in bytes.
const TokenBytes = TokenWords * 4

// tokenCustomization is the cSHAKE customization string the controller
// applies when hashing presented tokens.
const tokenCustomization = "LC_CTRL"

// Token is a hashed unlock token in the word order the controller's
// transition registers expect.
type Token [TokenWords]uint32

// DeriveToken hashes a caller-supplied secret into the token presented to
// the life-cycle controller.
func DeriveToken(secret []byte) Token {
	h := sha3.NewCShake128(nil, []byte(tokenCustomization))
	h.Write(secret)
	digest := make([]byte, TokenBytes)
	h.Read(digest)
	return TokenFromBytes(digest)
}

// TokenFromBytes packs a raw TokenBytes-long token into the word order the
// transition registers expect. raw must be exactly TokenBytes long.
func TokenFromBytes(raw []byte) Token {
	var t Token
	for i := range t {
		t[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return t
}
