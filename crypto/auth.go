package crypto

import (
	"errors"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Call authorizations bind a signature to one specific invocation: the digest
// covers the method name and the canonical argument encoding, so a signature
// cannot be replayed against a different method or different arguments.

var errEmptyMethod = errors.New("crypto: empty method name")

// CallDigest returns the keccak256 digest an actor signs to authorize one
// invocation of method with the given canonical argument bytes.
func CallDigest(method string, args []byte) [32]byte {
	var digest [32]byte
	hash := ethcrypto.Keccak256([]byte("marketauth/v1"), []byte(method), args)
	copy(digest[:], hash)
	return digest
}

// SignCall produces a recoverable secp256k1 signature over the call digest.
func SignCall(key *PrivateKey, method string, args []byte) ([]byte, error) {
	if key == nil {
		return nil, errors.New("crypto: nil private key")
	}
	if method == "" {
		return nil, errEmptyMethod
	}
	digest := CallDigest(method, args)
	return ethcrypto.Sign(digest[:], key.PrivateKey)
}

// RecoverCaller returns the 20-byte address that signed the call digest.
func RecoverCaller(method string, args []byte, sig []byte) ([20]byte, error) {
	var addr [20]byte
	if method == "" {
		return addr, errEmptyMethod
	}
	if len(sig) != 65 {
		return addr, errors.New("crypto: signature must be 65 bytes")
	}
	digest := CallDigest(method, args)
	pub, err := ethcrypto.SigToPub(digest[:], sig)
	if err != nil {
		return addr, err
	}
	copy(addr[:], ethcrypto.PubkeyToAddress(*pub).Bytes())
	return addr, nil
}
