package signing

import (
	"encoding/binary"

	"github.com/Caqil/solana-share-signer/internal/security"
	"github.com/Caqil/solana-share-signer/pkg/crypto/kdf"
)

// ChildSalt separates child-seed derivation from every other HKDF use
const ChildSalt = "solana-share-signer/hd-child/v1"

// DeriveChildSeed returns the seed for wallet index under master.
//
// Index 0 is the master wallet itself and yields a copy of master, so
// records created before hierarchical wallets keep their address. Any other
// index yields HKDF-SHA256(ikm=master, salt=ChildSalt, info=uint32be(index)).
// The result is always a fresh buffer the caller must Destroy.
func DeriveChildSeed(master []byte, index uint32) (*security.SecretBuffer, error) {
	if err := security.ValidateExactLength(master, SeedSize); err != nil {
		return nil, ErrInvalidSeed
	}

	if index == 0 {
		return security.CopySecret(master), nil
	}

	var info [4]byte
	binary.BigEndian.PutUint32(info[:], index)

	child, err := kdf.HKDF(master, []byte(ChildSalt), info[:], SeedSize)
	if err != nil {
		return nil, err
	}
	return security.TakeSecret(child), nil
}
