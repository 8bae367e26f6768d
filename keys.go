package ethanol

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip39"
)

/*
Mnemonic used when no other is given. Publicly known; anything derived from it
must only ever hold test funds.
*/
const DefaultMnemonic = "science truck gospel alone trust effort scorpion laundry habit champion magic uncover"

// BIP44 base path for Ethereum accounts; the account index is appended.
const hdPathBase = "m/44'/60'/0'/0"

// BIP39 word list, used as the source of HD keys.
type Mnemonic string

/*
Derives the private key at "m/44'/60'/0'/0/<index>". The seed uses an empty
passphrase, which matches common wallets. Fails if the mnemonic's checksum
doesn't verify.
*/
func (self Mnemonic) DeriveKey(index uint32) (*PrivateKey, error) {
	seed, err := bip39.NewSeedWithErrorChecking(normalizeMnemonic(string(self)), "")
	if err != nil {
		return nil, errors.Wrap(err, "invalid mnemonic")
	}

	path, err := accounts.ParseDerivationPath(fmt.Sprintf("%v/%d", hdPathBase, index))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	for _, child := range path {
		key, err = key.Derive(child)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to derive %v", path)
		}
	}

	ecKey, err := key.ECPrivKey()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	priv, err := crypto.ToECDSA(ecKey.Serialize())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &PrivateKey{key: priv}, nil
}

func normalizeMnemonic(input string) string {
	return strings.Join(strings.Fields(input), " ")
}

// A secp256k1 private key controlling one Ethereum account.
type PrivateKey struct {
	key *ecdsa.PrivateKey
}

// Parses a hex-encoded private key; the "0x" prefix is optional.
func ParsePrivateKey(input string) (*PrivateKey, error) {
	input = strings.TrimPrefix(strings.TrimPrefix(input, "0x"), "0X")
	key, err := crypto.HexToECDSA(input)
	if err != nil {
		return nil, errors.Wrap(err, "invalid private key")
	}
	return &PrivateKey{key: key}, nil
}

// Returns the account address derived from the public key.
func (self *PrivateKey) Address() Address {
	return Address(crypto.PubkeyToAddress(self.key.PublicKey))
}

// Returns the key as "0x"-prefixed hex, zero-padded to 32 bytes.
func (self *PrivateKey) Hex() string {
	return HexBytes(crypto.FromECDSA(self.key)).String()
}

func (self *PrivateKey) ECDSA() *ecdsa.PrivateKey { return self.key }
