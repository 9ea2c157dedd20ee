package service

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/totegamma/starnet/internal/domain"
)

const AddressPrefix = "stn"

// ManifestSigner signs manifests with the node key so installers can
// detect tampering.
type ManifestSigner struct {
	key     *ecdsa.PrivateKey
	address string
}

func NewManifestSigner(privateKey string) (*ManifestSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid node private key")
	}
	address, err := pubkeyToAddress(&key.PublicKey)
	if err != nil {
		return nil, err
	}
	return &ManifestSigner{key: key, address: address}, nil
}

func pubkeyToAddress(pub *ecdsa.PublicKey) (string, error) {
	addr := crypto.PubkeyToAddress(*pub)
	return bech32.ConvertAndEncode(AddressPrefix, addr.Bytes())
}

// Address is the bech32 form of the node key's address.
func (s *ManifestSigner) Address() string {
	return s.address
}

func manifestHash(m domain.Manifest) ([]byte, error) {
	m.Signature = ""
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(payload), nil
}

func (s *ManifestSigner) Sign(m domain.Manifest) (domain.Manifest, error) {
	m.Signer = s.address
	hash, err := manifestHash(m)
	if err != nil {
		return m, err
	}
	sig, err := crypto.Sign(hash, s.key)
	if err != nil {
		return m, errors.Wrap(err, "sign manifest")
	}
	m.Signature = hex.EncodeToString(sig)
	return m, nil
}

// Verify checks that the signature was produced by the key behind m.Signer.
func (s *ManifestSigner) Verify(m domain.Manifest) error {
	sig, err := hex.DecodeString(m.Signature)
	if err != nil {
		return errors.Wrap(err, "decode signature")
	}
	hash, err := manifestHash(m)
	if err != nil {
		return err
	}
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return errors.Wrap(err, "recover signer")
	}
	address, err := pubkeyToAddress(pub)
	if err != nil {
		return err
	}
	if address != m.Signer {
		return fmt.Errorf("manifest signed by %s, expected %s", address, m.Signer)
	}
	return nil
}
