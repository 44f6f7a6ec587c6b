// Package nameservice reads a folder of *.ecdsa private key files and
// builds a name lookup from the address each key derives to the file's
// base name, the same walk the teacher's foundation/nameservice does over
// zblock/accounts, generalized from storage.Account to types.Address.
package nameservice

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ledgerforge/corechain/internal/blockchain/types"
)

// NameService maps known addresses to a human-readable name.
type NameService struct {
	names map[types.Address]string
}

// New walks root for *.ecdsa key files and derives an address for each.
func New(root string) (*NameService, error) {
	ns := NameService{names: make(map[types.Address]string)}

	fn := func(fileName string, info fs.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("nameservice: walk: %w", err)
		}
		if info.IsDir() || path.Ext(fileName) != ".ecdsa" {
			return nil
		}

		privateKey, err := crypto.LoadECDSA(fileName)
		if err != nil {
			return fmt.Errorf("nameservice: load %s: %w", fileName, err)
		}

		addr := types.AddressFromPublicKey(crypto.FromECDSAPub(&privateKey.PublicKey))
		ns.names[addr] = strings.TrimSuffix(path.Base(fileName), ".ecdsa")
		return nil
	}

	if err := filepath.Walk(root, fn); err != nil {
		return nil, fmt.Errorf("nameservice: walking %s: %w", root, err)
	}

	return &ns, nil
}

// Lookup returns the name for addr, or addr's own string form if unknown.
func (ns *NameService) Lookup(addr types.Address) string {
	if name, ok := ns.names[addr]; ok {
		return name
	}
	return addr.String()
}

// Copy returns a snapshot of the address-to-name map.
func (ns *NameService) Copy() map[types.Address]string {
	out := make(map[types.Address]string, len(ns.names))
	for addr, name := range ns.names {
		out[addr] = name
	}
	return out
}
