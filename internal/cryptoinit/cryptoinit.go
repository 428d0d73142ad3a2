// Package cryptoinit wires the crypto package's generator/storage/format
// hooks to their concrete implementations in crypto/keys, crypto/storage and
// crypto/formats. It exists purely to break the import cycle those packages
// would otherwise form with crypto (they import crypto for its shared
// interfaces; crypto cannot import them back directly).
//
// Blank-import this package once from the process entrypoint (or from the
// wallet package, which is the only caller of the crypto.New* constructors)
// before using crypto.NewEd25519KeyPair and friends.
package cryptoinit

import (
	"github.com/sage-x-project/didexchange/crypto"
	"github.com/sage-x-project/didexchange/crypto/formats"
	"github.com/sage-x-project/didexchange/crypto/keys"
	"github.com/sage-x-project/didexchange/crypto/storage"
)

func init() {
	crypto.SetKeyGenerators(keys.GenerateEd25519KeyPair, keys.GenerateSecp256k1KeyPair)
	crypto.SetStorageConstructors(storage.NewMemoryKeyStorage)
	crypto.SetFormatConstructors(
		formats.NewJWKExporter, nil,
		formats.NewJWKImporter, nil,
	)
}
