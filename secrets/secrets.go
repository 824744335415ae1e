// Package secrets declares the encryption capability the console consumes.
// Key management and the cipher itself live outside this service; a component
// that needs to store sensitive material accepts an Encryptor and stays
// agnostic to where the keys come from.
package secrets

import "context"

// Encryptor seals and opens opaque byte payloads.
type Encryptor interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}
