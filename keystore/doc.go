// Package keystore writes encrypted backups of share-holders' secrets.
//
// Each backup is a CBOR [Record] sealed with AES-256-GCM under a key that
// scrypt derives from a passphrase and a fresh per-file salt. Files are
// created with mode 0600 and replaced atomically.
package keystore
