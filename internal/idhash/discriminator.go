// Package idhash computes the deterministic hashes used to identify schema
// entities on the wire and records in storage.
package idhash

import (
	"crypto/sha256"
)

// Hash namespaces.
const (
	NamespaceAccount = "account"
	NamespaceEvent   = "event"
	NamespaceGlobal  = "global"
	NamespaceState   = "state"
)

// DiscriminatorSize is the length of every discriminator and sighash.
const DiscriminatorSize = 8

// Discriminator computes SHA256(namespace:name) truncated to 8 bytes.
func Discriminator(namespace, name string) [DiscriminatorSize]byte {
	var out [DiscriminatorSize]byte
	hash := sha256.Sum256([]byte(namespace + ":" + name))
	copy(out[:], hash[:DiscriminatorSize])
	return out
}

// AccountDiscriminator identifies account data of the named account type.
func AccountDiscriminator(name string) [DiscriminatorSize]byte {
	return Discriminator(NamespaceAccount, name)
}

// EventDiscriminator identifies an event payload of the named event.
func EventDiscriminator(name string) [DiscriminatorSize]byte {
	return Discriminator(NamespaceEvent, name)
}

// Sighash identifies an instruction. name must already be in snake_case.
func Sighash(name string) [DiscriminatorSize]byte {
	return Discriminator(NamespaceGlobal, name)
}

// StateSighash identifies a state method. name must already be in snake_case.
func StateSighash(name string) [DiscriminatorSize]byte {
	return Discriminator(NamespaceState, name)
}

// SeedPrefix computes SHA256(s) truncated to 8 bytes, used as a derivation seed.
// Formula: SHA256(s)[:8]
func SeedPrefix(s string) []byte {
	hash := sha256.Sum256([]byte(s))
	return hash[:DiscriminatorSize]
}
