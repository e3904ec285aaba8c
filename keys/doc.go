// Package keys holds participant signing keys.
//
// Public keys are published into a workspace as "<alg>:<base64>" strings
// (ed25519 or dilithium3). Private material never enters the document: it
// lives in a local KeyStore, optionally encrypted at rest with an age
// passphrase, and is used through the Signer interface.
package keys
