// Package encryption seals report payloads with an AEAD cipher.
//
// Keys are derived from a passphrase with SHA-256. Sealed output is base64
// text so it can be stored in a report document.
//
//	c, err := encryption.New(passphrase, encryption.AlgorithmChaCha20)
//	sealed, err := c.Seal(payload, []byte(reportID))
//	payload, err := c.Open(sealed, []byte(reportID))
package encryption
