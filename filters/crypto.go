package filters

import (
	"github.com/kbukum/reportflow/encryption"
	"github.com/kbukum/reportflow/filter"
)

// Encrypt seals every payload with c. The report id is bound as associated
// data, so a sealed payload cannot be replayed under another id.
func Encrypt(name string, c *encryption.Cipher) filter.Filter {
	layer := string(c.Algorithm())
	return filter.Each(name, eachPayload(layer, func(id, data, encoding string) (string, string, error) {
		sealed, err := c.Seal([]byte(data), []byte(id))
		if err != nil {
			return "", "", err
		}
		return sealed, pushLayer(encoding, layer), nil
	}))
}

// Decrypt reverses Encrypt.
func Decrypt(name string, c *encryption.Cipher) filter.Filter {
	layer := string(c.Algorithm())
	return filter.Each(name, eachPayload(layer, func(id, data, encoding string) (string, string, error) {
		rest, err := popLayer(encoding, layer)
		if err != nil {
			return "", "", err
		}
		plain, err := c.Open(data, []byte(id))
		if err != nil {
			return "", "", err
		}
		return string(plain), rest, nil
	}))
}
