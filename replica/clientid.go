package replica

import "math/rand"

const clientIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
const clientIDLength = 5

// newClientID mints an opaque 5-character identifier drawn uniformly
// from the lowercase-alphanumeric alphabet. ClientIDs are only
// required to be unique within one client's live pending set; the
// server never interprets them.
func newClientID() string {
	id := make([]byte, clientIDLength)
	for i := range id {
		id[i] = clientIDAlphabet[rand.Intn(len(clientIDAlphabet))]
	}
	return string(id)
}
