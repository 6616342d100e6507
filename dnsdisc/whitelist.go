// Copyright 2025 R5 Labs
// This file is part of the R5 Core library.
//
// This software is provided "as is", without warranty of any kind,
// express or implied, including but not limited to the warranties
// of merchantability, fitness for a particular purpose and
// noninfringement. In no event shall the authors or copyright
// holders be liable for any claim, damages, or other liability,
// whether in an action of contract, tort or otherwise, arising
// from, out of or in connection with the software or the use or
// other dealings in the software.

package dnsdisc

import "crypto/ecdsa"

// Whitelist restricts which domains a Link record is allowed to follow, and
// which public key it must be signed by. A nil Whitelist allows every
// domain. A non-nil Whitelist, including an empty one, allows only the
// domains it lists, and only when the link's public key matches exactly.
type Whitelist map[string]*ecdsa.PublicKey

func domainIsAllowed(wl Whitelist, link *linkEntry) bool {
	if wl == nil {
		return true
	}
	want, ok := wl[link.domain]
	return ok && want.Equal(link.pubkey)
}
