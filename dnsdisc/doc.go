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

// Package dnsdisc implements client-side resolution of node lists in the
// EIP-1459 DNS discovery scheme. A tree of node records is published as a
// set of signed DNS TXT records; this package resolves a given root domain
// into a stream of ENRs, following links into other trees under an
// optional allow-list.
package dnsdisc
