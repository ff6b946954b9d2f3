// Package verify checks Ethereum account signatures: EIP-191 personal-sign
// recovery for externally owned accounts, EIP-1271 contract calls for smart
// accounts, and CAIP-74 (CACAO) sign-in messages dispatched over both.
package verify
