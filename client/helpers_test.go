package client

import (
	"encoding/hex"

	pkgTesting "github.com/quorumsig/multisigd/pkg/testing"
)

func hexKey(s pkgTesting.Signer) string { return hex.EncodeToString(s.Public) }

func hexSig(sig []byte) string { return hex.EncodeToString(sig) }

func boolJSON(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
