// Package cos provides common low-level types and utilities for gaussnet nodes
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package cos

import (
	cryptorand "crypto/rand"
	"encoding/hex"
)

func CryptoRandS(n int) string {
	b := make([]byte, (n+1)/2)
	if _, err := cryptorand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)[:n]
}
