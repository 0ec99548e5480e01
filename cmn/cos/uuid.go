// Package cos provides common low-level types and utilities for gaussnet nodes
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package cos

import (
	"strconv"
	ratomic "sync/atomic"

	"github.com/OneOfOne/xxhash"
	"github.com/teris-io/shortid"
)

const (
	// alphabet for generating UUIDs, similar to the shortid.DEFAULT_ABC
	uuidABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

	LenShortID  = 9 // UUID length, as per https://github.com/teris-io/shortid#id-length
	lenDaemonID = 8

	// seed for the worker-key digest (the LCG32 multiplier)
	MLCG32 = 1103515245
)

var (
	sid  *shortid.Shortid
	rtie ratomic.Uint32
)

func InitShortID(seed uint64) {
	sid = shortid.MustNew(4 /*worker*/, uuidABC, seed)
}

//
// UUID
//

// message and packet identifiers
func GenUUID() (uuid string) {
	var h, t string
	uuid = sid.MustGenerate()
	if !isAlpha(uuid[0]) {
		tie := int(rtie.Add(1))
		h = string(rune('A' + tie%26))
	}
	c := uuid[len(uuid)-1]
	if c == '-' || c == '_' {
		tie := int(rtie.Add(1))
		t = string(rune('a' + tie%26))
	}
	return h + uuid + t
}

//
// Daemon ID
//

func GenDaemonID() string { return CryptoRandS(lenDaemonID) }

// stable short digest of a worker's advertised "ip:port" key; used for display
// and registry bookkeeping (not for routing - the key itself routes)
func HashWorkerKey(hostport string) string {
	digest := xxhash.Checksum64S([]byte(hostport), MLCG32)
	pid := strconv.FormatUint(digest, 36)
	if pid[0] >= '0' && pid[0] <= '9' {
		pid = pid[1:]
	}
	return pid
}

//
// utility functions
//

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
