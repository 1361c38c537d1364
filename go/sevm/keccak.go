// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package sevm

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/sha3"
)

var keccakHasherPool = sync.Pool{New: func() any { return sha3.NewLegacyKeccak256() }}

type keccakHasher interface {
	Reset()
	Write(in []byte) (int, error)
	Read(out []byte) (int, error)
}

func keccak256Raw(data []byte) Hash {
	hasher := keccakHasherPool.Get().(keccakHasher)
	hasher.Reset()
	hasher.Write(data)
	var res Hash
	hasher.Read(res[:])
	keccakHasherPool.Put(hasher)
	return res
}

var emptyKeccak256Hash = keccak256Raw(nil)

// keccakCache caches digests of short inputs. Slot keys and mapping keys
// are hashed over and over during symbolic execution; inputs of 32 and 64
// bytes cover the vast majority of them.
var keccakCache, _ = lru.New[string, Hash](4096)

// Keccak256 computes the keccak256 digest of the given data. Digests of
// inputs up to 64 bytes are served from an LRU cache.
func Keccak256(data []byte) Hash {
	if len(data) == 0 {
		return emptyKeccak256Hash
	}
	if len(data) > 64 {
		return keccak256Raw(data)
	}
	key := string(data)
	if hash, ok := keccakCache.Get(key); ok {
		return hash
	}
	hash := keccak256Raw(data)
	keccakCache.Add(key, hash)
	return hash
}
