/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package cache builds result cache keys and keeps merged results of
// recently executed requests.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rulego/dlquery/exc"
)

// DataKeyPart is one typed part of a cache key.
type DataKeyPart struct {
	PartType    string
	PartContent interface{}
}

func (p DataKeyPart) String() string {
	return fmt.Sprintf("%q:%#v", p.PartType, p.PartContent)
}

// LocalKeyRepresentation is an ordered, immutable list of key parts.
type LocalKeyRepresentation struct {
	parts []DataKeyPart
}

// NewLocalKeyRepresentation creates a key from parts.
func NewLocalKeyRepresentation(parts ...DataKeyPart) *LocalKeyRepresentation {
	return &LocalKeyRepresentation{parts: append([]DataKeyPart(nil), parts...)}
}

// Extend returns a new key with one more part.
func (k *LocalKeyRepresentation) Extend(partType string, content interface{}) *LocalKeyRepresentation {
	return k.MultiExtend(DataKeyPart{PartType: partType, PartContent: content})
}

// MultiExtend returns a new key with parts appended.
func (k *LocalKeyRepresentation) MultiExtend(parts ...DataKeyPart) *LocalKeyRepresentation {
	out := make([]DataKeyPart, 0, len(k.parts)+len(parts))
	out = append(out, k.parts...)
	out = append(out, parts...)
	return &LocalKeyRepresentation{parts: out}
}

// KeyParts returns a copy of the parts.
func (k *LocalKeyRepresentation) KeyParts() []DataKeyPart {
	return append([]DataKeyPart(nil), k.parts...)
}

// Validate checks that the key has parts and none of them is nil.
func (k *LocalKeyRepresentation) Validate() error {
	if len(k.parts) == 0 {
		return exc.ErrInvalidCacheKey.New("cache key has no parts")
	}
	for _, p := range k.parts {
		if p.PartContent == nil {
			return exc.ErrInvalidCacheKey.New(fmt.Sprintf("cache key part %q has no content", p.PartType))
		}
	}
	return nil
}

// KeyString renders the parts, equal keys render equally.
func (k *LocalKeyRepresentation) KeyString() string {
	s := make([]string, len(k.parts))
	for i, p := range k.parts {
		s[i] = p.String()
	}
	return "(" + strings.Join(s, ", ") + ")"
}

// Hash returns the hex SHA-256 of the key string.
func (k *LocalKeyRepresentation) Hash() (string, error) {
	if err := k.Validate(); err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(k.KeyString()))
	return hex.EncodeToString(sum[:]), nil
}
