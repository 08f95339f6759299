// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

const envelopeVersion = 1

// envelope wraps every persisted value with a checksum of its payload.
type envelope struct {
	Version  int             `json:"version"`
	Checksum string          `json:"sha256"`
	Payload  json.RawMessage `json:"payload"`
}

func encodeEnvelope(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	sum := sha256.Sum256(payload)
	return json.Marshal(envelope{
		Version:  envelopeVersion,
		Checksum: hex.EncodeToString(sum[:]),
		Payload:  payload,
	})
}

// decodeEnvelope verifies the checksum and unmarshals the payload into v.
// Any failure is reported as ErrCorruptionDetected.
func decodeEnvelope(data []byte, v any) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptionDetected, err)
	}
	if env.Version != envelopeVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrCorruptionDetected, env.Version)
	}
	sum := sha256.Sum256(env.Payload)
	if hex.EncodeToString(sum[:]) != env.Checksum {
		return fmt.Errorf("%w: checksum mismatch", ErrCorruptionDetected)
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptionDetected, err)
	}
	return nil
}

func encodePattern(p *SuccessPattern) ([]byte, error) {
	return encodeEnvelope(p)
}

func decodePattern(data []byte) (*SuccessPattern, error) {
	var p SuccessPattern
	if err := decodeEnvelope(data, &p); err != nil {
		return nil, err
	}
	if err := p.check(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptionDetected, err)
	}
	return &p, nil
}
