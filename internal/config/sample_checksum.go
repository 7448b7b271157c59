package config

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
)

// SampleChecksumLength is the number of hex characters SampleChecksum returns.
const SampleChecksumLength = 6

type sampleChecksumPayload struct {
	Variant        string  `json:"variant"`
	Stages         int     `json:"stages"`
	ClockFrequency float64 `json:"clock_frequency"`
	FindSet        bool    `json:"find_set"`
	Samples        string  `json:"samples"`
}

// SampleChecksum returns a short, stable checksum identifying one sample
// file as interpreted by one variant. Chart cosmetics do not contribute.
//
// It computes MD5 over a canonical JSON representation and returns the first 6 hex
// characters (equivalent to `md5sum | cut -c1-6`).
func SampleChecksum(cfg *VariantConfig, samples []byte) (string, error) {
	if cfg == nil {
		return "", nil
	}

	payload := sampleChecksumPayload{
		Variant:        cfg.Variant.Name,
		Stages:         cfg.Variant.Stages,
		ClockFrequency: cfg.Variant.ClockFrequency,
		FindSet:        cfg.Variant.FindSet,
		Samples:        string(samples),
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	sum := md5.Sum(b)
	hexStr := hex.EncodeToString(sum[:])
	if len(hexStr) > SampleChecksumLength {
		hexStr = hexStr[:SampleChecksumLength]
	}
	return hexStr, nil
}

// IsSampleChecksum reports whether s has the form SampleChecksum produces.
func IsSampleChecksum(s string) bool {
	if len(s) != SampleChecksumLength {
		return false
	}
	for _, c := range s {
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return false
		}
	}
	return true
}
