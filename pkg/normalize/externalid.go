package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/citypulse/ingest/pkg/models"
)

const fallbackIDLen = 12

// ExternalID prefixes a provider-issued identifier with the source name.
func ExternalID(source models.Source, providerID any) string {
	return fmt.Sprintf("%s_%v", source, providerID)
}

// FallbackExternalID derives a stable identifier for providers that issue
// none, digesting the raw start-time string (not the parsed instant) so
// reruns over the same payload always produce the same id.
func FallbackExternalID(source models.Source, title, rawStart, location string) string {
	sum := sha256.Sum256([]byte(title + "_" + rawStart + "_" + location))
	return string(source) + "_" + hex.EncodeToString(sum[:])[:fallbackIDLen]
}
