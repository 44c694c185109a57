package anonymize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ComputeProofHash returns the SHA-256 hex digest of the report's canonical
// JSON form with the proof hash field blanked. Recomputing the digest over a
// certificate's embedded report detects tampering.
func ComputeProofHash(r *Report) (string, error) {
	c := *r
	c.ProofHash = ""
	data, err := json.Marshal(&c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// RenderCertificate formats the human-readable anonymization certificate.
// Section headers are fixed; downstream tooling greps for them.
func RenderCertificate(r *Report) string {
	var b strings.Builder
	b.WriteString("=== ANONYMIZATION CERTIFICATE ===\n")
	fmt.Fprintf(&b, "User: %s\n", r.UserID)
	fmt.Fprintf(&b, "Started: %s\n", r.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Finished: %s\n", r.FinishedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Point of no return reached: %t\n", r.PointOfNoReturnReached)
	fmt.Fprintf(&b, "Success: %t\n", r.Success)
	b.WriteString("\n")

	for _, p := range r.Phases {
		fmt.Fprintf(&b, "PHASE %d: %s\n", p.Phase, p.Name)
		fmt.Fprintf(&b, "  Status: %s\n", p.Status)
		if p.Detail != "" {
			fmt.Fprintf(&b, "  %s\n", p.Detail)
		}
		for _, e := range p.Errors {
			fmt.Fprintf(&b, "  ERROR: %s\n", e)
		}
	}
	b.WriteString("\n")

	if r.KeyDestruction != nil {
		b.WriteString(r.KeyDestruction.Render())
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "PROOF-HASH (SHA-256): %s\n", r.ProofHash)
	return b.String()
}
