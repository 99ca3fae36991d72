package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainModel prefixes model fingerprints.
const DomainModel = "foodcsp/model/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalRecord is the identity-bearing part of a record. ID, description,
// rationale and default flag do not change what the record constrains.
func canonicalRecord(r Record) map[string]any {
	obj := map[string]any{
		"kind":         r.Kind,
		"participant1": r.Participant1,
		"shop":         r.Shop,
	}
	if r.Participant2 != "" {
		obj["participant2"] = r.Participant2
	}
	if len(r.Items) > 0 {
		obj["items"] = r.Items
	}
	return obj
}

func canonicalRegistry(reg *Registry) map[string]any {
	shops := make([]any, 0, len(reg.shops))
	for _, s := range reg.shops {
		shop := map[string]any{
			"name":  s.Name,
			"items": s.Items,
		}
		if s.Restricted() {
			shop["eligible"] = s.Eligible
		}
		shops = append(shops, shop)
	}
	return map[string]any{
		"participants": reg.participants,
		"shops":        shops,
	}
}

// Fingerprint identifies a compiled model: the registry plus the ordered list
// of applied records. Equal fingerprints mean structurally equal models.
func Fingerprint(reg *Registry, applied []Record) (string, error) {
	records := make([]any, len(applied))
	for i, r := range applied {
		records[i] = canonicalRecord(r)
	}
	obj := map[string]any{
		"registry":       canonicalRegistry(reg),
		"records":        records,
		"schema_version": SchemaVersion,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("Fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainModel, canonical), nil
}
