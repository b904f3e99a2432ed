package config

import "encoding/json"

// SensitiveString holds a secret value that must never appear in logs or
// serialized output. Use Value() at the single point the secret is consumed.
type SensitiveString string

const redactedPlaceholder = "[REDACTED]"

func (s SensitiveString) String() string {
	if s == "" {
		return ""
	}
	return redactedPlaceholder
}

// Value returns the underlying secret.
func (s SensitiveString) Value() string {
	return string(s)
}

func (s SensitiveString) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *SensitiveString) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = SensitiveString(raw)
	return nil
}
