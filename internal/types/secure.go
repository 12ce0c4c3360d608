package types

// redactedPlaceholder replaces secret values in logs and serialized output.
const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString is a string type that cannot leak through fmt or JSON.
// String() and MarshalJSON() return a redacted placeholder; call Unmask()
// where the plaintext is genuinely needed, such as a database connection
// string.
type SecretString string

// String returns the redacted placeholder. Invoked by anything using the
// fmt.Stringer interface.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw plaintext value.
func (s SecretString) Unmask() string {
	return string(s)
}
