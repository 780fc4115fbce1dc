package models

// Verification is a resolved recipient identity. The inputs it was produced
// for are kept so a stale result can be recognised.
type Verification struct {
	Verified     bool   `json:"verified"`
	CustomerName string `json:"customerName"`
	Provider     string `json:"provider"`
	Identifier   string `json:"identifier"`
	MeterType    string `json:"meterType,omitempty"`
}

// Matches reports whether the verification was produced for exactly these inputs.
func (v *Verification) Matches(provider, identifier, meterType string) bool {
	if v == nil || !v.Verified || v.CustomerName == "" {
		return false
	}
	return v.Provider == provider && v.Identifier == identifier && v.MeterType == meterType
}
