package validation

import "fmt"

// BaseValidationResult contains common validation results for all attestation types
type BaseValidationResult struct {
	PCRsValid         bool
	CertificateValid  bool
	SignatureValid    bool
	ValidationDetails []string
}

func (r *BaseValidationResult) detail(format string, args ...any) {
	r.ValidationDetails = append(r.ValidationDetails, fmt.Sprintf(format, args...))
}

// KeyValidationResult contains validation results specific to key attestations
type KeyValidationResult struct {
	BaseValidationResult
	PublicKeyMatch bool
}

// IsValid returns true if all key validation checks passed
func (r *KeyValidationResult) IsValid() bool {
	return r.PCRsValid && r.CertificateValid && r.SignatureValid && r.PublicKeyMatch
}

// OutcomeValidationResult contains validation results specific to VCG outcome attestations
type OutcomeValidationResult struct {
	BaseValidationResult
	BidHashValid        bool
	AwardValid          bool
	AdjustmentHashValid bool
	ReservesHashValid   bool

	// RecomputeChecked is set when a full request was supplied and the
	// mechanism was rerun locally; RecomputeValid holds the comparison.
	RecomputeChecked bool
	RecomputeValid   bool
}

// IsValid returns true if all outcome validation checks passed
func (r *OutcomeValidationResult) IsValid() bool {
	return r.PCRsValid && r.CertificateValid && r.SignatureValid &&
		r.BidHashValid && r.AwardValid && r.AdjustmentHashValid && r.ReservesHashValid &&
		(!r.RecomputeChecked || r.RecomputeValid)
}

// PCRSet represents a known-good set of PCR measurements
type PCRSet struct {
	PCR0       string `json:"pcr0"`
	PCR1       string `json:"pcr1"`
	PCR2       string `json:"pcr2"`
	CommitHash string `json:"commit_hash"` // repo commit used to build the enclave image
}

// PCRConfig represents the PCR configuration file structure
type PCRConfig struct {
	PCRSets []PCRSet `json:"pcr_sets"`
}
