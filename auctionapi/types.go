package auctionapi

import (
	"time"
)

// Message types carried in the "type" field of every request and response
const (
	TypePing        = "ping"
	TypePong        = "pong"
	TypeKeyRequest  = "key_request"
	TypeKeyResponse = "key_response"
	TypeVCGRequest  = "vcg_request"
	TypeVCGResponse = "vcg_response"
	TypeError       = "error"
)

// EncryptedBidValue represents an encrypted bid value using RSA-OAEP/AES-256-GCM.
// Bidders may encrypt their values with the public key returned by a key request,
// ensuring that values are only ever decrypted inside the enclave where the mechanism runs.
type EncryptedBidValue struct {
	AESKeyEncrypted  string `json:"aes_key_encrypted"`        // base64-encoded RSA-OAEP encrypted AES key
	EncryptedPayload string `json:"encrypted_payload"`        // base64-encoded AES-GCM encrypted {"value": X}
	Nonce            string `json:"nonce"`                    // base64-encoded GCM nonce (12 bytes)
	HashAlgorithm    string `json:"hash_algorithm,omitempty"` // Optional: "SHA-256" (default) or "SHA-1" for RSA-OAEP
}

// BundleBid is one bundle a bidder names, with a plain or encrypted value.
type BundleBid struct {
	Items          []string           `json:"items"`
	Value          float64            `json:"value,omitempty"`
	EncryptedValue *EncryptedBidValue `json:"encrypted_value,omitempty"` // If present, Value is ignored
}

// BidderValuation groups the bundle bids of one bidder.
type BidderValuation struct {
	Bidder string      `json:"bidder"`
	Bids   []BundleBid `json:"bids"`
}

// VCGRequest is the format expected by the auctioneer for a mechanism run
type VCGRequest struct {
	Type              string             `json:"type"`
	AuctionID         string             `json:"auction_id"`
	Bidders           []BidderValuation  `json:"bidders"`
	AdjustmentFactors map[string]float64 `json:"adjustment_factors,omitempty"`
	ItemReserves      map[string]float64 `json:"item_reserves,omitempty"`
	TieBreak          string             `json:"tie_break,omitempty"` // "latest" (default) or "first"
	Timestamp         time.Time          `json:"timestamp"`
}

// ExcludedBid represents a bid that was excluded from the mechanism (e.g., decryption failure)
type ExcludedBid struct {
	Bidder string   `json:"bidder"`
	Items  []string `json:"items"`
	Reason string   `json:"reason"`
}

// Award is one bidder's outcome of a mechanism run.
type Award struct {
	Bidder         string     `json:"bidder"`
	Bundles        [][]string `json:"bundles"`
	Value          float64    `json:"value"`
	Payment        float64    `json:"payment"`
	WelfareWithout float64    `json:"welfare_without"`
}

// VCGResponse represents the response from the auctioneer after a mechanism run
type VCGResponse struct {
	Type                  string                `json:"type"`
	Success               bool                  `json:"success"`
	Message               string                `json:"message"`
	RunID                 string                `json:"run_id,omitempty"`
	Welfare               float64               `json:"welfare"`
	Awards                []Award               `json:"awards,omitempty"`
	AttestationCOSEBase64 AttestationCOSEBase64 `json:"attestation_cose_base64,omitempty"`
	ExcludedBids          []ExcludedBid         `json:"excluded_bids,omitempty"`         // Decryption failures, invalid payloads
	ReserveRejectedBids   []ExcludedBid         `json:"reserve_rejected_bids,omitempty"` // Bids below their items' reserves
	ProcessingTime        int64                 `json:"processing_time_ms"`
}

// KeyResponse represents the response from a key request to the auctioneer
type KeyResponse struct {
	Type                  string                `json:"type"`
	PublicKey             string                `json:"public_key"` // PEM format
	AttestationCOSEBase64 AttestationCOSEBase64 `json:"attestation_cose_base64"`
}

// PCRs represents the Platform Configuration Registers from AWS Nitro Enclaves
type PCRs struct {
	// PCR0: Hash of the Enclave Image File (EIF)
	ImageFileHash string `json:"0"`

	// PCR1: Hash of the Linux kernel and initial RAM data (initramfs)
	KernelHash string `json:"1"`

	// PCR2: Hash of user applications, excluding the boot ramfs
	ApplicationHash string `json:"2"`

	// PCR3: Hash of the IAM role assigned to the parent instance
	IAMRoleHash string `json:"3"`

	// PCR4: Hash of the parent instance's ID
	InstanceIDHash string `json:"4"`

	// PCR8: Hash of the enclave image file's signing certificate
	SigningCertHash string `json:"8,omitempty"`
}

// AttestationDoc represents the base structured attestation data from AWS Nitro Enclaves
// This contains the common fields shared by all attestation types
type AttestationDoc struct {
	// Module ID identifies the enclave
	ModuleID string `json:"module_id"`

	// Timestamp when the attestation was generated
	Timestamp time.Time `json:"timestamp"`

	// Digest algorithm used (e.g., "SHA384")
	DigestAlgorithm string `json:"digest"`

	// PCRs (Platform Configuration Registers) containing measurements
	PCRs PCRs `json:"pcrs"`

	// Certificate containing the attestation signature
	Certificate string `json:"certificate"`

	// Cabundle for certificate chain validation
	CABundle []string `json:"cabundle"`

	// Public key used for attestation
	PublicKey string `json:"public_key"`

	// Nonce for replay protection
	Nonce string `json:"nonce"`
}

// AttestedAward is an award with the bidder identity replaced by a salted hash,
// so the attestation does not leak who took part.
type AttestedAward struct {
	BidderHash string     `json:"bidder_hash"`
	Bundles    [][]string `json:"bundles"`
	Payment    float64    `json:"payment"`
}

// AttestedExclusion is an excluded bid with the bidder identity replaced by a salted hash.
type AttestedExclusion struct {
	BidderHash string   `json:"bidder_hash"`
	Items      []string `json:"items"`
	Reason     string   `json:"reason"`
}

// OutcomeAttestationUserData represents the outcome data embedded in the attestation
type OutcomeAttestationUserData struct {
	AuctionID              string              `json:"auction_id"`
	RunID                  string              `json:"run_id"`
	BidHashes              []string            `json:"bid_hashes"`
	RequestHash            string              `json:"request_hash"`
	AdjustmentFactorsHash  string              `json:"adjustment_factors_hash"`
	ItemReservesHash       string              `json:"item_reserves_hash"`
	TieBreak               string              `json:"tie_break"`
	Welfare                float64             `json:"welfare"`
	Awards                 []AttestedAward     `json:"awards"`
	Excluded               []AttestedExclusion `json:"excluded,omitempty"`
	BidHashNonce           string              `json:"bid_hash_nonce"`
	RequestNonce           string              `json:"request_nonce"`
	AdjustmentFactorsNonce string              `json:"adjustment_factors_nonce"`
	ItemReservesNonce      string              `json:"item_reserves_nonce"`
	Timestamp              time.Time           `json:"timestamp"`
}

// OutcomeAttestationDoc represents attestation specifically for mechanism outcomes
type OutcomeAttestationDoc struct {
	AttestationDoc
	// User data embedded in the attestation (outcome proof data)
	UserData *OutcomeAttestationUserData `json:"user_data"`
}

// KeyAttestationUserData represents the key-specific data embedded in key attestation
type KeyAttestationUserData struct {
	KeyAlgorithm string `json:"key_algorithm"` // e.g., "RSA-2048"
	PublicKey    string `json:"public_key"`    // PEM-encoded public key
}

// KeyAttestationDoc represents attestation specifically for key distribution
type KeyAttestationDoc struct {
	AttestationDoc
	// User data embedded in the attestation (key metadata)
	UserData *KeyAttestationUserData `json:"user_data"`
}
