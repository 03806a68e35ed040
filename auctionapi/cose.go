package auctionapi

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/cloudx-io/vcgauction/auctionapi/parsing"
)

// AttestationCOSE is the raw COSE_Sign1 attestation as returned by the NSM
type AttestationCOSE []byte

// AttestationCOSEBase64 is the standard base64 form used in JSON responses
type AttestationCOSEBase64 string

// AttestationCOSEURLBase64 is the unpadded URL-safe base64 form
type AttestationCOSEURLBase64 string

// AttestationCOSEGzip is the gzip-compressed, unpadded URL-safe base64 form used in notifications
type AttestationCOSEGzip string

// EncodeBase64 encodes the attestation for JSON transport
func (a AttestationCOSE) EncodeBase64() AttestationCOSEBase64 {
	return AttestationCOSEBase64(base64.StdEncoding.EncodeToString(a))
}

// EncodeURLSafe encodes the attestation for URLs, without padding
func (a AttestationCOSE) EncodeURLSafe() AttestationCOSEURLBase64 {
	return AttestationCOSEURLBase64(base64.RawURLEncoding.EncodeToString(a))
}

// CompressGzip compresses the attestation and encodes it URL-safe
func (a AttestationCOSE) CompressGzip() (AttestationCOSEGzip, error) {
	var buf bytes.Buffer
	writer, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return "", fmt.Errorf("create gzip writer: %w", err)
	}
	if _, err := writer.Write(a); err != nil {
		return "", fmt.Errorf("gzip write: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("gzip close: %w", err)
	}
	return AttestationCOSEGzip(base64.RawURLEncoding.EncodeToString(buf.Bytes())), nil
}

// ParseAttestationDoc extracts the Nitro attestation document from the COSE payload.
// Returns the structured document and the raw user data bytes.
func (a AttestationCOSE) ParseAttestationDoc() (AttestationDoc, []byte, error) {
	payload, err := parsing.ExtractCOSEPayload(a)
	if err != nil {
		return AttestationDoc{}, nil, err
	}

	nitroDoc, err := parsing.DecodeNitroDocument(payload)
	if err != nil {
		return AttestationDoc{}, nil, err
	}

	doc := AttestationDoc{
		ModuleID:        nitroDoc.ModuleID,
		Timestamp:       time.UnixMilli(int64(nitroDoc.Timestamp)).UTC(),
		DigestAlgorithm: nitroDoc.Digest,
		PCRs:            ExtractPCRs(nitroDoc.PCRs),
		Certificate:     base64.StdEncoding.EncodeToString(nitroDoc.Certificate),
		CABundle:        parsing.EncodeCertificateBundle(nitroDoc.CABundle),
		PublicKey:       base64.StdEncoding.EncodeToString(nitroDoc.PublicKey),
		Nonce:           string(nitroDoc.Nonce),
	}

	return doc, nitroDoc.UserData, nil
}

// ExtractPCRs extracts and formats PCR values from the raw CBOR PCR map
func ExtractPCRs(rawPCRs map[uint64][]byte) PCRs {
	return PCRs{
		ImageFileHash:   parsing.FormatPCR(rawPCRs[0]),
		KernelHash:      parsing.FormatPCR(rawPCRs[1]),
		ApplicationHash: parsing.FormatPCR(rawPCRs[2]),
		IAMRoleHash:     parsing.FormatPCR(rawPCRs[3]),
		InstanceIDHash:  parsing.FormatPCR(rawPCRs[4]),
		SigningCertHash: parsing.FormatPCR(rawPCRs[8]),
	}
}

func (b AttestationCOSEBase64) String() string {
	return string(b)
}

// Decode returns the raw COSE bytes
func (b AttestationCOSEBase64) Decode() (AttestationCOSE, error) {
	data, err := base64.StdEncoding.DecodeString(string(b))
	if err != nil {
		return nil, fmt.Errorf("decode COSE base64: %w", err)
	}
	return AttestationCOSE(data), nil
}

// CompressGzip converts the base64 form to the compressed notification form
func (b AttestationCOSEBase64) CompressGzip() (AttestationCOSEGzip, error) {
	coseBytes, err := b.Decode()
	if err != nil {
		return "", err
	}
	return coseBytes.CompressGzip()
}

func (u AttestationCOSEURLBase64) String() string {
	return string(u)
}

// Decode restores padding and returns the raw COSE bytes
func (u AttestationCOSEURLBase64) Decode() (AttestationCOSE, error) {
	s := string(u)
	if rem := len(s) % 4; rem != 0 {
		s += strings.Repeat("=", 4-rem)
	}
	data, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode COSE base64url: %w", err)
	}
	return AttestationCOSE(data), nil
}

func (g AttestationCOSEGzip) String() string {
	return string(g)
}

// Decompress returns the raw COSE bytes
func (g AttestationCOSEGzip) Decompress() (AttestationCOSE, error) {
	compressed, err := base64.RawURLEncoding.DecodeString(string(g))
	if err != nil {
		return nil, fmt.Errorf("decode base64url: %w", err)
	}

	reader, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("create gzip reader: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read gzip data: %w", err)
	}
	return AttestationCOSE(data), nil
}
