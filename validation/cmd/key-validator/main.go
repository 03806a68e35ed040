package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/cloudx-io/vcgauction/auctionapi"
	"github.com/cloudx-io/vcgauction/validation"
)

// plainTextHandler writes bare messages to stdout, without timestamps or levels
type plainTextHandler struct{}

func (*plainTextHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func (*plainTextHandler) Handle(_ context.Context, r slog.Record) error {
	_, err := fmt.Fprintln(os.Stdout, r.Message)
	return err
}

func (h *plainTextHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	return h
}

func (h *plainTextHandler) WithGroup(_ string) slog.Handler {
	return h
}

var logger = slog.New(&plainTextHandler{})

// Exit codes
const (
	exitValid   = 0
	exitInvalid = 1
	exitError   = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		responseInput = flag.String("response", "", "Key response JSON from the auctioneer (file path or inline JSON)")
		publicKeyPath = flag.String("public-key", "", "PEM file to compare against (default: the key served in the response)")
		pcrConfigPath = flag.String("pcrs", "", "PCR configuration file (default: embedded)")
		outputFormat  = flag.String("format", "text", "Output format: text or json")
		help          = flag.Bool("help", false, "Show usage information")
	)
	flag.Parse()

	if *help {
		showUsage()
		return exitValid
	}
	if *responseInput == "" {
		showUsage()
		fmt.Fprintln(os.Stderr, "\nError: --response is required")
		return exitInvalid
	}

	keyResponse, err := readKeyResponse(*responseInput)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading key response: %v\n", err)
		return exitError
	}

	// Without a separate PEM the check is that the served key is the attested one
	publicKey := keyResponse.PublicKey
	if *publicKeyPath != "" {
		data, err := os.ReadFile(*publicKeyPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading public key: %v\n", err)
			return exitError
		}
		publicKey = string(data)
	}
	if publicKey == "" {
		fmt.Fprintln(os.Stderr, "Error: no public key in response and none given with --public-key")
		return exitError
	}

	verifier, err := validation.NewVerifier(*pcrConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading trust anchors: %v\n", err)
		return exitError
	}

	result, err := verifier.ValidateKeyAttestation(keyResponse.AttestationCOSEBase64, publicKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation error: %v\n", err)
		return exitError
	}

	if *outputFormat == "json" {
		if err := outputJSON(result); err != nil {
			fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
			return exitError
		}
	} else {
		outputText(result)
	}

	if !result.IsValid() {
		return exitInvalid
	}
	return exitValid
}

func showUsage() {
	logger.Info("Auctioneer Key Attestation Validator")
	logger.Info("")
	logger.Info("Checks that the public key served by an auctioneer was generated inside an")
	logger.Info("attested enclave. Run it before sealing bid values with that key.")
	logger.Info("")
	logger.Info("Usage:")
	logger.Info("  key-validator --response <json> [options]")
	logger.Info("")
	logger.Info("Required Flags:")
	logger.Info("  --response <json>                 Key response (file path or inline JSON)")
	logger.Info("")
	logger.Info("Optional Flags:")
	logger.Info("  --public-key <path>               PEM to compare (default: key in the response)")
	logger.Info("  --pcrs <path>                     PCR configuration (default: embedded)")
	logger.Info("  --format <text|json>              Output format (default: text)")
	logger.Info("  --help                            Show this help message")
	logger.Info("")
	logger.Info("Exit Codes:")
	logger.Info("  0 - Validation passed")
	logger.Info("  1 - Validation failed")
	logger.Info("  2 - Invalid input or runtime error")
}

func readKeyResponse(input string) (*auctionapi.KeyResponse, error) {
	data, err := os.ReadFile(input)
	if err != nil {
		// Treat as inline JSON
		data = []byte(input)
	}

	var keyResponse auctionapi.KeyResponse
	if err := json.Unmarshal(data, &keyResponse); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if keyResponse.AttestationCOSEBase64 == "" {
		return nil, fmt.Errorf("missing attestation_cose_base64 field in key response")
	}
	return &keyResponse, nil
}

func outputText(result *validation.KeyValidationResult) {
	logger.Info("Auctioneer Key Attestation")
	logger.Info("==========================")
	logger.Info(fmt.Sprintf("  PCRs Valid:        %v", result.PCRsValid))
	logger.Info(fmt.Sprintf("  Certificate Valid: %v", result.CertificateValid))
	logger.Info(fmt.Sprintf("  Signature Valid:   %v", result.SignatureValid))
	logger.Info(fmt.Sprintf("  Public Key Match:  %v", result.PublicKeyMatch))
	logger.Info("")
	for _, detail := range result.ValidationDetails {
		logger.Info("  - " + detail)
	}
	logger.Info("")
	if result.IsValid() {
		logger.Info("VALIDATION: ✓ PASSED")
	} else {
		logger.Info("VALIDATION: ✗ FAILED")
	}
}

func outputJSON(result *validation.KeyValidationResult) error {
	output := map[string]any{
		"valid":             result.IsValid(),
		"pcrs_valid":        result.PCRsValid,
		"certificate_valid": result.CertificateValid,
		"signature_valid":   result.SignatureValid,
		"public_key_match":  result.PublicKeyMatch,
		"details":           result.ValidationDetails,
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return err
	}
	logger.Info(string(data))
	return nil
}
