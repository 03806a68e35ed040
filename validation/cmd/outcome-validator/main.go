package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/cloudx-io/vcgauction/auctionapi"
	"github.com/cloudx-io/vcgauction/validation"
)

func main() {
	// Define CLI flags
	var (
		responseInput    = flag.String("response", "", "VCG response JSON (file path or inline JSON)")
		bidder           = flag.String("bidder", "", "Bidder identity to validate")
		bidsInput        = flag.String("bids", "", "Own bids JSON array (file path or inline JSON)")
		requestInput     = flag.String("request", "", "Full plaintext VCG request JSON for recomputation (optional)")
		adjustmentsInput = flag.String("adjustment-factors", "", "Disclosed adjustment factors JSON object (optional)")
		reservesInput    = flag.String("item-reserves", "", "Disclosed item reserves JSON object (optional)")
		pcrConfigPath    = flag.String("pcrs", "", "PCR configuration file (default: embedded)")
		outputFormat     = flag.String("format", "text", "Output format: text or json")
		help             = flag.Bool("help", false, "Show usage information")
	)

	flag.Parse()

	// Show help
	if *help {
		showUsage()
		os.Exit(0)
	}

	// Check for required inputs
	if *responseInput == "" || *bidder == "" || *bidsInput == "" {
		showUsage()
		fmt.Fprintf(os.Stderr, "\nError: --response, --bidder and --bids are required\n")
		os.Exit(1)
	}

	input, err := buildValidationInput(*responseInput, *bidder, *bidsInput, *requestInput, *adjustmentsInput, *reservesInput)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error extracting validation data: %v\n", err)
		os.Exit(2)
	}

	verifier, err := validation.NewVerifier(*pcrConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading trust anchors: %v\n", err)
		os.Exit(2)
	}

	// Validate using library
	result, err := verifier.ValidateOutcomeAttestation(context.Background(), input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation error: %v\n", err)
		os.Exit(2)
	}

	// Output results
	if *outputFormat == "json" {
		outputJSON(result)
	} else {
		outputText(result)
	}

	// Exit with appropriate code
	if !result.IsValid() {
		os.Exit(1)
	}
	os.Exit(0)
}

func showUsage() {
	fmt.Println("VCG Outcome Attestation Validator")
	fmt.Println()
	fmt.Println("Validates an enclave-attested VCG auction outcome from one bidder's point of view.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  outcome-validator --response <json> --bidder <id> --bids <json> [options]")
	fmt.Println()
	fmt.Println("Required Flags:")
	fmt.Println("  --response <json>                 VCG response returned by the auctioneer")
	fmt.Println("  --bidder <id>                     Bidder identity used in the request")
	fmt.Println("  --bids <json>                     Own bids: [{\"items\":[\"A\"],\"value\":2.5}]")
	fmt.Println()
	fmt.Println("Optional Flags:")
	fmt.Println("  --request <json>                  Full plaintext request; reruns the mechanism")
	fmt.Println("  --adjustment-factors <json>       Disclosed factors: {\"bidder\":0.9}")
	fmt.Println("  --item-reserves <json>            Disclosed reserves: {\"A\":1.0}")
	fmt.Println("  --pcrs <path>                     PCR configuration (default: embedded)")
	fmt.Println("  --format <text|json>              Output format (default: text)")
	fmt.Println("  --help                            Show this help message")
	fmt.Println()
	fmt.Println("Input Format:")
	fmt.Println("  Each JSON flag accepts either a file path or inline JSON string.")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  outcome-validator --response response.json --bidder b --bids '[{\"items\":[\"A\"],\"value\":2}]'")
	fmt.Println()
	fmt.Println("  outcome-validator --response response.json --bidder b --bids bids.json --request request.json --format json")
	fmt.Println()
	fmt.Println("Exit Codes:")
	fmt.Println("  0 - Validation passed")
	fmt.Println("  1 - Validation failed")
	fmt.Println("  2 - Invalid input or runtime error")
}

func readJSONInput(input string) ([]byte, error) {
	// Try reading as file first
	if data, err := os.ReadFile(input); err == nil {
		return data, nil
	}
	// Treat as inline JSON
	return []byte(input), nil
}

func decodeJSONInput(input string, target any) error {
	data, err := readJSONInput(input)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

func buildValidationInput(responseInput, bidder, bidsInput, requestInput, adjustmentsInput, reservesInput string) (*validation.OutcomeValidationInput, error) {
	var response auctionapi.VCGResponse
	if err := decodeJSONInput(responseInput, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.AttestationCOSEBase64 == "" {
		return nil, fmt.Errorf("missing attestation_cose_base64 in response")
	}

	var bids []validation.OwnBid
	if err := decodeJSONInput(bidsInput, &bids); err != nil {
		return nil, fmt.Errorf("parse bids: %w", err)
	}

	input := &validation.OutcomeValidationInput{
		AttestationCOSEBase64: response.AttestationCOSEBase64,
		Bidder:                bidder,
		Bids:                  bids,
	}

	// The operator-reported award for this bidder, if any
	for i := range response.Awards {
		if response.Awards[i].Bidder == bidder {
			input.ExpectedAward = &response.Awards[i]
			break
		}
	}

	if requestInput != "" {
		var request auctionapi.VCGRequest
		if err := decodeJSONInput(requestInput, &request); err != nil {
			return nil, fmt.Errorf("parse request: %w", err)
		}
		input.Request = &request
	}

	if adjustmentsInput != "" {
		if err := decodeJSONInput(adjustmentsInput, &input.AdjustmentFactors); err != nil {
			return nil, fmt.Errorf("parse adjustment factors: %w", err)
		}
	}

	if reservesInput != "" {
		if err := decodeJSONInput(reservesInput, &input.ItemReserves); err != nil {
			return nil, fmt.Errorf("parse item reserves: %w", err)
		}
	}

	return input, nil
}

func outputText(result *validation.OutcomeValidationResult) {
	fmt.Println("VCG Outcome Attestation Validator")
	fmt.Println("=================================")
	fmt.Println()

	fmt.Println("Summary:")
	fmt.Printf("  PCRs Valid:              %v\n", result.PCRsValid)
	fmt.Printf("  Certificate Valid:       %v\n", result.CertificateValid)
	fmt.Printf("  Signature Valid:         %v\n", result.SignatureValid)
	fmt.Printf("  Bid Hash Valid:          %v\n", result.BidHashValid)
	fmt.Printf("  Award Valid:             %v\n", result.AwardValid)
	fmt.Printf("  Adjustment Hash Valid:   %v\n", result.AdjustmentHashValid)
	fmt.Printf("  Reserves Hash Valid:     %v\n", result.ReservesHashValid)
	if result.RecomputeChecked {
		fmt.Printf("  Recompute Valid:         %v\n", result.RecomputeValid)
	}

	fmt.Println()
	fmt.Println("Details:")
	for _, detail := range result.ValidationDetails {
		fmt.Printf("  - %s\n", detail)
	}

	fmt.Println()
	fmt.Println("=================================")
	if result.IsValid() {
		fmt.Println("VALIDATION: ✓ PASSED")
		fmt.Println("Exit Code: 0")
	} else {
		fmt.Println("VALIDATION: ✗ FAILED")
		fmt.Println("Exit Code: 1")
	}
}

func outputJSON(result *validation.OutcomeValidationResult) {
	output := map[string]any{
		"valid":                 result.IsValid(),
		"pcrs_valid":            result.PCRsValid,
		"certificate_valid":     result.CertificateValid,
		"signature_valid":       result.SignatureValid,
		"bid_hash_valid":        result.BidHashValid,
		"award_valid":           result.AwardValid,
		"adjustment_hash_valid": result.AdjustmentHashValid,
		"reserves_hash_valid":   result.ReservesHashValid,
		"details":               result.ValidationDetails,
	}
	if result.RecomputeChecked {
		output["recompute_valid"] = result.RecomputeValid
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		os.Exit(2)
	}
	fmt.Println(string(data))
}
