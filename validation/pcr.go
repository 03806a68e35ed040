package validation

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cloudx-io/vcgauction/auctionapi"
)

//go:embed pcrs.json
var defaultPCRConfig []byte

// DefaultPCRs returns the PCR sets shipped with this package
func DefaultPCRs() ([]PCRSet, error) {
	return parsePCRConfig(defaultPCRConfig)
}

// LoadPCRsFromFile loads known PCR sets from a JSON file
func LoadPCRsFromFile(path string) ([]PCRSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PCR config file: %w", err)
	}
	return parsePCRConfig(data)
}

func parsePCRConfig(data []byte) ([]PCRSet, error) {
	var config PCRConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse PCR config: %w", err)
	}

	if len(config.PCRSets) == 0 {
		return nil, fmt.Errorf("no PCR sets found in config file")
	}

	return config.PCRSets, nil
}

// ValidatePCRs checks if PCRs match any known valid set
// Returns: (match bool, matched set index)
// If no match, returns (false, -1)
func ValidatePCRs(pcrs auctionapi.PCRs, knownSets []PCRSet) (bool, int) {
	for i, knownSet := range knownSets {
		if pcrs.ImageFileHash == knownSet.PCR0 &&
			pcrs.KernelHash == knownSet.PCR1 &&
			pcrs.ApplicationHash == knownSet.PCR2 {
			return true, i
		}
	}
	return false, -1
}
