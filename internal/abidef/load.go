package abidef

import (
	"fmt"
	"os"
	"strings"
)

// Load resolves an ABI source: the preset name "erc20" or a path to a JSON file.
func Load(source string) (ABI, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return ABI{}, fmt.Errorf("abi source is required")
	}
	if strings.EqualFold(source, "erc20") {
		return ERC20()
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return ABI{}, fmt.Errorf("read abi: %w", err)
	}
	return Parse(data)
}
