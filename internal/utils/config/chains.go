package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ChainConfig describes one EVM network payments can be made on.
type ChainConfig struct {
	ID                    uint64            `yaml:"id"`
	Name                  string            `yaml:"name"`
	RPCURL                string            `yaml:"rpc_url"`
	NativeSymbol          string            `yaml:"native_symbol"`
	NativeDecimals        int               `yaml:"native_decimals"`
	RequiredConfirmations uint64            `yaml:"required_confirmations"`
	PricePlatform         string            `yaml:"price_platform"`
	PriceNativeID         string            `yaml:"price_native_id"`
	SwapRouter            string            `yaml:"swap_router"`
	WrappedNative         string            `yaml:"wrapped_native"`
	Stablecoins           map[string]string `yaml:"stablecoins"`
}

type chainsFile struct {
	Chains []ChainConfig `yaml:"chains"`
}

func LoadChains(path string) ([]ChainConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file chainsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse chains file %s: %w", path, err)
	}

	seen := make(map[uint64]struct{}, len(file.Chains))
	for i, chain := range file.Chains {
		if chain.ID == 0 {
			return nil, fmt.Errorf("chains[%d]: id is required", i)
		}
		if chain.RPCURL == "" {
			return nil, fmt.Errorf("chain %d: rpc_url is required", chain.ID)
		}
		if _, ok := seen[chain.ID]; ok {
			return nil, fmt.Errorf("chain %d: declared twice", chain.ID)
		}
		seen[chain.ID] = struct{}{}

		if file.Chains[i].NativeDecimals == 0 {
			file.Chains[i].NativeDecimals = 18
		}
		if file.Chains[i].RequiredConfirmations == 0 {
			file.Chains[i].RequiredConfirmations = 1
		}
	}

	return file.Chains, nil
}
