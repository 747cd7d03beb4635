// The Licensed Work is (c) 2023 OmniBridge
// SPDX-License-Identifier: LGPL-3.0-only

package config

import (
	"math/big"

	"github.com/creasty/defaults"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type Config struct {
	LogLevel       zerolog.Level
	LogFile        string
	HealthPort     uint16
	Env            string
	InstanceId     string
	BlockstorePath string
	Fee            FeeConfig
	Oracle         OracleConfig
	Routers        []RouterConfig
}

type FeeConfig struct {
	Transport          common.Address
	SrcWormholeChainId uint16
	Beneficiary        common.Address
	ActualReserve      *big.Int
	EstimateReserve    *big.Int
	GasTables          map[uint16]GasTable
}

type GasTable struct {
	BaseGas    *big.Int
	GasPerByte *big.Int
}

type OracleConfig struct {
	ProtocolFeeRate *big.Int
	Ratios          map[uint16]*big.Int
}

type RouterConfig struct {
	Address common.Address
	Kind    string
}

type RawConfig struct {
	SettlementConfig RawSettlementConfig `mapstructure:"settlement" json:"settlement"`
}

type RawSettlementConfig struct {
	LogLevel       string          `mapstructure:"LogLevel" json:"logLevel" default:"info"`
	LogFile        string          `mapstructure:"LogFile" json:"logFile" default:"out.log"`
	HealthPort     uint16          `mapstructure:"HealthPort" json:"healthPort" default:"9001"`
	Env            string          `mapstructure:"Env" json:"env" default:"local"`
	InstanceId     string          `mapstructure:"InstanceId" json:"instanceId" default:"settlement-1"`
	BlockstorePath string          `mapstructure:"BlockstorePath" json:"blockstorePath" default:"./lvldbdata"`
	Fee            RawFeeConfig    `mapstructure:"Fee" json:"fee"`
	Oracle         RawOracleConfig `mapstructure:"Oracle" json:"oracle"`
	Routers        []RawRouter     `mapstructure:"Routers" json:"routers"`
}

type RawFeeConfig struct {
	Transport          string        `mapstructure:"Transport" json:"transport"`
	SrcWormholeChainId uint16        `mapstructure:"SrcWormholeChainId" json:"srcWormholeChainId"`
	Beneficiary        string        `mapstructure:"Beneficiary" json:"beneficiary"`
	ActualReserve      string        `mapstructure:"ActualReserve" json:"actualReserve" default:"1100000000000000000000000000"`
	EstimateReserve    string        `mapstructure:"EstimateReserve" json:"estimateReserve" default:"1200000000000000000000000000"`
	GasTables          []RawGasTable `mapstructure:"GasTables" json:"gasTables"`
}

type RawGasTable struct {
	DstWormholeChainId uint16 `mapstructure:"DstWormholeChainId" json:"dstWormholeChainId"`
	BaseGas            string `mapstructure:"BaseGas" json:"baseGas" default:"700000"`
	GasPerByte         string `mapstructure:"GasPerByte" json:"gasPerByte" default:"68"`
}

type RawOracleConfig struct {
	ProtocolFeeRate string     `mapstructure:"ProtocolFeeRate" json:"protocolFeeRate" default:"0"`
	Ratios          []RawRatio `mapstructure:"Ratios" json:"ratios"`
}

type RawRatio struct {
	DstWormholeChainId uint16 `mapstructure:"DstWormholeChainId" json:"dstWormholeChainId"`
	Ratio              string `mapstructure:"Ratio" json:"ratio"`
}

type RawRouter struct {
	Address string `mapstructure:"Address" json:"address"`
	Kind    string `mapstructure:"Kind" json:"kind"`
}

// GetConfigFromFile reads config from file, validates it and parses
// it into config suitable for application
func GetConfigFromFile(path string) (*Config, error) {
	rawConfig := RawConfig{}

	viper.SetConfigFile(path)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = viper.Unmarshal(&rawConfig)
	if err != nil {
		return nil, err
	}

	return processRawConfig(rawConfig)
}

func parseBig(field, value string) (*big.Int, error) {
	v, ok := math.ParseBig256(value)
	if ok && v.Sign() >= 0 {
		return v, nil
	}
	return nil, errors.Errorf("invalid %s value %q", field, value)
}

func processRawConfig(rawConfig RawConfig) (*Config, error) {
	if err := defaults.Set(&rawConfig); err != nil {
		return nil, err
	}
	raw := rawConfig.SettlementConfig

	logLevel, err := zerolog.ParseLevel(raw.LogLevel)
	if err != nil {
		return nil, errors.Errorf("unknown log level: %s", raw.LogLevel)
	}

	if raw.Fee.SrcWormholeChainId == 0 {
		return nil, errors.New("fee 'SrcWormholeChainId' must be provided")
	}
	actualReserve, err := parseBig("ActualReserve", raw.Fee.ActualReserve)
	if err != nil {
		return nil, err
	}
	estimateReserve, err := parseBig("EstimateReserve", raw.Fee.EstimateReserve)
	if err != nil {
		return nil, err
	}

	gasTables := make(map[uint16]GasTable)
	for _, gt := range raw.Fee.GasTables {
		baseGas, err := parseBig("BaseGas", gt.BaseGas)
		if err != nil {
			return nil, err
		}
		gasPerByte, err := parseBig("GasPerByte", gt.GasPerByte)
		if err != nil {
			return nil, err
		}
		gasTables[gt.DstWormholeChainId] = GasTable{BaseGas: baseGas, GasPerByte: gasPerByte}
	}

	protocolFeeRate, err := parseBig("ProtocolFeeRate", raw.Oracle.ProtocolFeeRate)
	if err != nil {
		return nil, err
	}
	ratios := make(map[uint16]*big.Int)
	for _, r := range raw.Oracle.Ratios {
		ratio, err := parseBig("Ratio", r.Ratio)
		if err != nil {
			return nil, err
		}
		ratios[r.DstWormholeChainId] = ratio
	}

	routers := make([]RouterConfig, 0, len(raw.Routers))
	for _, r := range raw.Routers {
		if !common.IsHexAddress(r.Address) {
			return nil, errors.Errorf("invalid router address %q", r.Address)
		}
		routers = append(routers, RouterConfig{
			Address: common.HexToAddress(r.Address),
			Kind:    r.Kind,
		})
	}

	return &Config{
		LogLevel:       logLevel,
		LogFile:        raw.LogFile,
		HealthPort:     raw.HealthPort,
		Env:            raw.Env,
		InstanceId:     raw.InstanceId,
		BlockstorePath: raw.BlockstorePath,
		Fee: FeeConfig{
			Transport:          common.HexToAddress(raw.Fee.Transport),
			SrcWormholeChainId: raw.Fee.SrcWormholeChainId,
			Beneficiary:        common.HexToAddress(raw.Fee.Beneficiary),
			ActualReserve:      actualReserve,
			EstimateReserve:    estimateReserve,
			GasTables:          gasTables,
		},
		Oracle: OracleConfig{
			ProtocolFeeRate: protocolFeeRate,
			Ratios:          ratios,
		},
		Routers: routers,
	}, nil
}
